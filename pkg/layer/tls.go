package layer

import (
	"crypto/tls"

	"github.com/wirespy/proxycore/pkg/errors"
)

// TLSLayer performs the MITM handshake on a CONNECTed (or ALPN-pivoted)
// connection: mint a leaf certificate for host, complete a TLS handshake
// with the client presenting it, open a TLS connection to the origin, and
// hand the resulting plaintext endpoints to the next layer — HTTPProxyLayer
// if ALPN settled on http/1.1 (or negotiated nothing), RawTCPLayer
// otherwise, so HTTP/2 is tunneled opaquely rather than reframed.
type TLSLayer struct {
	ctx  *Context
	host string
}

func (l *TLSLayer) Run() error {
	cert, err := l.ctx.Config.CA.Mint(l.host, []string{l.host})
	if err != nil {
		return err
	}

	clientTLSConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}
	clientTLS := tls.Server(l.ctx.Client.Net(), clientTLSConfig)
	if err := clientTLS.Handshake(); err != nil {
		return errors.NewClientHandshakeError(l.host, err)
	}
	l.ctx.Client.UpgradeTLS(clientTLS)

	originTLSConfig := tlsConfigFor(l.ctx.Config, l.host)
	originTLSConfig.NextProtos = []string{"h2", "http/1.1"}
	originTLS := tls.Client(l.ctx.Server.Net(), originTLSConfig)
	if err := originTLS.Handshake(); err != nil {
		return errors.NewInvalidServerCertError(l.host, err)
	}
	l.ctx.Server.UpgradeTLS(originTLS)

	alpn := clientTLS.ConnectionState().NegotiatedProtocol
	childCtx := l.ctx.Child(l.ctx.Client, l.ctx.Server)

	if alpn != "" && alpn != "http/1.1" {
		logALPNFallthrough(childCtx, alpn)
		return (&RawTCPLayer{ctx: childCtx}).Run()
	}
	return (&HTTPProxyLayer{ctx: childCtx}).Run()
}

package layer

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/socks"
)

// SocksUpstreamProxyLayer is the root layer for mode=upstream:socks4://...,
// mode=upstream:socks5://..., and mode=socks5: for each outgoing connection
// it performs the SOCKS handshake toward the upstream proxy and then treats
// the resulting stream as a direct origin connection.
type SocksUpstreamProxyLayer struct {
	ctx *Context
}

func (l *SocksUpstreamProxyLayer) Run() error {
	return serveLoop(l.ctx, l.dialUpstream)
}

func (l *SocksUpstreamProxyLayer) dialUpstream(ctx *Context, host string, port int) (*conn.Conn, error) {
	spec := ctx.Config.UpstreamSpec
	proxyAddr := net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port))

	auth := socks.Auth{}
	if ctx.Config.UpstreamAuth != "" {
		user, pass, _ := strings.Cut(ctx.Config.UpstreamAuth, ":")
		auth.Username, auth.Password = user, pass
	}

	if spec.Scheme == "socks4" {
		netConn, err := socks.DialSocks4(context.Background(), proxyAddr, host, port, auth, ctx.Config.ConnTimeout)
		if err != nil {
			return nil, err
		}
		return conn.NewServer(netConn), nil
	}

	netConn, err := socks.DialSocks5(context.Background(), proxyAddr, host, port, auth, ctx.Config.ConnTimeout)
	if err != nil {
		return nil, err
	}
	return conn.NewServer(netConn), nil
}

package layer

import (
	"crypto/tls"
	"io"
	"net"
	"sync"

	"golang.org/x/net/http2"

	"github.com/wirespy/proxycore/pkg/channel"
	"github.com/wirespy/proxycore/pkg/errors"
	"github.com/wirespy/proxycore/pkg/flow"
)

// RawTCPLayer relays bytes bidirectionally between the client and server
// connections with no protocol awareness — used for CONNECTed non-TLS
// ports and for the opaque fallthrough after ALPN settles on anything but
// http/1.1. It emits tcp_start, relays until EOF or error (half-close on
// plain TCP, full close on TLS since this layer doesn't support TLS
// half-close), emits tcp_message per chunk observed, tcp_error on failure,
// and tcp_end always. Each direction runs in its own goroutine blocked on
// a read/write loop, the idiomatic Go shape for a bidirectional relay —
// Go's blocking I/O and scheduler make a manual readiness-select loop
// unnecessary.
type RawTCPLayer struct {
	ctx *Context
}

const rawRelayBufSize = 4096

func (l *RawTCPLayer) Run() error {
	fl := flow.NewTCP(flow.Connections{Client: l.ctx.Client, Server: l.ctx.Server})
	l.ctx.Channel.Tell("tcp_start", fl)

	errc := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errc <- l.pump(fl, true, l.ctx.Client, l.ctx.Server)
	}()
	go func() {
		defer wg.Done()
		errc <- l.pump(fl, false, l.ctx.Server, l.ctx.Client)
	}()

	wg.Wait()
	close(errc)

	var relayErr error
	for e := range errc {
		if e != nil && relayErr == nil {
			relayErr = e
		}
	}

	if relayErr != nil {
		fl.SetError(relayErr.Error())
		l.ctx.Channel.Tell("tcp_error", fl)
	}
	l.ctx.Channel.Tell("tcp_end", fl)
	return nil
}

// pump copies from src to dst one read at a time (rather than io.Copy
// directly) so each chunk can be recorded as a TCPMessage and announced via
// tcp_message before being forwarded, and so should_exit is polled between
// chunks.
func (l *RawTCPLayer) pump(fl *flow.TCPFlow, fromClient bool, src, dst interface{ Net() net.Conn }) error {
	buf := make([]byte, rawRelayBufSize)
	srcConn := src.Net()
	dstConn := dst.Net()

	for {
		if l.ctx.Channel.ShouldExit() {
			return nil
		}
		n, err := srcConn.Read(buf)
		if n > 0 {
			fl.Append(fromClient, buf[:n])
			l.ctx.Channel.Tell("tcp_message", fl)
			if _, werr := dstConn.Write(buf[:n]); werr != nil {
				return errors.NewTCPDisconnect(dstConn.RemoteAddr().String(), werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				halfClose(dstConn)
				return nil
			}
			return errors.NewTCPDisconnect(srcConn.RemoteAddr().String(), err)
		}
	}
}

// halfClose shuts down the write side of dst on a clean EOF from the other
// direction, for plain TCP only — TLS sessions are fully closed instead,
// since this layer does not implement TLS half-close.
func halfClose(dst net.Conn) {
	if _, isTLS := dst.(*tls.Conn); isTLS {
		dst.Close()
		return
	}
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := dst.(writeCloser); ok {
		wc.CloseWrite()
		return
	}
	dst.Close()
}

// logALPNFallthrough emits a best-effort debug log naming the opaque
// tunnel's negotiated protocol, using golang.org/x/net/http2's frame-type
// constants purely for their String() names — it never reframes or
// decodes HPACK. This exists so addons.Logging can report "now relaying
// h2 opaquely" instead of staying silent.
func logALPNFallthrough(ctx *Context, alpn string) {
	if alpn != "h2" {
		ctx.Channel.Log(channel.LogDebug, "ALPN negotiated "+alpn+", tunneling opaquely")
		return
	}
	ctx.Channel.Log(channel.LogDebug, "ALPN negotiated h2 ("+http2.FrameHeaders.String()+"/"+http2.FrameSettings.String()+" framed), tunneling opaquely without reframing")
}

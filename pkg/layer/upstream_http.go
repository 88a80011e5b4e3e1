package layer

import (
	"encoding/base64"
	"net"
	"strconv"

	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/errors"
)

// HTTPUpstreamProxyLayer is the root layer for mode=upstream:http(s)://...:
// every outgoing request tunnels through the configured upstream proxy via
// CONNECT and carries a Proxy-Authorization header when configured. It
// reuses HTTPProxyLayer's serveLoop/CONNECT handling entirely, only
// swapping the dial function.
type HTTPUpstreamProxyLayer struct {
	ctx *Context
}

func (l *HTTPUpstreamProxyLayer) Run() error {
	return serveLoop(l.ctx, l.dialUpstream)
}

func (l *HTTPUpstreamProxyLayer) dialUpstream(ctx *Context, host string, port int) (*conn.Conn, error) {
	spec := ctx.Config.UpstreamSpec
	addr := net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port))
	base, err := dialTCP(ctx, addr)
	if err != nil {
		return nil, err
	}

	targetAddr := net.JoinHostPort(host, strconv.Itoa(port))
	req := "CONNECT " + targetAddr + " HTTP/1.1\r\nHost: " + targetAddr + "\r\n"
	if auth := l.authHeader(ctx, host); auth != "" {
		req += "Proxy-Authorization: " + auth + "\r\n"
	}
	req += "\r\n"

	if _, err := base.Net().Write([]byte(req)); err != nil {
		base.Close()
		return nil, errors.NewIOError("writing CONNECT to upstream", err)
	}

	if err := readUpstreamConnectResponse(base); err != nil {
		base.Close()
		return nil, err
	}
	return base, nil
}

// authHeader builds the Proxy-Authorization value for a request bound for
// host, honoring no_proxy exclusion and the upstream_custom_auth override,
// for every forwarded request.
func (l *HTTPUpstreamProxyLayer) authHeader(ctx *Context, host string) string {
	if ctx.Config.NoProxy[host] {
		return ""
	}
	if ctx.Config.UpstreamCustomAuth != "" {
		return ctx.Config.UpstreamCustomAuth
	}
	if ctx.Config.UpstreamAuth == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(ctx.Config.UpstreamAuth))
}

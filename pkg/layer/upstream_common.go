package layer

import (
	"context"
	"net"
	"strings"

	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/errors"
	proxyio "github.com/wirespy/proxycore/pkg/ioutil"
)

// dialTCP opens a plain TCP connection to addr, honoring ConnTimeout —
// used by the upstream HTTP layer for the proxy-facing leg of its dial (the
// SOCKS layer dials through pkg/socks instead).
func dialTCP(ctx *Context, addr string) (*conn.Conn, error) {
	d := &net.Dialer{Timeout: ctx.Config.ConnTimeout}
	c, err := d.DialContext(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.NewConnectionError(addr, 0, err)
	}
	return conn.NewServer(c), nil
}

// readUpstreamConnectResponse reads and validates the status line the
// upstream proxy returns for our CONNECT request, discarding its headers —
// mirroring an HTTP CONNECT client's response check.
func readUpstreamConnectResponse(c *conn.Conn) error {
	r := proxyio.New(c.Net(), 0)
	line, err := r.ReadLine(8192)
	if err != nil {
		return errors.NewConnectionError(c.Metadata().RemoteAddr, 0, err)
	}
	if !strings.Contains(line, " 200 ") {
		return errors.NewConnectionError(c.Metadata().RemoteAddr, 0, errUpstreamConnectRefused(line))
	}
	for {
		l, err := r.ReadLine(8192)
		if err != nil {
			return errors.NewConnectionError(c.Metadata().RemoteAddr, 0, err)
		}
		if strings.TrimRight(l, "\r\n") == "" {
			return nil
		}
	}
}

type upstreamConnectError string

func (e upstreamConnectError) Error() string { return "upstream proxy refused CONNECT: " + string(e) }

func errUpstreamConnectRefused(statusLine string) error {
	return upstreamConnectError(strings.TrimRight(statusLine, "\r\n"))
}

package layer

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"

	"github.com/wirespy/proxycore/pkg/buffer"
	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/errors"
	"github.com/wirespy/proxycore/pkg/flow"
	"github.com/wirespy/proxycore/pkg/httpmsg"
	proxyio "github.com/wirespy/proxycore/pkg/ioutil"
	"github.com/wirespy/proxycore/pkg/timing"
)

// HTTPProxyLayer is the forward (regular) proxy root layer: it reads a
// request head from the client and dispatches on its form: CONNECT,
// absolute-form, or bare origin-form.
type HTTPProxyLayer struct {
	ctx *Context
}

func (l *HTTPProxyLayer) Run() error {
	return serveLoop(l.ctx, dialDirect)
}

// dialFn resolves and connects to (host, port), returning the server-side
// connection. HTTPProxyLayer dials the origin directly; the upstream HTTP
// and SOCKS layers instead open a tunnel to (host, port) through the
// configured upstream proxy (see upstream_http.go, upstream_socks.go). The
// request is not rewritten: it is sent through that tunnel in origin-form.
type dialFn func(ctx *Context, host string, port int) (*conn.Conn, error)

func dialDirect(ctx *Context, host string, port int) (*conn.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := &net.Dialer{Timeout: ctx.Config.ConnTimeout}
	c, err := d.DialContext(context.Background(), "tcp", addr)
	if err != nil {
		return nil, errors.NewConnectionError(host, port, err)
	}
	return conn.NewServer(c), nil
}

// serveLoop is the shared HTTP/1 request/response pump used by the regular
// and upstream-HTTP root layers: read request head → branch on CONNECT vs
// absolute-form vs bad origin-form → forward → read response → write back
// → repeat until the connection closes.
func serveLoop(ctx *Context, dial dialFn) error {
	clientReader := proxyio.New(ctx.Client.Net(), 0)

	for {
		clientReader.ResetTimestamps()
		method, scheme, host, port, authority, path, version, err := httpmsg.ReadRequestLine(clientReader)
		if err != nil {
			if errors.IsKill(err) {
				return err
			}
			var structured *errors.Error
			if errors.As(err, &structured) {
				switch structured.Type {
				case errors.ErrorTypeHTTPDisconnect:
					return nil // peer hung up between requests: a clean close, not an error
				case errors.ErrorTypeHTTPSyntax:
					writeErrorToClient(ctx.Client, 400, "Bad Request", err.Error())
				}
			}
			return err
		}

		if method == "CONNECT" {
			return handleConnect(ctx, clientReader, dial, host, port, version)
		}

		if scheme == "" {
			// Bare origin-form without a prior CONNECT: bad client behavior.
			writeErrorToClient(ctx.Client, 400, "Bad Request", "origin-form request outside an established tunnel")
			return errors.NewHTTPSyntaxError("request line", "origin-form request without CONNECT: "+path)
		}

		cont, err := handleForwardRequest(ctx, clientReader, dial, method, host, port, authority, path, version)
		if err != nil || !cont {
			return err
		}
	}
}

func handleForwardRequest(ctx *Context, clientReader *proxyio.Reader, dial dialFn, method, host string, port int, authority, path, version string) (keepGoing bool, err error) {
	reqHeaders, err := httpmsg.ReadHeaders(clientReader)
	if err != nil {
		var structured *errors.Error
		if errors.As(err, &structured) && structured.Type == errors.ErrorTypeHTTPSyntax {
			writeErrorToClient(ctx.Client, 400, "Bad Request", err.Error())
		}
		return false, err
	}

	req := &httpmsg.Request{
		Method: method, Host: host, Port: port, Authority: authority, Path: path,
	}
	req.HTTPVersion = version
	req.Headers = reqHeaders
	req.TimestampStart = float64(clientReader.FirstByteTimestamp().UnixNano()) / 1e9

	bodySize, err := httpmsg.ExpectedBodySize(reqHeaders, true, method, 0, false)
	if err != nil {
		writeErrorToClient(ctx.Client, 502, "", err.Error())
		return false, err
	}
	req.Content = buf(ctx, bodySize)
	if _, berr := httpmsg.ReadBody(clientReader, bodySize, ctx.Config.BodySizeLimit, ctx.Config.BodyChunkSize, req.Content); berr != nil {
		writeErrorToClient(ctx.Client, 502, "", berr.Error())
		return false, berr
	}

	fl := flow.New(req, flow.Connections{Client: ctx.Client}, ctx.Mode)
	if _, err := ctx.Channel.Ask("request", fl); err != nil {
		if errors.IsKill(err) {
			return false, err
		}
	}

	timer := timing.NewTimer()
	timer.StartTCP()
	serverConn, err := dial(ctx, host, port)
	timer.EndTCP()
	if err != nil {
		writeErrorToClient(ctx.Client, 502, "Bad Gateway", err.Error())
		return false, err
	}
	defer serverConn.Close()
	fl.Connections.Server = serverConn

	if err := forwardAndRelay(ctx, serverConn, req, fl, timer); err != nil {
		fl.SetError(err.Error())
		writeErrorToClient(ctx.Client, 502, "Bad Gateway", err.Error())
		return false, err
	}

	ctx.Channel.Tell("response", fl)

	if httpmsg.ConnectionClose(version, reqHeaders) {
		return false, nil
	}
	if ctx.Channel.ShouldExit() {
		return false, nil
	}
	return true, nil
}

func forwardAndRelay(ctx *Context, serverConn *conn.Conn, req *httpmsg.Request, fl *flow.HTTPFlow, timer *timing.Timer) error {
	outbound := req.Headers.StripHopByHop(false)
	target := req.Path
	if target == "" {
		target = "/"
	}
	head := httpmsg.WriteHead(httpmsg.WriteRequestLine(req.Method, target, req.HTTPVersion), outbound)

	if _, err := serverConn.Net().Write(head); err != nil {
		return errors.NewIOError("writing request to origin", err)
	}
	if body, rerr := req.Content.Reader(); rerr == nil {
		defer body.Close()
		buf := make([]byte, 32*1024)
		for {
			n, rerr := body.Read(buf)
			if n > 0 {
				if _, werr := serverConn.Net().Write(buf[:n]); werr != nil {
					return errors.NewIOError("writing request body to origin", werr)
				}
			}
			if rerr != nil {
				break
			}
		}
	}

	serverReader := proxyio.New(serverConn.Net(), 0)
	timer.StartTTFB()
	version, code, reason, err := httpmsg.ReadStatusLine(serverReader)
	timer.EndTTFB()
	if err != nil {
		return err
	}
	respHeaders, err := httpmsg.ReadHeaders(serverReader)
	if err != nil {
		return err
	}

	bodySize, err := httpmsg.ExpectedBodySize(respHeaders, false, req.Method, code, false)
	if err != nil {
		return err
	}

	resp := &httpmsg.Response{StatusCode: code, Reason: reason}
	resp.HTTPVersion = version
	resp.Headers = respHeaders
	resp.Content = buf(ctx, bodySize)

	if _, err := httpmsg.ReadBody(serverReader, bodySize, ctx.Config.BodySizeLimit, ctx.Config.BodyChunkSize, resp.Content); err != nil {
		return err
	}
	fl.Response = resp

	outResp := respHeaders.StripHopByHop(false)
	if req.HTTPVersion == "HTTP/1.0" && !outResp.Has("Connection") {
		outResp.Set("Connection", "close")
	}
	respHead := httpmsg.WriteHead(httpmsg.WriteStatusLine(version, code, reason), outResp)
	if _, err := ctx.Client.Net().Write(respHead); err != nil {
		return errors.NewIOError("writing response to client", err)
	}
	if b, rerr := resp.Content.Reader(); rerr == nil {
		defer b.Close()
		buf := make([]byte, 32*1024)
		for {
			n, rerr := b.Read(buf)
			if n > 0 {
				if _, werr := ctx.Client.Net().Write(buf[:n]); werr != nil {
					return errors.NewIOError("writing response body to client", werr)
				}
			}
			if rerr != nil {
				break
			}
		}
	}
	m := timer.Metrics()
	fl.Timings = &m
	return nil
}

func handleConnect(ctx *Context, clientReader *proxyio.Reader, dial dialFn, host string, port int, version string) error {
	if _, err := httpmsg.ReadHeaders(clientReader); err != nil {
		var structured *errors.Error
		if errors.As(err, &structured) && structured.Type == errors.ErrorTypeHTTPSyntax {
			writeErrorToClient(ctx.Client, 400, "Bad Request", err.Error())
		}
		return err
	}

	serverConn, err := dial(ctx, host, port)
	if err != nil {
		writeErrorToClient(ctx.Client, 502, "Bad Gateway", err.Error())
		return err
	}

	if _, err := ctx.Client.Net().Write(httpmsg.ConnectEstablished(version)); err != nil {
		serverConn.Close()
		return errors.NewIOError("writing CONNECT response", err)
	}
	ctx.Channel.Tell("http_connect", map[string]any{"host": host, "port": port})

	childCtx := ctx.Child(ctx.Client, serverConn)

	if ctx.Config.TLSPorts[port] {
		return (&TLSLayer{ctx: childCtx, host: host}).Run()
	}
	return (&RawTCPLayer{ctx: childCtx}).Run()
}

// runForward serves forward requests against (host, port) without a
// preceding CONNECT, one after another until the client disconnects or a
// request ends the connection, the shape TransparentLayer needs once it
// has recovered the original destination.
func runForward(ctx *Context, host string, port int, _ bool) error {
	clientReader := proxyio.New(ctx.Client.Net(), 0)
	for {
		clientReader.ResetTimestamps()
		method, _, _, _, authority, path, version, err := httpmsg.ReadRequestLine(clientReader)
		if err != nil {
			var structured *errors.Error
			if errors.As(err, &structured) {
				switch structured.Type {
				case errors.ErrorTypeHTTPDisconnect:
					return nil
				case errors.ErrorTypeHTTPSyntax:
					writeErrorToClient(ctx.Client, 400, "Bad Request", err.Error())
				}
			}
			return err
		}
		cont, err := handleForwardRequest(ctx, clientReader, dialDirect, method, host, port, authority, path, version)
		if err != nil || !cont {
			return err
		}
	}
}

func writeErrorToClient(c *conn.Conn, code int, reason, message string) {
	c.Net().Write(httpmsg.MakeErrorResponse(code, reason, message))
}

// buf returns a fresh body buffer sized for expectedSize (the body size
// already computed from the request/response headers, or negative when
// unknown ahead of time: httpmsg.BodySizeChunked or BodySizeUntilEOF). Once StreamLargeBodies
// is configured and expectedSize crosses it, the buffer is given a
// 1-byte memory limit so it spills to a temp file from its very first
// write instead of holding the whole body in memory — the stream-large-
// bodies decision actually taking effect, not just being recorded for an
// addon to observe after the fact.
func buf(ctx *Context, expectedSize int64) *buffer.Buffer {
	threshold := ctx.Config.StreamLargeBodies
	if threshold > 0 && expectedSize >= 0 && expectedSize > threshold {
		return buffer.New(1)
	}
	return buffer.New(0)
}

// tlsDial opens a TLS connection to the origin, honoring InsecureTLS and
// the configured version range.
func tlsDial(ctx *Context, host string, port int) (*conn.Conn, error) {
	base, err := dialDirect(ctx, host, port)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(base.Net(), tlsConfigFor(ctx.Config, host))
	if err := tlsConn.Handshake(); err != nil {
		base.Close()
		return nil, errors.NewTLSError(host, port, err)
	}
	base.UpgradeTLS(tlsConn)
	return base, nil
}

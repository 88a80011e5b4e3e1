package httpmsg

import (
	"net"
	"testing"

	"github.com/wirespy/proxycore/pkg/buffer"
	"github.com/wirespy/proxycore/pkg/errors"
	proxyio "github.com/wirespy/proxycore/pkg/ioutil"
)

func pipeReader(t *testing.T, data string) *proxyio.Reader {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go func() {
		client.Write([]byte(data))
		client.Close()
	}()
	return proxyio.New(server, 0)
}

func TestReadRequestLineOriginForm(t *testing.T) {
	r := pipeReader(t, "GET /index.html HTTP/1.1\r\n")
	method, scheme, host, port, authority, path, version, err := ReadRequestLine(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "GET" || scheme != "" || host != "" || port != 0 || authority != "" || path != "/index.html" || version != "HTTP/1.1" {
		t.Fatalf("unexpected parse: %q %q %q %d %q %q %q", method, scheme, host, port, authority, path, version)
	}
}

func TestReadRequestLineAbsoluteForm(t *testing.T) {
	r := pipeReader(t, "GET http://example.com:8080/path HTTP/1.1\r\n")
	method, scheme, host, port, authority, path, version, err := ReadRequestLine(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "GET" || scheme != "http" || host != "example.com" || port != 8080 || authority != "example.com:8080" || path != "/path" || version != "HTTP/1.1" {
		t.Fatalf("unexpected parse: %q %q %q %d %q %q %q", method, scheme, host, port, authority, path, version)
	}
}

func TestReadRequestLineConnect(t *testing.T) {
	r := pipeReader(t, "CONNECT example.com:443 HTTP/1.1\r\n")
	method, _, host, port, authority, _, _, err := ReadRequestLine(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != "CONNECT" || host != "example.com" || port != 443 || authority != "example.com:443" {
		t.Fatalf("unexpected parse: %q %q %d %q", method, host, port, authority)
	}
}

func TestReadRequestLineMalformed(t *testing.T) {
	r := pipeReader(t, "GARBAGE\r\n")
	_, _, _, _, _, _, _, err := ReadRequestLine(r)
	var structured *errors.Error
	if !errors.As(err, &structured) || structured.Type != errors.ErrorTypeHTTPSyntax {
		t.Fatalf("expected HTTPSyntaxError, got %v", err)
	}
}

func TestReadRequestLineDisconnect(t *testing.T) {
	r := pipeReader(t, "")
	_, _, _, _, _, _, _, err := ReadRequestLine(r)
	var structured *errors.Error
	if !errors.As(err, &structured) || structured.Type != errors.ErrorTypeHTTPDisconnect {
		t.Fatalf("expected HTTPDisconnect, got %v", err)
	}
}

func TestReadHeadersWithContinuation(t *testing.T) {
	r := pipeReader(t, "Host: example.com\r\nX-Long: first\r\n second\r\n\r\n")
	h, err := ReadHeaders(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := h.Get("Host"); v != "example.com" {
		t.Fatalf("expected Host example.com, got %q", v)
	}
	if v, _ := h.Get("X-Long"); v != "first second" {
		t.Fatalf("expected folded continuation, got %q", v)
	}
}

func TestExpectedBodySizeChunked(t *testing.T) {
	h := NewHeaders()
	h.Set("Transfer-Encoding", "chunked")
	size, err := ExpectedBodySize(h, false, "GET", 200, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != BodySizeChunked {
		t.Fatalf("expected BodySizeChunked, got %d", size)
	}
}

func TestExpectedBodySizeHead(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-Length", "1000")
	size, err := ExpectedBodySize(h, false, "HEAD", 200, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Fatalf("HEAD response should have zero body size, got %d", size)
	}
}

func TestExpectedBodySize204(t *testing.T) {
	h := NewHeaders()
	size, err := ExpectedBodySize(h, false, "GET", 204, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Fatalf("204 response should have zero body size, got %d", size)
	}
}

func TestExpectedBodySizeConnect200(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-Length", "500")
	size, err := ExpectedBodySize(h, false, "CONNECT", 200, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Fatalf("CONNECT 200 response should have zero body size, got %d", size)
	}
}

func TestExpectedBodySizeContentLength(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-Length", "42")
	size, err := ExpectedBodySize(h, true, "POST", 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 42 {
		t.Fatalf("expected 42, got %d", size)
	}
}

func TestExpectedBodySizeConflictingContentLength(t *testing.T) {
	h := NewHeaders()
	h.Add("Content-Length", "42")
	h.Add("Content-Length", "43")
	_, err := ExpectedBodySize(h, true, "POST", 0, false)
	if err == nil {
		t.Fatal("expected error for conflicting Content-Length headers")
	}
}

func TestExpectedBodySizeUntilEOF(t *testing.T) {
	h := NewHeaders()
	size, err := ExpectedBodySize(h, false, "GET", 200, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != BodySizeUntilEOF {
		t.Fatalf("expected BodySizeUntilEOF, got %d", size)
	}
}

func TestReadBodyFixed(t *testing.T) {
	r := pipeReader(t, "hello world")
	dst := buffer.New(0)
	defer dst.Close()
	if _, err := ReadBody(r, 11, 0, 0, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(dst.Bytes()) != "hello world" {
		t.Fatalf("unexpected body: %q", dst.Bytes())
	}
}

func TestReadBodyChunked(t *testing.T) {
	r := pipeReader(t, "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")
	dst := buffer.New(0)
	defer dst.Close()
	if _, err := ReadBody(r, BodySizeChunked, 0, 0, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(dst.Bytes()) != "hello world" {
		t.Fatalf("unexpected body: %q", dst.Bytes())
	}
}

func TestReadBodyExceedsLimit(t *testing.T) {
	r := pipeReader(t, "this body is longer than the limit")
	dst := buffer.New(0)
	defer dst.Close()
	_, err := ReadBody(r, 35, 10, 0, dst)
	if err == nil {
		t.Fatal("expected limit exceeded error")
	}
}

func TestConnectionClose(t *testing.T) {
	h := NewHeaders()
	h.Set("Connection", "close")
	if !ConnectionClose("HTTP/1.1", h) {
		t.Error("expected close on explicit Connection: close")
	}

	h2 := NewHeaders()
	if ConnectionClose("HTTP/1.1", h2) {
		t.Error("HTTP/1.1 should default to keep-alive")
	}

	h3 := NewHeaders()
	if !ConnectionClose("HTTP/1.0", h3) {
		t.Error("HTTP/1.0 should default to close without keep-alive token")
	}

	h4 := NewHeaders()
	h4.Set("Connection", "keep-alive")
	if ConnectionClose("HTTP/1.0", h4) {
		t.Error("HTTP/1.0 with explicit keep-alive should not close")
	}
}

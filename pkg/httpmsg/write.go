package httpmsg

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// ConnectEstablished is the synthesized response to a successful CONNECT,
// byte-identical on every call for a given HTTP version (invariant 6). It is
// deliberately headerless — including no Content-Length — per a workaround
// for an Android emulator that mishandles a CONNECT response carrying one.
func ConnectEstablished(version string) []byte {
	if version == "" {
		version = "HTTP/1.1"
	}
	return []byte(version + " 200 Connection established\r\n\r\n")
}

// WriteRequestLine serializes a request-line. target is the exact form
// to emit (origin-form "/path", CONNECT "host:port", or absolute-form
// "scheme://host:port/path") — the caller picks the form, since the wire
// form differs between a plain forward-proxy write and an upstream-HTTP
// rewrite.
func WriteRequestLine(method, target, version string) []byte {
	return []byte(method + " " + target + " " + version + "\r\n")
}

// WriteStatusLine serializes a status-line.
func WriteStatusLine(version string, code int, reason string) []byte {
	return []byte(version + " " + strconv.Itoa(code) + " " + reason + "\r\n")
}

// WriteHead assembles a request or response head (start line + headers +
// blank line) given an already-serialized start line.
func WriteHead(startLine []byte, h *Headers) []byte {
	var b []byte
	b = append(b, startLine...)
	b = append(b, h.Bytes()...)
	b = append(b, '\r', '\n')
	return b
}

// errorTemplate is the HTML body used for synthesized error responses.
const errorTemplate = "<html><head><title>%d %s</title></head><body><h1>%d %s</h1><p>%s</p></body></html>"

// ServerVersion is included in the Server header of synthesized error
// responses.
var ServerVersion = "proxycore/0.1"

// MakeErrorResponse builds a complete synthesized error response (status
// line, default headers, HTML body). reason is conventionally
// the textual status reason (e.g. "Bad Gateway"); message is the
// human-readable detail embedded (HTML-escaped) in the body.
func MakeErrorResponse(code int, reason, message string) []byte {
	if reason == "" {
		reason = statusReason(code)
	}
	body := fmt.Sprintf(errorTemplate, code, reason, code, reason, html.EscapeString(message))

	h := NewHeaders()
	h.Set("Server", ServerVersion)
	h.Set("Connection", "close")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Content-Type", "text/html")

	out := WriteHead(WriteStatusLine("HTTP/1.1", code, reason), h)
	out = append(out, body...)
	return out
}

func statusReason(code int) string {
	switch code {
	case 400:
		return "Bad Request"
	case 502:
		return "Bad Gateway"
	case 504:
		return "Gateway Timeout"
	default:
		return ""
	}
}

// WriteChunk serializes one chunk of a chunked-encoded body: hex length,
// CRLF, the payload, CRLF. Passing an empty payload writes the terminating
// 0-length chunk (without a trailer section).
func WriteChunk(payload []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%x\r\n", len(payload))
	b.Write(payload)
	b.WriteString("\r\n")
	return []byte(b.String())
}

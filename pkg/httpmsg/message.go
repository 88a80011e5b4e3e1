package httpmsg

import (
	"github.com/wirespy/proxycore/pkg/buffer"
)

// Message is the shared shape of Request and Response, mirroring an HTTP
// client's Response struct but generalized to cover both directions of the
// wire.
type Message struct {
	HTTPVersion    string // e.g. "HTTP/1.1"
	Headers        *Headers
	Trailers       *Headers // nil unless a chunked body carried trailers
	Content        *buffer.Buffer
	TimestampStart float64 // unix seconds, first byte of the head
	TimestampEnd   float64 // unix seconds, last byte of the body; 0 if not yet read
}

// Request is an HTTP/1 request head plus body.
type Request struct {
	Message
	Method    string
	Scheme    string // "http" or "https"; empty for origin-form
	Host      string
	Port      int
	Authority string // "host:port", set for absolute-form and CONNECT
	Path      string
}

// IsConnect reports whether this is a CONNECT request.
func (r *Request) IsConnect() bool {
	return r.Method == "CONNECT"
}

// Response is an HTTP/1 status line plus headers and body.
type Response struct {
	Message
	StatusCode int
	Reason     string
}

// ExpectsContinue reports whether the request carries Expect: 100-continue.
func (r *Request) ExpectsContinue() bool {
	v, ok := r.Headers.Get("Expect")
	return ok && containsFold(v, "100-continue")
}

func containsFold(s, substr string) bool {
	sl, subl := len(s), len(substr)
	if subl == 0 {
		return true
	}
	for i := 0; i+subl <= sl; i++ {
		if equalFold(s[i:i+subl], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Package httpmsg implements the HTTP/1 wire codec: headers, request and
// response heads, and body framing per RFC 7230. It is the server-side
// counterpart of an HTTP client's read path, generalized from
// "parse a response I requested" to "parse whatever a peer sends me".
package httpmsg

import (
	"strings"
)

// field is one (name, value) pair in original order.
type field struct {
	name  string
	value string
}

// Headers is an ordered multimap of header name/value pairs with
// case-insensitive lookup. Order and duplicate entries are preserved for
// serialization, per the wire model mitmproxy-derived proxies rely on: two
// Set-Cookie lines are two Headers entries, not one comma-joined value.
type Headers struct {
	fields []field
}

// NewHeaders returns an empty Headers.
func NewHeaders() *Headers {
	return &Headers{}
}

// Add appends a new name/value pair without removing existing entries for
// the same name.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, field{name: name, value: value})
}

// Set removes all existing entries for name and inserts a single new entry
// at the position of the first removed entry (or at the end, if none
// existed).
func (h *Headers) Set(name, value string) {
	lower := strings.ToLower(name)
	for i := range h.fields {
		if strings.ToLower(h.fields[i].name) == lower {
			h.fields[i].value = value
			h.removeAllBut(lower, i)
			return
		}
	}
	h.fields = append(h.fields, field{name: name, value: value})
}

func (h *Headers) removeAllBut(lowerName string, keep int) {
	out := h.fields[:0]
	for i, f := range h.fields {
		if i == keep || strings.ToLower(f.name) != lowerName {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Del removes every entry with the given name (case-insensitive).
func (h *Headers) Del(name string) {
	lower := strings.ToLower(name)
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.ToLower(f.name) != lower {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Get returns the first value for name, and whether it was present.
func (h *Headers) Get(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, f := range h.fields {
		if strings.ToLower(f.name) == lower {
			return f.value, true
		}
	}
	return "", false
}

// GetAll returns every value for name, in order, as stored (not
// comma-split).
func (h *Headers) GetAll(name string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, f := range h.fields {
		if strings.ToLower(f.name) == lower {
			out = append(out, f.value)
		}
	}
	return out
}

// GetList resolves a comma-joined list header (e.g. Transfer-Encoding) by
// joining every stored value for name with "," and splitting/trimming on
// commas, mirroring well-known list-header semantics.
func (h *Headers) GetList(name string) []string {
	all := h.GetAll(name)
	if len(all) == 0 {
		return nil
	}
	joined := strings.Join(all, ",")
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether name has at least one entry.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Len returns the number of fields (including duplicates).
func (h *Headers) Len() int {
	return len(h.fields)
}

// Each calls fn for every field in wire order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	out := &Headers{fields: make([]field, len(h.fields))}
	copy(out.fields, h.fields)
	return out
}

// hopByHop lists the headers stripped when forwarding a request or response
// to the next hop, per RFC 7230 §6.1 plus the proxy-specific entries this
// system forwards as a normal proxy rather than a transparent relay.
var hopByHop = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailers", "Transfer-Encoding", "Upgrade",
}

// StripHopByHop removes the standard hop-by-hop headers, plus any header
// named by a Connection: token, and returns a new Headers safe to forward.
// keepProxyAuth controls whether Proxy-Authorization survives (an upstream
// HTTP layer re-adds or rewrites it after stripping).
func (h *Headers) StripHopByHop(keepProxyAuth bool) *Headers {
	drop := map[string]bool{}
	for _, n := range hopByHop {
		if n == "Proxy-Authorization" && keepProxyAuth {
			continue
		}
		drop[strings.ToLower(n)] = true
	}
	if conn, ok := h.Get("Connection"); ok {
		for _, tok := range strings.Split(conn, ",") {
			drop[strings.ToLower(strings.TrimSpace(tok))] = true
		}
	}
	out := NewHeaders()
	for _, f := range h.fields {
		if drop[strings.ToLower(f.name)] {
			continue
		}
		out.fields = append(out.fields, f)
	}
	return out
}

// Bytes serializes the headers as CRLF-terminated "Name: value" lines,
// without the trailing blank line that terminates the head.
func (h *Headers) Bytes() []byte {
	var b strings.Builder
	for _, f := range h.fields {
		b.WriteString(f.name)
		b.WriteString(": ")
		b.WriteString(f.value)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

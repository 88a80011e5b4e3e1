package httpmsg

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/wirespy/proxycore/pkg/buffer"
	"github.com/wirespy/proxycore/pkg/errors"
	proxyio "github.com/wirespy/proxycore/pkg/ioutil"
)

const (
	maxHeaderLineLen = 64 * 1024
	maxChunkLineLen  = 128
	// DefaultMaxChunkSize bounds a single body read, mirroring read_body's
	// max_chunk_size default.
	DefaultMaxChunkSize = 4096
)

var httpVersionRe = regexp.MustCompile(`^HTTP/\d\.\d$`)

// ReadRequestLine reads and parses a request-line, classifying the target
// as origin-form, CONNECT authority-form, or absolute-form. An empty first
// line (peer disconnected before sending anything) returns an
// HTTPDisconnect error; a malformed line returns an HTTPSyntaxError.
func ReadRequestLine(r *proxyio.Reader) (method, scheme, host string, port int, authority, path, version string, err error) {
	line, rerr := r.ReadLine(maxHeaderLineLen)
	if rerr == io.EOF || line == "" {
		return "", "", "", 0, "", "", "", errors.NewHTTPDisconnect("request line", rerr)
	}
	if rerr != nil {
		return "", "", "", 0, "", "", "", rerr
	}
	line = strings.TrimRight(line, "\r\n")

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", 0, "", "", "", errors.NewHTTPSyntaxError("request line", "bad request line: "+line)
	}
	method, target, version := parts[0], parts[1], parts[2]
	if !httpVersionRe.MatchString(version) {
		return "", "", "", 0, "", "", "", errors.NewHTTPSyntaxError("request line", "bad HTTP version: "+version)
	}

	switch {
	case method == "CONNECT":
		h, p, perr := splitHostPort(target, 0)
		if perr != nil || p == 0 {
			return "", "", "", 0, "", "", "", errors.NewHTTPSyntaxError("request line", "CONNECT target must be host:port: "+target)
		}
		return method, "", h, p, target, "", version, nil

	case target == "*" || strings.HasPrefix(target, "/"):
		return method, "", "", 0, "", target, version, nil

	default:
		scheme, authority, path, perr := parseAbsoluteForm(target)
		if perr != nil {
			return "", "", "", 0, "", "", "", perr
		}
		h, p, perr := splitHostPort(authority, defaultPort(scheme))
		if perr != nil {
			return "", "", "", 0, "", "", "", perr
		}
		return method, scheme, h, p, authority, path, version, nil
	}
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

func parseAbsoluteForm(target string) (scheme, authority, path string, err error) {
	idx := strings.Index(target, "://")
	if idx < 0 {
		return "", "", "", errors.NewHTTPSyntaxError("request line", "not an absolute-form target: "+target)
	}
	scheme = target[:idx]
	if scheme != "http" && scheme != "https" {
		return "", "", "", errors.NewHTTPSyntaxError("request line", "unsupported scheme: "+scheme)
	}
	rest := target[idx+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return scheme, rest, "/", nil
	}
	return scheme, rest[:slash], rest[slash:], nil
}

func splitHostPort(hostport string, defPort int) (string, int, error) {
	i := strings.LastIndexByte(hostport, ':')
	if i < 0 {
		if defPort == 0 {
			return "", 0, errors.NewHTTPSyntaxError("authority", "missing port in "+hostport)
		}
		return hostport, defPort, nil
	}
	host := hostport[:i]
	portStr := hostport[i+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, errors.NewHTTPSyntaxError("authority", "invalid port in "+hostport)
	}
	return host, port, nil
}

// ReadStatusLine reads and parses a status-line. A missing reason phrase is
// permitted and becomes "".
func ReadStatusLine(r *proxyio.Reader) (version string, code int, reason string, err error) {
	line, rerr := r.ReadLine(maxHeaderLineLen)
	if rerr == io.EOF || line == "" {
		return "", 0, "", errors.NewHTTPDisconnect("response line", rerr)
	}
	if rerr != nil {
		return "", 0, "", rerr
	}
	line = strings.TrimRight(line, "\r\n")

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", errors.NewHTTPSyntaxError("response line", "bad status line: "+line)
	}
	if !httpVersionRe.MatchString(parts[0]) {
		return "", 0, "", errors.NewHTTPSyntaxError("response line", "bad HTTP version: "+parts[0])
	}
	code, cerr := strconv.Atoi(parts[1])
	if cerr != nil || code < 100 || code > 599 {
		return "", 0, "", errors.NewHTTPSyntaxError("response line", "bad status code: "+parts[1])
	}
	if len(parts) == 3 {
		reason = parts[2]
	}
	return parts[0], code, reason, nil
}

// ReadHeaders reads header lines until a blank line, handling leading-
// whitespace continuation per RFC 7230 §3.2.4.
func ReadHeaders(r *proxyio.Reader) (*Headers, error) {
	h := NewHeaders()
	var lastName string

	for {
		line, err := r.ReadLine(maxHeaderLineLen)
		if err == io.EOF {
			return nil, errors.NewHTTPDisconnect("headers", err)
		}
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return h, nil
		}

		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastName != "" {
			appendContinuation(h, lastName, strings.TrimSpace(trimmed))
			continue
		}

		colon := strings.IndexByte(trimmed, ':')
		if colon < 0 {
			return nil, errors.NewHTTPSyntaxError("headers", "header line missing colon: "+trimmed)
		}
		name := strings.TrimSpace(trimmed[:colon])
		value := strings.TrimSpace(trimmed[colon+1:])
		if name == "" || strings.ContainsAny(name, "\r\n:") {
			return nil, errors.NewHTTPSyntaxError("headers", "invalid header name: "+name)
		}
		h.Add(name, value)
		lastName = name
	}
}

// appendContinuation folds a continuation line into the most recently added
// value for name, inserting "CRLF SP" per RFC 7230's continuation grammar
// (represented here as a single joining space since the line break itself
// carries no semantic content once parsed).
func appendContinuation(h *Headers, name, cont string) {
	for i := len(h.fields) - 1; i >= 0; i-- {
		if strings.EqualFold(h.fields[i].name, name) {
			h.fields[i].value = h.fields[i].value + " " + cont
			return
		}
	}
}

// BodySizeChunked signals a chunked transfer encoding (expected size
// unknown up front).
const BodySizeChunked = -1

// BodySizeUntilEOF signals the body runs until the connection closes.
const BodySizeUntilEOF = -2

// ExpectedBodySize implements RFC 7230's message-body-length algorithm: a
// pure function of method, status, and headers. isRequest distinguishes the
// request-side defaults (0, not read-to-EOF) from the response side.
// connectResponse marks a 200 response to a CONNECT request (body size 0
// regardless of headers, since the tunnel payload is no longer HTTP).
func ExpectedBodySize(h *Headers, isRequest bool, method string, statusCode int, connectResponse bool) (int64, error) {
	if isRequest {
		if v, ok := h.Get("Expect"); ok && containsFold(v, "100-continue") {
			return 0, nil
		}
	} else {
		if method == "HEAD" {
			return 0, nil
		}
		if statusCode >= 100 && statusCode < 200 {
			return 0, nil
		}
		if statusCode == 204 || statusCode == 304 {
			return 0, nil
		}
		if connectResponse && statusCode == 200 {
			return 0, nil
		}
	}

	if te := h.GetList("Transfer-Encoding"); len(te) > 0 {
		for _, tok := range te {
			if strings.EqualFold(tok, "chunked") {
				return BodySizeChunked, nil
			}
		}
	}

	if cl := h.GetAll("Content-Length"); len(cl) > 0 {
		normalized := strings.TrimSpace(cl[0])
		for _, v := range cl[1:] {
			if strings.TrimSpace(v) != normalized {
				return 0, errors.NewHTTPSyntaxError("content-length", "conflicting Content-Length headers")
			}
		}
		n, err := strconv.ParseInt(normalized, 10, 64)
		if err != nil || n < 0 {
			return 0, errors.NewHTTPSyntaxError("content-length", "invalid Content-Length: "+normalized)
		}
		return n, nil
	}

	if isRequest {
		return 0, nil
	}
	return BodySizeUntilEOF, nil
}

// ReadBody reads a body of the given expected size into dst, enforcing
// limit (0 means unlimited) and reading in chunks no larger than
// maxChunkSize. It implements the three branches of HTTP/1.1 body
// reading.
func ReadBody(r *proxyio.Reader, expected int64, limit int64, maxChunkSize int, dst *buffer.Buffer) (trailers *Headers, err error) {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	switch expected {
	case BodySizeChunked:
		return readChunked(r, limit, maxChunkSize, dst)
	case BodySizeUntilEOF:
		return nil, readUntilEOF(r, limit, maxChunkSize, dst)
	default:
		if limit > 0 && expected > limit {
			return nil, errors.NewProtocolError("body exceeds configured limit", nil)
		}
		return nil, readFixed(r, expected, maxChunkSize, dst)
	}
}

func readFixed(r *proxyio.Reader, length int64, maxChunkSize int, dst *buffer.Buffer) error {
	remaining := length
	for remaining > 0 {
		n := remaining
		if n > int64(maxChunkSize) {
			n = int64(maxChunkSize)
		}
		chunk, err := r.Read(n)
		if len(chunk) > 0 {
			dst.Write(chunk)
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return errors.NewHTTPDisconnect("body", io.ErrUnexpectedEOF)
			}
			return err
		}
		remaining -= int64(len(chunk))
	}
	return nil
}

func readUntilEOF(r *proxyio.Reader, limit int64, maxChunkSize int, dst *buffer.Buffer) error {
	var total int64
	for {
		chunk, err := r.Read(int64(maxChunkSize))
		if len(chunk) > 0 {
			total += int64(len(chunk))
			if limit > 0 && total > limit {
				return errors.NewProtocolError("body exceeds configured limit", nil)
			}
			dst.Write(chunk)
		}
		if err != nil {
			var structured *errors.Error
			if errors.As(err, &structured) && structured.Type == errors.ErrorTypeTCPDisconnect {
				return nil // clean EOF: the close itself delimits the body
			}
			if err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
	}
}

func readChunked(r *proxyio.Reader, limit int64, maxChunkSize int, dst *buffer.Buffer) (*Headers, error) {
	var total int64
	for {
		line, err := r.ReadLine(maxChunkLineLen)
		if err == io.EOF {
			return nil, errors.NewHTTPDisconnect("chunk size", err)
		}
		if err != nil {
			return nil, err
		}
		sizeStr := strings.TrimSpace(strings.SplitN(strings.TrimRight(line, "\r\n"), ";", 2)[0])
		size, perr := strconv.ParseInt(sizeStr, 16, 64)
		if perr != nil || size < 0 {
			return nil, errors.NewHTTPSyntaxError("chunk size", "invalid chunk size: "+sizeStr)
		}

		if size == 0 {
			return readTrailers(r)
		}

		total += size
		if limit > 0 && total > limit {
			return nil, errors.NewProtocolError("chunked body exceeds configured limit", nil)
		}

		remaining := size
		for remaining > 0 {
			n := remaining
			if n > int64(maxChunkSize) {
				n = int64(maxChunkSize)
			}
			chunk, rerr := r.Read(n)
			if len(chunk) > 0 {
				dst.Write(chunk)
			}
			if rerr != nil {
				return nil, errors.NewHTTPDisconnect("chunk body", rerr)
			}
			remaining -= int64(len(chunk))
		}

		crlf, rerr := r.Read(2)
		if rerr != nil {
			return nil, errors.NewHTTPDisconnect("chunk terminator", rerr)
		}
		if string(crlf) != "\r\n" {
			return nil, errors.NewHTTPSyntaxError("chunk terminator", "chunk not followed by CRLF")
		}
	}
}

func readTrailers(r *proxyio.Reader) (*Headers, error) {
	trailers := NewHeaders()
	for {
		line, err := r.ReadLine(maxHeaderLineLen)
		if err == io.EOF {
			return trailers, nil
		}
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return trailers, nil
		}
		colon := strings.IndexByte(trimmed, ':')
		if colon < 0 {
			continue
		}
		trailers.Add(strings.TrimSpace(trimmed[:colon]), strings.TrimSpace(trimmed[colon+1:]))
	}
}

// ConnectionClose reports whether the connection should close after this
// message: any non-1.1 version lacking an explicit "Connection: keep-alive"
// closes, and HTTP/1.1 closes only on an explicit "Connection: close".
func ConnectionClose(version string, h *Headers) bool {
	conn, _ := h.Get("Connection")
	tokens := h.GetList("Connection")
	hasToken := func(name string) bool {
		for _, t := range tokens {
			if strings.EqualFold(t, name) {
				return true
			}
		}
		return false
	}
	if version != "HTTP/1.1" {
		return !hasToken("keep-alive")
	}
	_ = conn
	return hasToken("close")
}

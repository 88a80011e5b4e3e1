// Package conn models the two connection endpoints (client-facing and
// server-facing) a layer stack activation borrows from its RootContext,
// generalizing an HTTP client's per-connection dial metadata into a
// bidirectional connection object the proxy owns for the life of one
// accepted socket.
package conn

import (
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var nextID uint64

// Metadata captures the observable facts about a connection: TLS
// version/cipher/SNI/resumption, addresses, and a monotonic ID, so addons
// get the same observability a client gets from its outbound Response.
type Metadata struct {
	ID                 uint64
	LocalAddr          string
	RemoteAddr         string
	NegotiatedProtocol string // ALPN result, e.g. "h2", "http/1.1"
	TLSVersion         string
	TLSCipherSuite     string
	TLSServerName      string
	TLSSessionID       string
	TLSResumed         bool
}

// Conn is one endpoint of a flow: either the browser-facing client socket
// or the origin/upstream-facing server socket. The layer stack borrows it
// from the RootContext and never retains it past layer teardown.
type Conn struct {
	mu        sync.Mutex
	raw       net.Conn
	tlsConn   *tls.Conn
	meta      Metadata
	timestamp time.Time // connection-established time
	closed    bool
}

// NewClient wraps an accepted client socket.
func NewClient(raw net.Conn) *Conn {
	return newConn(raw)
}

// NewServer wraps a freshly dialed origin/upstream socket.
func NewServer(raw net.Conn) *Conn {
	return newConn(raw)
}

func newConn(raw net.Conn) *Conn {
	c := &Conn{raw: raw, timestamp: time.Now()}
	c.meta.ID = atomic.AddUint64(&nextID, 1)
	if raw != nil {
		c.meta.LocalAddr = raw.LocalAddr().String()
		c.meta.RemoteAddr = raw.RemoteAddr().String()
	}
	return c
}

// Net returns the current net.Conn (plain or TLS) — the layer stack reads
// and writes through this handle directly; Conn itself does no buffering
// (see pkg/ioutil.Reader for that).
func (c *Conn) Net() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tlsConn != nil {
		return c.tlsConn
	}
	return c.raw
}

// UpgradeTLS replaces the plain connection with an already-handshaked TLS
// connection and records the negotiated parameters into Metadata. Callers
// complete the handshake (client- or server-side) before calling this; it
// only records state, never the handshake itself.
func (c *Conn) UpgradeTLS(t *tls.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tlsConn = t
	state := t.ConnectionState()
	c.meta.NegotiatedProtocol = state.NegotiatedProtocol
	c.meta.TLSVersion = tlsVersionName(state.Version)
	c.meta.TLSCipherSuite = tls.CipherSuiteName(state.CipherSuite)
	c.meta.TLSServerName = state.ServerName
	c.meta.TLSResumed = state.DidResume
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "unknown"
	}
}

// Metadata returns a snapshot of the connection's observable state.
func (c *Conn) Metadata() Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// Timestamp returns when this connection was established.
func (c *Conn) Timestamp() time.Time {
	return c.timestamp
}

// IsTLS reports whether the connection has been upgraded to TLS.
func (c *Conn) IsTLS() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tlsConn != nil
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tlsConn != nil {
		return c.tlsConn.Close()
	}
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}

// CloseWrite half-closes the write side, when the underlying connection
// supports it (plain TCP only — TLS half-close is deliberately unsupported,
// per the raw TCP relay layer).
func (c *Conn) CloseWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	type writeCloser interface {
		CloseWrite() error
	}
	if c.tlsConn != nil {
		return c.tlsConn.Close()
	}
	if wc, ok := c.raw.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return c.raw.Close()
}

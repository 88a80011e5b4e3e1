// Package layer implements the per-connection protocol stack: each Layer
// decides what the next layer is and invokes it. No single file this whole
// package is copied from — it generalizes an HTTP client's dial/proxy/TLS
// logic from "a client connecting out" into "a proxy relaying through", the
// way a martian-style Proxy.handle/handleConnectRequest chain structures a
// MITM accept-to-tunnel pipeline, with a raw TCP relay layer's exact
// half-close/error semantics.
package layer

import (
	"crypto/tls"
	"time"

	"github.com/wirespy/proxycore/pkg/ca"
	"github.com/wirespy/proxycore/pkg/channel"
	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/serverspec"
	"github.com/wirespy/proxycore/pkg/tlsconfig"
)

// Config is the subset of proxy configuration every layer needs, shared
// between pkg/server.Options (which embeds it and adds the listener-level
// fields) and the layer stack, so this package never has to import
// pkg/server — the dependency runs one way, config down to the layers that
// consume it.
type Config struct {
	CA ca.Authority

	// Upstream mode: for an "upstream:" Mode, UpstreamSpec.Scheme selects
	// HttpUpstreamProxy or SocksUpstreamProxy.
	UpstreamSpec        serverspec.ServerSpec
	UpstreamAuth        string // "user:pass"
	UpstreamCustomAuth  string // verbatim Proxy-Authorization replacement
	NoProxy             map[string]bool

	// TLS MITM.
	TLSPorts        map[int]bool // ports that trigger MITM after CONNECT
	InsecureTLS     bool
	MinTLSVersion   uint16
	MaxTLSVersion   uint16

	// Limits and timeouts.
	BodySizeLimit      int64 // 0 means unlimited
	StreamLargeBodies  int64 // 0 disables streaming; bodies over this size stream
	BodyChunkSize      int
	ConnTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration

	SuppressConnectionErrors bool
}

// Context is the RootContext every layer activation receives: a back-
// pointer to the parent layer's context (nil at the root), the two
// borrowed connections, the controller channel, and the shared config.
// State beyond this is local to each layer activation — there is no global
// flow table.
type Context struct {
	Parent  *Context
	Client  *conn.Conn
	Server  *conn.Conn
	Channel *channel.Channel
	Config  *Config
	Mode    string
}

// Child returns a new Context for a nested layer activation, replacing the
// server connection (e.g. after a TLS MITM handshake swaps in plaintext
// endpoints) while keeping the channel, config, and mode.
func (c *Context) Child(client, server *conn.Conn) *Context {
	return &Context{
		Parent:  c,
		Client:  client,
		Server:  server,
		Channel: c.Channel,
		Config:  c.Config,
		Mode:    c.Mode,
	}
}

// Layer is a protocol handler in the stack; each layer owns a slice of the
// connection's lifetime and delegates the remainder to a next layer by
// constructing and Running it directly (dynamic dispatch on layers is
// just a Go interface call — no tagged variant is needed).
type Layer interface {
	Run() error
}

// tlsConfigFor builds a tls.Config honoring the shared version/cipher
// knobs for an origin-facing TLS connection: TLSLayer's handshake toward
// the origin and tlsDial. TLSLayer's client-facing MITM handshake builds its
// own tls.Config and does not use it.
func tlsConfigFor(cfg *Config, serverName string) *tls.Config {
	min, max := cfg.MinTLSVersion, cfg.MaxTLSVersion
	if min == 0 {
		min = tlsconfig.VersionTLS12
	}
	if max == 0 {
		max = tlsconfig.VersionTLS13
	}
	tc := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: cfg.InsecureTLS,
		MinVersion:         min,
		MaxVersion:         max,
	}
	tlsconfig.ApplyCipherSuites(tc, min)
	return tc
}

// Package server ties the listener lifecycle to the per-connection layer
// stack: Options configures a ProxyServer, ProxyServer owns the listener
// and accept loop, and ConnectionHandler drives one accepted connection
// from root context construction through layer selection to teardown.
package server

import (
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wirespy/proxycore/pkg/addons"
	"github.com/wirespy/proxycore/pkg/ca"
	"github.com/wirespy/proxycore/pkg/channel"
	"github.com/wirespy/proxycore/pkg/constants"
	"github.com/wirespy/proxycore/pkg/layer"
	"github.com/wirespy/proxycore/pkg/serverspec"
)

// Options controls how a ProxyServer binds its listener and configures the
// layer stack for every accepted connection. It embeds layer.Config so the
// listener-only fields here never need to be threaded through pkg/layer.
type Options struct {
	layer.Config

	Host string
	Port int

	// Mode selects the root layer: "regular", "transparent",
	// "upstream:<scheme>://host:port", "socks5", or "custom:<name>".
	Mode string

	Logger *slog.Logger

	// Addons overrides the default chain (addons.Default). Nil uses the
	// default chain built from the fields below.
	Addons []channel.Handler

	StreamThreshold int64
	UpstreamAuthRaw string

	// UpstreamCustomAuthRaw, set, replaces the computed Proxy-Authorization
	// value verbatim on every request traversing an HTTP upstream.
	UpstreamCustomAuthRaw string

	// ShutdownGracePeriod bounds how long Shutdown waits for in-flight
	// connection handlers to drain before returning. Zero uses
	// constants.DefaultShutdownGracePeriod.
	ShutdownGracePeriod time.Duration
}

// DriverConfig is the embedder-visible snapshot of the options that matter
// to a caller driving the proxy programmatically (as opposed to the
// internal layer.Config, which pkg/layer consumes directly). Proxy and
// AcceptInsecureCerts mirror the capabilities payload a WebDriver-style
// embedder hands to the browser at session setup; UpstreamAuth mirrors the
// scheme-keyed rendering such an embedder recomputes on demand once the
// session is live.
type DriverConfig struct {
	Host string
	Port int
	Mode string

	Proxy               ProxyDriverConfig `json:"proxy"`
	AcceptInsecureCerts bool              `json:"acceptInsecureCerts"`

	UpstreamAuth UpstreamAuthConfig
}

// ProxyDriverConfig is the manual-proxy capabilities block: this proxy's
// own listen address, presented as both the HTTP and TLS proxy since one
// instance intercepts both.
type ProxyDriverConfig struct {
	ProxyType string   `json:"proxyType"`
	HTTPProxy string   `json:"httpProxy"`
	SSLProxy  string   `json:"sslProxy"`
	NoProxy   []string `json:"noProxy,omitempty"`
}

// UpstreamAuthConfig is the scheme-keyed rendering of mode=upstream:<spec>
// plus the no_proxy/custom-auth overrides layered on top of it: Scheme
// holds at most one entry, keyed by the upstream's scheme ("http", "https",
// "socks5", ...), valued "<scheme>://<user:pass@>host:port".
type UpstreamAuthConfig struct {
	Scheme              map[string]string
	NoProxy             string
	CustomAuthorization string
}

// Snapshot returns the embedder-visible configuration summary.
func (o *Options) Snapshot() DriverConfig {
	addr := net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	cfg := DriverConfig{
		Host: o.Host,
		Port: o.Port,
		Mode: o.Mode,
		Proxy: ProxyDriverConfig{
			ProxyType: "manual",
			HTTPProxy: addr,
			SSLProxy:  addr,
		},
		AcceptInsecureCerts: true,
		UpstreamAuth:        UpstreamAuthConfig{CustomAuthorization: o.UpstreamCustomAuthRaw},
	}

	if len(o.NoProxy) > 0 {
		hosts := make([]string, 0, len(o.NoProxy))
		for h := range o.NoProxy {
			hosts = append(hosts, h)
		}
		sort.Strings(hosts)
		cfg.Proxy.NoProxy = hosts
		cfg.UpstreamAuth.NoProxy = strings.Join(hosts, ",")
	}

	if strings.HasPrefix(o.Mode, "upstream:") && o.UpstreamSpec.Host != "" {
		scheme := string(o.UpstreamSpec.Scheme)
		target := net.JoinHostPort(o.UpstreamSpec.Host, strconv.Itoa(o.UpstreamSpec.Port))
		var rendered string
		if o.UpstreamAuthRaw != "" {
			rendered = scheme + "://" + o.UpstreamAuthRaw + "@" + target
		} else {
			rendered = scheme + "://" + target
		}
		cfg.UpstreamAuth.Scheme = map[string]string{scheme: rendered}
	}

	return cfg
}

// withDefaults fills unset fields with the library's defaults.
func (o *Options) withDefaults() *Options {
	out := *o
	if out.Mode == "" {
		out.Mode = "regular"
	}
	if out.ConnTimeout == 0 {
		out.ConnTimeout = constants.DefaultConnTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = constants.DefaultReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = constants.DefaultWriteTimeout
	}
	if out.BodyChunkSize == 0 {
		out.BodyChunkSize = constants.DefaultBodyChunkSize
	}
	if out.BodySizeLimit == 0 {
		out.BodySizeLimit = constants.MaxContentLength
	}
	if out.NoProxy == nil {
		out.NoProxy = map[string]bool{}
	}
	if out.TLSPorts == nil {
		out.TLSPorts = map[int]bool{constants.DefaultMITMPort: true}
	}
	if out.CA == nil {
		newCA, err := ca.NewSelfSigned("proxycore MITM CA")
		if err == nil {
			out.CA = newCA
		}
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.ShutdownGracePeriod == 0 {
		out.ShutdownGracePeriod = constants.DefaultShutdownGracePeriod
	}
	if out.StreamLargeBodies == 0 {
		// StreamThreshold is the embedder-facing knob; StreamLargeBodies is
		// the same threshold as pkg/layer consumes it, so one setting drives
		// both the buffering decision and the addon's observability hook.
		out.StreamLargeBodies = out.StreamThreshold
	}
	if strings.HasPrefix(out.Mode, "upstream:") {
		if _, spec, err := serverspec.ParseWithMode(out.Mode); err == nil {
			out.UpstreamSpec = spec
		} else {
			out.Logger.Warn("malformed upstream mode spec, upstream dialing will fail", "mode", out.Mode, "error", err)
		}
	}
	out.UpstreamAuth = out.UpstreamAuthRaw
	out.UpstreamCustomAuth = out.UpstreamCustomAuthRaw
	return &out
}

func (o *Options) addonChain() []channel.Handler {
	if o.Addons != nil {
		return o.Addons
	}
	chain := addons.Default(o.StreamLargeBodies, o.UpstreamAuthRaw, o.NoProxy, o.Logger)
	return append(chain, addons.NewLogging(o.Logger))
}

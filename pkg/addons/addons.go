// Package addons implements the default observer/mutator chain (core,
// streambodies, upstream_auth) plus a logging addon, all as
// pkg/channel.Handler implementations — new code, since an HTTP client has
// no addon concept: it is a client, not a proxy with an observer chain.
package addons

import (
	"log/slog"

	"github.com/wirespy/proxycore/pkg/channel"
)

// Default returns the default addon chain in registration order: core
// first (a pass-through), then streambodies, then upstream_auth.
func Default(streamThreshold int64, upstreamAuth string, noProxy map[string]bool, logger *slog.Logger) []channel.Handler {
	return []channel.Handler{
		NewCore(),
		NewStreamBodies(streamThreshold, logger),
		NewUpstreamAuth(upstreamAuth, noProxy),
	}
}

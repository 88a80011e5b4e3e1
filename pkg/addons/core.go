package addons

import "github.com/wirespy/proxycore/pkg/flow"

// Core is the first addon in the default chain. It passes every event
// through unchanged: it shapes no responses, makes no stream-vs-buffer
// decision and vetoes nothing. A kill raised by another addon's Ask reaches
// the layer through Channel.Ask, not through Core.
type Core struct{}

// NewCore returns the Core addon.
func NewCore() *Core { return &Core{} }

func (c *Core) Name() string { return "core" }

// Ask lets clientconnect/request/response events through unmodified; Core
// has no veto policy of its own (an embedding library registers its own
// addon ahead of Core in the chain to add one).
func (c *Core) Ask(event string, payload any) (any, error) {
	switch event {
	case "clientconnect", "request", "response":
		return nil, nil
	default:
		return nil, nil
	}
}

// Tell observes lifecycle events. It currently has nothing to react to
// beyond what Core.Ask already decided; kept as a distinct method (rather
// than folded into Ask) because tell is genuinely fire-and-forget, and
// future default behavior (e.g. flow bookkeeping) belongs here, not in Ask.
func (c *Core) Tell(event string, payload any) {
	if fl, ok := payload.(*flow.HTTPFlow); ok && event == "response" {
		_ = fl // default shaping point: nothing to shape without an embedder policy yet
	}
}

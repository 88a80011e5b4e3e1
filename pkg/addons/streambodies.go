package addons

import (
	"log/slog"

	"github.com/wirespy/proxycore/pkg/flow"
)

// StreamBodies observes completed flows and reports when a body crossed
// the configured threshold. The streaming-vs-buffering decision itself is
// made earlier, in pkg/layer (which sizes its body buffer from the same
// threshold via ctx.Config.StreamLargeBodies, before the body is read);
// this addon's job is purely the after-the-fact observability an embedder
// gets for free by registering the default chain.
type StreamBodies struct {
	threshold int64
	logger    *slog.Logger
}

// NewStreamBodies returns the addon with the given threshold in bytes (0
// disables streaming — bodies are always fully buffered before forwarding).
// A nil logger falls back to slog.Default().
func NewStreamBodies(threshold int64, logger *slog.Logger) *StreamBodies {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamBodies{threshold: threshold, logger: logger}
}

func (s *StreamBodies) Name() string { return "streambodies" }

func (s *StreamBodies) Ask(event string, payload any) (any, error) {
	return nil, nil
}

// Streaming reports whether fl's response body should be treated as
// exceeding the threshold, so pkg/layer/pkg/server can log or branch on
// the decision without this addon needing a back-channel to the layer.
func (s *StreamBodies) Streaming(fl *flow.HTTPFlow) bool {
	if s.threshold <= 0 || fl.Response == nil || fl.Response.Content == nil {
		return false
	}
	return fl.Response.Content.Size() > s.threshold
}

// Tell reacts to every completed response flow, logging the ones that
// crossed the stream threshold — the one place Streaming runs against
// real traffic instead of only against test fixtures.
func (s *StreamBodies) Tell(event string, payload any) {
	if event != "response" {
		return
	}
	fl, ok := payload.(*flow.HTTPFlow)
	if !ok || !s.Streaming(fl) {
		return
	}
	s.logger.Debug("response body exceeded stream threshold",
		"threshold", s.threshold, "size", fl.Response.Content.Size())
}

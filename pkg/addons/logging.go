package addons

import (
	"log/slog"

	"github.com/wirespy/proxycore/pkg/channel"
)

// Logging mirrors channel "log" tell events to log/slog, so an embedder
// that does not register its own log sink still gets structured output on
// stderr by default.
type Logging struct {
	logger *slog.Logger
}

// NewLogging returns a Logging addon writing through logger. A nil logger
// falls back to slog.Default().
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) Name() string { return "logging" }

func (l *Logging) Ask(event string, payload any) (any, error) {
	return nil, nil
}

func (l *Logging) Tell(event string, payload any) {
	if event != "log" {
		return
	}
	entry, ok := payload.(channel.LogEntry)
	if !ok {
		return
	}
	switch entry.Level {
	case channel.LogDebug:
		l.logger.Debug(entry.Message)
	case channel.LogWarn:
		l.logger.Warn(entry.Message)
	case channel.LogError:
		l.logger.Error(entry.Message)
	default:
		l.logger.Info(entry.Message)
	}
}

// Package channel implements the controller channel: the ask/tell event
// bus connecting a connection handler's worker goroutine to the addon
// chain. A client library has no addon concept to ground this on, so the
// implementation follows idiomatic Go pub/sub: a registered, ordered list of Addon
// handlers invoked synchronously on the calling goroutine, which is what
// gives ask() its "suspend the connection thread until the chain returns"
// semantics for free — no separate consumer goroutine or queue is needed
// since Go closures already run on the caller's stack.
package channel

import (
	"sync"
	"sync/atomic"

	"github.com/wirespy/proxycore/pkg/errors"
)

// LogLevel mirrors the level field of a channel log event.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is the payload of a "log" tell event.
type LogEntry struct {
	Message string
	Level   LogLevel
}

// Handler is implemented by an addon that wants to observe or mutate
// events. Ask returns (replacement, error): a non-nil replacement swaps the
// payload the caller continues with; a non-nil error aborts the ask (a
// *pkg/errors.Error with ErrorTypeKill aborts quietly). Tell return values
// are ignored.
type Handler interface {
	// Name identifies the addon for logging and is never used for dispatch
	// ordering — registration order is dispatch order.
	Name() string
	// Ask is called for synchronous, payload-mutating events.
	Ask(event string, payload any) (replacement any, err error)
	// Tell is called for fire-and-forget notifications.
	Tell(event string, payload any)
}

// Channel is the ask/tell bus for one proxy server instance — Addons are
// shared read-mostly across every connection's calls into ask/tell, so
// Channel itself holds no per-connection state.
type Channel struct {
	mu        sync.RWMutex
	handlers  []Handler
	shouldExit int32
}

// New returns a Channel with no addons registered.
func New() *Channel {
	return &Channel{}
}

// Register appends an addon to the dispatch chain. Order is significant:
// addons run in registration order for both ask and tell.
func (c *Channel) Register(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Ask delivers a synchronous event to every registered addon in order. The
// first addon to return a non-nil replacement or error short-circuits the
// remaining chain. An error wrapping pkg/errors.ErrorTypeKill signals a
// deliberate, quiet veto (e.g. clientconnect refusing a connection).
func (c *Channel) Ask(event string, payload any) (any, error) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.RUnlock()

	for _, h := range handlers {
		replacement, err := h.Ask(event, payload)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			return replacement, nil
		}
	}
	return payload, nil
}

// Tell delivers a fire-and-forget event to every registered addon in
// order. It never blocks the caller on addon failures — Tell handlers
// cannot return an error by design.
func (c *Channel) Tell(event string, payload any) {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.RUnlock()

	for _, h := range handlers {
		h.Tell(event, payload)
	}
}

// Log delivers a "log" tell event, the one event the channel itself
// originates rather than forwarding from a layer.
func (c *Channel) Log(level LogLevel, message string) {
	c.Tell("log", LogEntry{Message: message, Level: level})
}

// RequestExit sets the should_exit signal. Blocking layers poll ShouldExit
// between iterations; it never interrupts an in-progress blocking read.
func (c *Channel) RequestExit() {
	atomic.StoreInt32(&c.shouldExit, 1)
}

// ShouldExit reports whether shutdown has been requested.
func (c *Channel) ShouldExit() bool {
	return atomic.LoadInt32(&c.shouldExit) != 0
}

// Kill returns an error that Ask callers (and ultimately the
// ConnectionHandler) recognize as a deliberate, quiet flow abort rather
// than a failure worth logging as a warning.
func Kill(reason string) error {
	return errors.NewKillError(reason)
}

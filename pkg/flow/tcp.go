package flow

import (
	"sync"
	"time"
)

// TCPMessage is one observed chunk of raw traffic relayed by the raw TCP
// layer, tagged with which side it came from.
type TCPMessage struct {
	FromClient bool
	Payload    []byte
	Timestamp  time.Time
}

// TCPFlow is the same shape as HTTPFlow without HTTP specifics: an
// append-only sequence of TCPMessage plus an optional terminal error.
// RawTCPLayer relays each direction on its own goroutine, so Messages and
// Error are cross-thread shared mutable state guarded by mu — the only
// synchronization this flow needs, since every other field is set once
// before the relay starts.
type TCPFlow struct {
	Connections Connections
	Messages    []TCPMessage
	Error       *Error

	mu sync.Mutex
}

// NewTCP creates a TCPFlow for a connection about to be relayed opaquely
// (raw TCP or an opaque HTTP/2 tunnel).
func NewTCP(conns Connections) *TCPFlow {
	return &TCPFlow{Connections: conns}
}

// Append records one observed message. Both relay directions call this
// concurrently, immediately before emitting the tcp_message addon event.
func (f *TCPFlow) Append(fromClient bool, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, TCPMessage{
		FromClient: fromClient,
		Payload:    append([]byte(nil), payload...),
		Timestamp:  time.Now(),
	})
}

// SetError records the flow-ending error, if any. A clean EOF on either
// side leaves Error nil.
func (f *TCPFlow) SetError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Error = &Error{Message: msg, Timestamp: time.Now()}
}

// Snapshot returns a copy of the messages observed so far, safe to read
// while the relay is still running concurrently.
func (f *TCPFlow) Snapshot() []TCPMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TCPMessage(nil), f.Messages...)
}

// Package timing measures the phases of one outbound origin connection:
// TCP connect, TLS handshake, and time-to-first-byte, surfaced on an
// HTTPFlow so an addon can log or alert on slow origins without
// instrumenting the layer stack itself.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures the phase durations of a single forwarded request.
type Metrics struct {
	TCPConnect   time.Duration
	TLSHandshake time.Duration
	TTFB         time.Duration
	TotalTime    time.Duration
}

// Timer accumulates phase boundaries for one request as the layer stack
// passes through dial, handshake, and response-read.
type Timer struct {
	start     time.Time
	tcpStart  time.Time
	tcpEnd    time.Time
	tlsStart  time.Time
	tlsEnd    time.Time
	ttfbStart time.Time
	ttfbEnd   time.Time
}

// NewTimer starts a timing session anchored to the current time.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) StartTCP() { t.tcpStart = time.Now() }
func (t *Timer) EndTCP()   { t.tcpEnd = time.Now() }

func (t *Timer) StartTLS() { t.tlsStart = time.Now() }
func (t *Timer) EndTLS()   { t.tlsEnd = time.Now() }

func (t *Timer) StartTTFB() { t.ttfbStart = time.Now() }
func (t *Timer) EndTTFB()   { t.ttfbEnd = time.Now() }

// Metrics finalizes the timer into a Metrics snapshot.
func (t *Timer) Metrics() Metrics {
	m := Metrics{TotalTime: time.Since(t.start)}
	if !t.tcpStart.IsZero() && !t.tcpEnd.IsZero() {
		m.TCPConnect = t.tcpEnd.Sub(t.tcpStart)
	}
	if !t.tlsStart.IsZero() && !t.tlsEnd.IsZero() {
		m.TLSHandshake = t.tlsEnd.Sub(t.tlsStart)
	}
	if !t.ttfbStart.IsZero() && !t.ttfbEnd.IsZero() {
		m.TTFB = t.ttfbEnd.Sub(t.ttfbStart)
	}
	return m
}

// String renders a human-readable summary for log lines.
func (m Metrics) String() string {
	return fmt.Sprintf("connect=%v tls=%v ttfb=%v total=%v", m.TCPConnect, m.TLSHandshake, m.TTFB, m.TotalTime)
}

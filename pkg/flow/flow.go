// Package flow models the HTTPFlow/TCPFlow aggregates a connection handler
// builds up as it runs a flow through the layer stack and hands off to
// addons, as a pair of new idiomatic Go structs — there is no equivalent
// in an HTTP client, which never models a connection pair as a flow
// proxy, and has no notion of an intercepted flow).
package flow

import (
	"time"

	"github.com/wirespy/proxycore/pkg/conn"
)

// Error records a flow-level failure: what happened, and when. It is
// distinct from pkg/errors.Error, which is the Go error value itself —
// Error here is the flow-model record an addon can inspect after the fact.
type Error struct {
	Message   string
	Timestamp time.Time
}

// Connections is the pair of connection objects every flow carries: the
// browser-facing client connection and the origin/upstream-facing server
// connection, borrowed from the RootContext for the life of the flow.
type Connections struct {
	Client *conn.Conn
	Server *conn.Conn
}

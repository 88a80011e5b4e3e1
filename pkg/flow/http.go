package flow

import (
	"time"

	"github.com/wirespy/proxycore/pkg/httpmsg"
	"github.com/wirespy/proxycore/pkg/timing"
)

// HTTPFlow aggregates one HTTP transaction: the request, an optional
// response, an optional error, the two connections it ran over, the mode
// string the server was operating in, and whether an addon intercepted
// (paused) it. Both Response and Error may be set at once — e.g. a response
// was received from the origin but failed to reach the client.
type HTTPFlow struct {
	Request     *httpmsg.Request
	Response    *httpmsg.Response
	Error       *Error
	Connections Connections
	Mode        string
	Intercepted bool
	Timings     *timing.Metrics
}

// New creates an HTTPFlow for a freshly read request head, the point where
// a flow is born.
func New(req *httpmsg.Request, conns Connections, mode string) *HTTPFlow {
	return &HTTPFlow{Request: req, Connections: conns, Mode: mode}
}

// SetError records a flow-level error without discarding an already-set
// Response, matching the "both may be set" invariant of the flow model.
func (f *HTTPFlow) SetError(msg string) {
	f.Error = &Error{Message: msg, Timestamp: time.Now()}
}

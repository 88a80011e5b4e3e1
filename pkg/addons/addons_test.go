package addons

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/wirespy/proxycore/pkg/buffer"
	"github.com/wirespy/proxycore/pkg/channel"
	"github.com/wirespy/proxycore/pkg/flow"
	"github.com/wirespy/proxycore/pkg/httpmsg"
)

func TestDefaultChainOrder(t *testing.T) {
	chain := Default(1024, "user:pass", nil, nil)
	if len(chain) != 3 {
		t.Fatalf("expected 3 default addons, got %d", len(chain))
	}
	names := []string{chain[0].Name(), chain[1].Name(), chain[2].Name()}
	want := []string{"core", "streambodies", "upstream_auth"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected chain order: %v", names)
		}
	}
}

func TestCoreAskPassesThrough(t *testing.T) {
	c := NewCore()
	replacement, err := c.Ask("request", "payload")
	if err != nil || replacement != nil {
		t.Fatalf("expected Core.Ask to pass through, got (%v, %v)", replacement, err)
	}
}

func TestStreamBodiesBelowThreshold(t *testing.T) {
	s := NewStreamBodies(100, nil)
	buf := buffer.New(0)
	defer buf.Close()
	buf.Write([]byte("small"))
	fl := &flow.HTTPFlow{Response: &httpmsg.Response{Message: httpmsg.Message{Content: buf}}}
	if s.Streaming(fl) {
		t.Error("expected small body to stay below threshold")
	}
}

func TestStreamBodiesAboveThreshold(t *testing.T) {
	s := NewStreamBodies(4, nil)
	buf := buffer.New(0)
	defer buf.Close()
	buf.Write([]byte("this is definitely more than four bytes"))
	fl := &flow.HTTPFlow{Response: &httpmsg.Response{Message: httpmsg.Message{Content: buf}}}
	if !s.Streaming(fl) {
		t.Error("expected body over threshold to report streaming")
	}
}

func TestStreamBodiesDisabledWhenThresholdZero(t *testing.T) {
	s := NewStreamBodies(0, nil)
	buf := buffer.New(0)
	defer buf.Close()
	buf.Write([]byte("anything"))
	fl := &flow.HTTPFlow{Response: &httpmsg.Response{Message: httpmsg.Message{Content: buf}}}
	if s.Streaming(fl) {
		t.Error("expected streaming disabled when threshold is 0")
	}
}

func TestStreamBodiesNilResponse(t *testing.T) {
	s := NewStreamBodies(10, nil)
	fl := &flow.HTTPFlow{}
	if s.Streaming(fl) {
		t.Error("expected no streaming decision without a response")
	}
}

func TestStreamBodiesTellLogsWhenOverThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewStreamBodies(4, logger)

	body := buffer.New(0)
	defer body.Close()
	body.Write([]byte("well over four bytes"))
	fl := &flow.HTTPFlow{Response: &httpmsg.Response{Message: httpmsg.Message{Content: body}}}

	s.Tell("response", fl)

	if buf.Len() == 0 {
		t.Fatal("expected a log line when the response body exceeds the stream threshold")
	}
}

func TestStreamBodiesTellIgnoresOtherEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewStreamBodies(4, logger)

	body := buffer.New(0)
	defer body.Close()
	body.Write([]byte("well over four bytes"))
	fl := &flow.HTTPFlow{Response: &httpmsg.Response{Message: httpmsg.Message{Content: body}}}

	s.Tell("request", fl)

	if buf.Len() != 0 {
		t.Fatal("expected no log output for a non-response event")
	}
}

func TestUpstreamAuthHeaderFor(t *testing.T) {
	a := NewUpstreamAuth("alice:secret", map[string]bool{"excluded.internal": true})

	header := a.HeaderFor("example.com")
	if header == "" {
		t.Fatal("expected a Proxy-Authorization header value")
	}
	if header[:6] != "Basic " {
		t.Fatalf("expected Basic scheme, got %q", header)
	}

	if a.HeaderFor("excluded.internal") != "" {
		t.Error("expected no header for an excluded host")
	}
}

func TestUpstreamAuthEmptyCredentials(t *testing.T) {
	a := NewUpstreamAuth("", nil)
	if a.HeaderFor("example.com") != "" {
		t.Error("expected no header when no credentials configured")
	}
}

func TestLoggingDispatchesByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	l := NewLogging(logger)

	l.Tell("log", channel.LogEntry{Message: "oops", Level: channel.LogWarn})
	if buf.Len() == 0 {
		t.Fatal("expected log output")
	}
	if !bytes.Contains(buf.Bytes(), []byte("oops")) {
		t.Fatal("expected message text in log output")
	}
}

func TestLoggingIgnoresOtherEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	l := NewLogging(logger)

	l.Tell("response", "not a log entry")
	if buf.Len() != 0 {
		t.Fatal("expected no output for a non-log event")
	}
}

func TestLoggingNilLoggerFallsBackToDefault(t *testing.T) {
	l := NewLogging(nil)
	if l.logger == nil {
		t.Fatal("expected NewLogging(nil) to fall back to slog.Default()")
	}
}

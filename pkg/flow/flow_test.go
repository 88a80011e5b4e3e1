package flow

import (
	"sync"
	"testing"

	"github.com/wirespy/proxycore/pkg/httpmsg"
)

func TestNewHTTPFlow(t *testing.T) {
	req := &httpmsg.Request{Method: "GET"}
	conns := Connections{}
	f := New(req, conns, "regular")
	if f.Request != req || f.Mode != "regular" {
		t.Fatalf("unexpected flow: %+v", f)
	}
	if f.Response != nil || f.Error != nil {
		t.Fatal("expected new flow to have no response or error")
	}
}

func TestHTTPFlowSetErrorPreservesResponse(t *testing.T) {
	f := New(&httpmsg.Request{Method: "GET"}, Connections{}, "regular")
	f.Response = &httpmsg.Response{StatusCode: 200}

	f.SetError("client disconnected mid-write")

	if f.Response == nil || f.Response.StatusCode != 200 {
		t.Fatal("expected response to survive SetError")
	}
	if f.Error == nil || f.Error.Message != "client disconnected mid-write" {
		t.Fatalf("unexpected error record: %+v", f.Error)
	}
	if f.Error.Timestamp.IsZero() {
		t.Fatal("expected error timestamp to be set")
	}
}

func TestNewTCPFlow(t *testing.T) {
	f := NewTCP(Connections{})
	if len(f.Messages) != 0 || f.Error != nil {
		t.Fatal("expected fresh TCP flow to have no messages or error")
	}
}

func TestTCPFlowAppend(t *testing.T) {
	f := NewTCP(Connections{})
	f.Append(true, []byte("hello"))
	f.Append(false, []byte("world"))

	if len(f.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(f.Messages))
	}
	if !f.Messages[0].FromClient || string(f.Messages[0].Payload) != "hello" {
		t.Fatalf("unexpected first message: %+v", f.Messages[0])
	}
	if f.Messages[1].FromClient || string(f.Messages[1].Payload) != "world" {
		t.Fatalf("unexpected second message: %+v", f.Messages[1])
	}
}

func TestTCPFlowAppendCopiesPayload(t *testing.T) {
	f := NewTCP(Connections{})
	payload := []byte("mutate me")
	f.Append(true, payload)
	payload[0] = 'X'

	if f.Messages[0].Payload[0] == 'X' {
		t.Fatal("expected Append to copy the payload, not alias it")
	}
}

func TestTCPFlowSetError(t *testing.T) {
	f := NewTCP(Connections{})
	f.SetError("connection reset")
	if f.Error == nil || f.Error.Message != "connection reset" {
		t.Fatalf("unexpected error record: %+v", f.Error)
	}
}

// TestTCPFlowAppendIsSafeForConcurrentDirections mirrors RawTCPLayer.Run,
// which appends from two goroutines (one per relay direction) at once; run
// under -race this would fail before Append and Snapshot took the lock.
func TestTCPFlowAppendIsSafeForConcurrentDirections(t *testing.T) {
	f := NewTCP(Connections{})
	const perSide = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perSide; i++ {
			f.Append(true, []byte("c"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perSide; i++ {
			f.Append(false, []byte("s"))
			_ = f.Snapshot()
		}
	}()
	wg.Wait()

	if len(f.Messages) != 2*perSide {
		t.Fatalf("expected %d messages, got %d", 2*perSide, len(f.Messages))
	}
}

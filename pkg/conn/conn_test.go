package conn

import (
	"net"
	"testing"
)

func TestNewClientCapturesAddrs(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewClient(server)
	if c.Metadata().LocalAddr == "" || c.Metadata().RemoteAddr == "" {
		t.Fatal("expected local and remote addresses to be captured")
	}
	if c.IsTLS() {
		t.Fatal("expected fresh connection to not be TLS")
	}
}

func TestConnIDsAreUnique(t *testing.T) {
	client1, server1 := net.Pipe()
	defer client1.Close()
	defer server1.Close()
	client2, server2 := net.Pipe()
	defer client2.Close()
	defer server2.Close()

	c1 := NewClient(server1)
	c2 := NewClient(server2)
	if c1.Metadata().ID == c2.Metadata().ID {
		t.Fatal("expected distinct monotonic connection IDs")
	}
}

func TestConnNetReturnsRawWhenNotTLS(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewServer(server)
	if c.Net() != server {
		t.Fatal("expected Net() to return the raw connection before any TLS upgrade")
	}
}

func TestConnCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	c := NewClient(server)
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error on first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got: %v", err)
	}
}

func TestConnTimestampIsSet(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewClient(server)
	if c.Timestamp().IsZero() {
		t.Fatal("expected connection timestamp to be set on creation")
	}
}

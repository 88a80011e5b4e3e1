// Package constants centralizes the default timeouts, limits, and buffer
// thresholds shared by the layer stack, server, and buffer packages.
package constants

import "time"

// Connection timeouts.
const (
	DefaultConnTimeout  = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 90 * time.Second

	// DefaultShutdownGracePeriod bounds how long ProxyServer.Shutdown waits
	// for in-flight connection handlers to drain before giving up on them.
	DefaultShutdownGracePeriod = 30 * time.Second
)

// HTTP body limits.
const (
	// MaxContentLength bounds a single body when no explicit BodySizeLimit
	// is configured, guarding against a malicious or buggy peer claiming an
	// unbounded Content-Length.
	MaxContentLength = 1024 * 1024 * 1024 // 1GB

	DefaultBodyChunkSize = 4096
)

// Buffer limits.
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024  // 4MB before a body buffer spills to disk
	MaxRawBufferSize    = 100 * 1024 * 1024 // 100MB cap for an unbounded raw buffer
)

// TLS MITM defaults.
const (
	DefaultMITMPort = 443
)

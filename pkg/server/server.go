package server

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wirespy/proxycore/pkg/channel"
	"github.com/wirespy/proxycore/pkg/conn"
	"github.com/wirespy/proxycore/pkg/errors"
)

// ProxyServer owns the listener and accept loop for one proxy instance. It
// is the embedder-facing type: construct with New, call ListenAndServe (or
// Serve on a caller-supplied listener), and Shutdown to drain.
type ProxyServer struct {
	opts    *Options
	channel *channel.Channel

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closing  int32
}

// New returns a ProxyServer configured by opts. Unset fields are filled
// with library defaults (see Options.withDefaults).
func New(opts Options) *ProxyServer {
	resolved := opts.withDefaults()
	ch := channel.New()
	for _, h := range resolved.addonChain() {
		ch.Register(h)
	}
	return &ProxyServer{opts: resolved, channel: ch}
}

// Channel returns the controller channel so an embedder can register
// additional addons or call RequestExit after construction.
func (s *ProxyServer) Channel() *channel.Channel {
	return s.channel
}

// ListenAndServe binds s.opts.Host:Port and serves until an unrecoverable
// accept error or Shutdown.
func (s *ProxyServer) ListenAndServe() error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewServerError("listen", "binding "+addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, dispatching each to its own goroutine
// running a ConnectionHandler. A transient Accept error (e.g. a momentary
// descriptor exhaustion) backs off exponentially instead of busy-looping,
// the same tolerance net/http.Server's accept loop applies.
func (s *ProxyServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	var backoff time.Duration
	for {
		rawConn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.closing) != 0 {
				s.wg.Wait()
				return nil
			}
			if ne, ok := err.(net.Error); ok && (ne.Timeout() || errors.IsTemporaryError(err)) {
				backoff = nextBackoff(backoff)
				time.Sleep(backoff)
				continue
			}
			return errors.NewServerError("accept", "listener error", err)
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(rawConn)
		}()
	}
}

// Shutdown requests a graceful stop: the listener is closed (no new
// accepts), in-flight connections are told to exit between requests via
// the controller channel, and Shutdown waits for every handler goroutine
// to return, up to the configured grace period. A handler still running
// past that point (e.g. a raw TCP relay blocked on an unresponsive peer)
// is abandoned rather than waited on forever; Shutdown returns a
// ServerError so the caller knows the drain did not complete cleanly.
func (s *ProxyServer) Shutdown() error {
	atomic.StoreInt32(&s.closing, 1)
	s.channel.RequestExit()

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-time.After(s.opts.ShutdownGracePeriod):
		return errors.NewServerError("shutdown", "grace period elapsed with handlers still running", nil)
	}
}

func (s *ProxyServer) handle(rawConn net.Conn) {
	clientConn := conn.NewClient(rawConn)
	defer clientConn.Close()

	h := &ConnectionHandler{
		client:  clientConn,
		channel: s.channel,
		config:  &s.opts.Config,
		mode:    s.opts.Mode,
	}
	h.Run()
}

func nextBackoff(prev time.Duration) time.Duration {
	const (
		min = 5 * time.Millisecond
		max = time.Second
	)
	if prev == 0 {
		return min
	}
	prev *= 2
	if prev > max {
		return max
	}
	return prev
}

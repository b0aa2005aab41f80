// Package transport owns the HTTP/2 client used to reach APNs.
package transport

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// Session is an HTTP/2-only client created on first use and released by Close.
// The http2.Transport never falls back to HTTP/1.1: a server that does not
// negotiate h2 fails the request.
type Session struct {
	timeout   time.Duration
	tlsConfig *tls.Config
	logger    *slog.Logger

	mu        sync.Mutex
	transport *http2.Transport
	client    *http.Client
	created   bool
	closed    bool
}

// NewSession returns an unopened session. A zero timeout leaves requests bounded
// only by their context.
func NewSession(timeout time.Duration, tlsConfig *tls.Config, logger *slog.Logger) *Session {
	return &Session{
		timeout:   timeout,
		tlsConfig: tlsConfig,
		logger:    logger,
	}
}

// Client returns the shared client, creating it on the first call. It returns
// nil after Close.
func (s *Session) Client() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if !s.created {
		s.transport = &http2.Transport{
			TLSClientConfig: s.tlsConfig,
			ReadIdleTimeout: 30 * time.Second,
			PingTimeout:     15 * time.Second,
		}
		s.client = &http.Client{
			Transport: s.transport,
			Timeout:   s.timeout,
		}
		s.created = true
		s.logger.Debug("HTTP/2 session created")
	}
	return s.client
}

// Created reports whether the client has been built and not yet released.
func (s *Session) Created() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Close releases the connection pool then the client. It is a no-op when the
// session was never opened and safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if !s.created {
		return
	}
	s.transport.CloseIdleConnections()
	s.client.CloseIdleConnections()
	s.transport = nil
	s.client = nil
	s.created = false
	s.logger.Debug("HTTP/2 session released")
}

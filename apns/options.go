package apns

import (
	"crypto/tls"
	"time"

	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds every request, including reading the response.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithBaseURL overrides the environment endpoint, e.g. for a proxy or a test
// server.
func WithBaseURL(u string) Option {
	return func(disp *Dispatcher) { disp.baseURL = u }
}

// WithTLSConfig sets the TLS configuration of the HTTP/2 transport.
func WithTLSConfig(c *tls.Config) Option {
	return func(disp *Dispatcher) { disp.tlsConfig = c }
}

// WithHTTPClient makes the dispatcher use c instead of its own HTTP/2 session.
// The caller keeps ownership of c; Close does not release it.
func WithHTTPClient(c HTTPClient) Option {
	return func(disp *Dispatcher) { disp.httpClient = c }
}

// WithTokenRefresh re-signs the provider token once it is older than d.
// Zero keeps the first token for the lifetime of the dispatcher.
func WithTokenRefresh(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.tokenRefresh = d }
}

// WithTokenCache shares provider tokens with other processes using the same key.
func WithTokenCache(c signer.Cache) Option {
	return func(disp *Dispatcher) { disp.tokenCache = c }
}

// WithTokenEncoding selects the token segment encoding. Ignored with WithSigner.
func WithTokenEncoding(e signer.Encoding) Option {
	return func(disp *Dispatcher) { disp.encoding = e }
}

// WithSigner replaces the token signer.
func WithSigner(s *signer.Signer) Option {
	return func(disp *Dispatcher) { disp.signer = s }
}

// Notification priorities.
const (
	PriorityImmediate     = 10
	PriorityConservePower = 5
)

// Values of the apns-push-type header.
const (
	PushTypeAlert      = "alert"
	PushTypeBackground = "background"
)

type sendOptions struct {
	id         string
	collapseID string
	expiration int64
	priority   int
	background bool
}

// SendOption sets per-request APNs headers.
type SendOption func(*sendOptions)

// WithID sets apns-id, the canonical UUID APNs echoes back. Blank ids are not
// sent and APNs generates one.
func WithID(id string) SendOption {
	return func(o *sendOptions) { o.id = id }
}

// WithCollapseID sets apns-collapse-id so the device shows only the latest of
// several notifications sharing the id. Blank ids are not sent.
func WithCollapseID(id string) SendOption {
	return func(o *sendOptions) { o.collapseID = id }
}

// WithExpiration sets apns-expiration in Unix seconds. Zero, the default, means
// APNs attempts delivery once and does not store the notification.
func WithExpiration(unix int64) SendOption {
	return func(o *sendOptions) { o.expiration = unix }
}

// WithExpirationTime is WithExpiration for a time.Time.
func WithExpirationTime(t time.Time) SendOption {
	return func(o *sendOptions) { o.expiration = t.Unix() }
}

// WithPriority sets apns-priority. Values are passed through unchecked.
func WithPriority(p int) SendOption {
	return func(o *sendOptions) { o.priority = p }
}

// Background marks the notification as a background (content-available) push.
func Background() SendOption {
	return func(o *sendOptions) { o.background = true }
}

// Package apns provides the client for the Apple Push Notification Service.
//
// A Dispatcher sends one notification per Send call over HTTP/2 to the APNs
// provider API, authenticating with a provider token signed from the team's
// .p8 key. The token and the HTTP/2 session are created on the first Send and
// shared by all later calls; Close releases them.
package apns

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tinywideclouds/go-apns-dispatcher/internal/codec"
	"github.com/tinywideclouds/go-apns-dispatcher/internal/transport"
	"github.com/tinywideclouds/go-apns-dispatcher/pkg/signer"
)

// DefaultTokenRefresh is how long a provider token is reused before it is
// re-signed. APNs rejects tokens older than one hour and throttles providers
// that refresh more often than every 20 minutes.
const DefaultTokenRefresh = 50 * time.Minute

const devicePath = "/3/device/"

// HTTPClient is the subset of *http.Client the dispatcher uses.
// This allows substituting the transport in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	Environment Environment
	KeyID       string
	TeamID      string
	// BundleID is sent as apns-topic (e.g. com.tinywide.messenger).
	BundleID string
	// P8KeyContent is the content of the .p8 file: the PEM block or its base64
	// body.
	P8KeyContent string
}

type Dispatcher struct {
	cred    signer.Credential
	topic   string
	baseURL string
	logger  *slog.Logger

	timeout      time.Duration
	tlsConfig    *tls.Config
	httpClient   HTTPClient
	tokenRefresh time.Duration
	tokenCache   signer.Cache
	encoding     signer.Encoding
	signer       *signer.Signer

	mu       sync.Mutex
	provider *signer.Provider
	session  *transport.Session
	closed   bool
}

// New creates a dispatcher. No key parsing and no connection happen here: the
// provider token is signed and the HTTP/2 session opened by the first Send. A
// malformed key therefore surfaces as a *signer.CredentialError from Send.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	baseURL := cfg.Environment.BaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("invalid APNs environment: %v", cfg.Environment)
	}

	d := &Dispatcher{
		cred: signer.Credential{
			PrivateKey: cfg.P8KeyContent,
			KeyID:      cfg.KeyID,
			TeamID:     cfg.TeamID,
		},
		topic:        cfg.BundleID,
		baseURL:      baseURL,
		tokenRefresh: DefaultTokenRefresh,
		logger:       logger.With("component", "APNSDispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.baseURL = strings.TrimRight(d.baseURL, "/")
	if d.signer == nil {
		d.signer = signer.New(signer.WithEncoding(d.encoding))
	}
	d.session = transport.NewSession(d.timeout, d.tlsConfig, d.logger)

	d.logger.Debug("APNs dispatcher configured",
		"environment", cfg.Environment.String(),
		"base_url", d.baseURL,
		"topic", d.topic,
		"key_id", cfg.KeyID,
	)
	return d, nil
}

// Send delivers notification to one device. The notification is encoded as JSON
// with camelCase property names; an apns2 payload.Payload or a map is sent as
// is.
//
// It returns nil on a 2xx response, a *DeliveryError for any other response or
// a transport failure, a *signer.CredentialError if the key cannot sign, and
// ErrClosed after Close. A notification the codec cannot encode yields a plain
// error wrapping the encoder's error; no request is sent. Nothing is retried.
//
// When APNs rejects the provider token as expired or invalid the token is
// dropped, locally and in the shared cache, so the next Send signs a new one.
func (d *Dispatcher) Send(ctx context.Context, notification interface{}, deviceToken string, opts ...SendOption) error {
	o := sendOptions{priority: PriorityImmediate}
	for _, opt := range opts {
		opt(&o)
	}

	client, provider, err := d.acquire()
	if err != nil {
		return err
	}

	// 1. Build Payload
	body, err := codec.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	// 2. Authorization
	token, err := provider.Token(ctx)
	if err != nil {
		return err
	}

	// 3. Request
	target := d.baseURL + devicePath + url.PathEscape(deviceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build APNs request: %w", err)
	}
	d.setHeaders(req, token, o)

	// 4. Send (Synchronous HTTP/2)
	resp, err := client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	// 5. Handle Response Codes
	apnsID := resp.Header.Get("apns-id")
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		d.logger.Debug("Notification accepted", "status", resp.StatusCode, "apns_id", apnsID)
		return nil
	}

	raw, readErr := io.ReadAll(resp.Body)
	derr := newDeliveryError(resp.StatusCode, raw, apnsID)
	if readErr != nil {
		derr.Err = fmt.Errorf("reading APNs response: %w", readErr)
	}
	if derr.ProviderTokenRejected() {
		provider.Invalidate(ctx, token)
	}
	return derr
}

func (d *Dispatcher) setHeaders(req *http.Request, token string, o sendOptions) {
	pushType := PushTypeAlert
	if o.background {
		pushType = PushTypeBackground
	}

	req.Header.Set("authorization", "bearer "+token)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("apns-topic", d.topic)
	req.Header.Set("apns-expiration", strconv.FormatInt(o.expiration, 10))
	req.Header.Set("apns-priority", strconv.Itoa(o.priority))
	req.Header.Set("apns-push-type", pushType)
	if strings.TrimSpace(o.id) != "" {
		req.Header.Set("apns-id", o.id)
	}
	if strings.TrimSpace(o.collapseID) != "" {
		req.Header.Set("apns-collapse-id", o.collapseID)
	}
}

// acquire returns the client and token provider, creating them on first use.
func (d *Dispatcher) acquire() (HTTPClient, *signer.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, nil, ErrClosed
	}
	if d.provider == nil {
		popts := []signer.ProviderOption{
			signer.WithRefreshInterval(d.tokenRefresh),
			signer.WithLogger(d.logger),
		}
		if d.tokenCache != nil {
			popts = append(popts, signer.WithCache(d.tokenCache))
		}
		d.provider = signer.NewProvider(d.cred, d.signer, popts...)
	}
	if d.httpClient != nil {
		return d.httpClient, d.provider, nil
	}
	return d.session.Client(), d.provider, nil
}

// Close releases the HTTP/2 session and the provider token. It is safe to call
// when nothing was sent and safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.session.Close()
	d.provider = nil
	d.logger.Debug("APNs dispatcher closed")
	return nil
}

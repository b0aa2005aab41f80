package signer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a shared cached token is trusted when the
// provider itself never refreshes. A token adopted from the cache is given up
// once it reaches this age. APNs rejects tokens older than one hour.
const DefaultCacheTTL = 55 * time.Minute

// Cache is the subset of a key/value store the Provider needs to share tokens
// between processes using the same signing key.
type Cache interface {
	// Get decodes the stored value into dest or returns an error on a miss.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

type cachedToken struct {
	Token    string `json:"token"`
	IssuedAt int64  `json:"issuedAt"`
}

// Provider memoizes the signed token for one credential. The first call to
// Token signs; concurrent first callers wait for that single computation and
// all observe the same token. A CredentialError is memoized as well, so a bad
// key fails every call identically.
type Provider struct {
	cred    Credential
	signer  *Signer
	refresh time.Duration
	cache   Cache
	logger  *slog.Logger

	mu       sync.Mutex
	token    string
	issuedAt time.Time
	adopted  bool
	err      error
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithRefreshInterval re-signs once the held token is older than d.
// Zero keeps the first token for the lifetime of the Provider.
func WithRefreshInterval(d time.Duration) ProviderOption {
	return func(p *Provider) { p.refresh = d }
}

// WithCache shares tokens through c.
func WithCache(c Cache) ProviderOption {
	return func(p *Provider) { p.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// NewProvider returns a Provider for cred. A nil signer means New().
func NewProvider(cred Credential, s *Signer, opts ...ProviderOption) *Provider {
	if s == nil {
		s = New()
	}
	p := &Provider{
		cred:   cred,
		signer: s,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "TokenProvider", "key_id", cred.KeyID)
	return p
}

// Token returns the current signed token.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return "", p.err
	}

	now := p.signer.now()
	if p.token != "" && !p.stale(now) {
		return p.token, nil
	}

	// 1. Another process may already hold a fresh token for this key.
	if p.cache != nil {
		if entry, ok := p.fromCache(ctx, now); ok {
			p.token = entry.Token
			p.issuedAt = time.Unix(entry.IssuedAt, 0)
			p.adopted = true
			p.logger.Debug("Provider token loaded from cache", "iat", entry.IssuedAt)
			return p.token, nil
		}
	}

	// 2. Sign.
	token, err := p.signer.SignAt(p.cred, now)
	if err != nil {
		p.err = err
		p.logger.Debug("Provider token signing failed", "err", err)
		return "", err
	}
	p.token = token
	p.issuedAt = time.Unix(now.Unix(), 0)
	p.adopted = false
	p.logger.Debug("Provider token signed", "iat", now.Unix())

	// 3. Publish. The token is already usable so cache errors are not returned.
	if p.cache != nil {
		entry := cachedToken{Token: token, IssuedAt: now.Unix()}
		if err := p.cache.Set(ctx, p.cacheKey(), entry, p.ttl()); err != nil {
			p.logger.Warn("Failed to store provider token in cache", "err", err)
		}
	}
	return token, nil
}

// IssuedAt reports when the held token was issued, or the zero time.
func (p *Provider) IssuedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issuedAt
}

// Invalidate drops token if it is still the held one, here and in the shared
// cache, so the next Token call signs again. Use it when APNs rejects the token
// as expired or invalid. A memoized CredentialError is kept.
func (p *Provider) Invalidate(ctx context.Context, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token == "" || token != p.token {
		return
	}
	p.token = ""
	p.issuedAt = time.Time{}
	p.adopted = false
	p.logger.Debug("Provider token invalidated")

	if p.cache != nil {
		if err := p.cache.Del(ctx, p.cacheKey()); err != nil {
			p.logger.Warn("Failed to evict provider token from cache", "err", err)
		}
	}
}

// stale reports whether the held token must be replaced. Without a refresh
// interval a self-signed token is kept forever, but one adopted from the cache
// was issued elsewhere and expires DefaultCacheTTL after its issue time.
func (p *Provider) stale(now time.Time) bool {
	age := now.Sub(p.issuedAt)
	if p.refresh > 0 {
		return age >= p.refresh
	}
	return p.adopted && age >= DefaultCacheTTL
}

func (p *Provider) ttl() time.Duration {
	if p.refresh > 0 {
		return p.refresh
	}
	return DefaultCacheTTL
}

func (p *Provider) fromCache(ctx context.Context, now time.Time) (cachedToken, bool) {
	var entry cachedToken
	if err := p.cache.Get(ctx, p.cacheKey(), &entry); err != nil || entry.Token == "" {
		return cachedToken{}, false
	}
	if now.Sub(time.Unix(entry.IssuedAt, 0)) >= p.ttl() {
		return cachedToken{}, false
	}
	return entry, true
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("apns:token:%s:%s:%s", p.cred.TeamID, p.cred.KeyID, p.signer.Encoding())
}

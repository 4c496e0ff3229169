package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// ErrNoCredentials is returned by TokenCache when no exchanger is configured.
var ErrNoCredentials = errors.New("spotify credentials not configured")

// Exchanger performs a credential exchange and reports the token's lifetime.
type Exchanger interface {
	Exchange(ctx context.Context) (token string, lifetime time.Duration, err error)
}

// CachedToken is a single access token and the instant it stops being valid.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at now.
func (t CachedToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// TokenCache holds one app-level access token and refreshes it through the
// exchanger when it is missing or expired.
//
// Two callers that both find the cache expired will both exchange; the later
// result overwrites the earlier one. The mutex only protects the cached value.
type TokenCache struct {
	exchanger Exchanger
	timeout   time.Duration
	now       func() time.Time
	log       *slog.Logger

	mu     sync.Mutex
	cached CachedToken
}

// TokenCacheOption configures a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

// WithTimeout bounds each exchange call.
func WithTimeout(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.timeout = d }
}

// NewTokenCache creates a cache in front of exchanger. A nil exchanger yields
// a cache that always fails with ErrNoCredentials.
func NewTokenCache(exchanger Exchanger, log *slog.Logger, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		exchanger: exchanger,
		now:       time.Now,
		log:       log.With("component", "spotify-token"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token if it is still valid and exchanges a new
// one otherwise.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()

	now := c.now()
	if cached.Valid(now) {
		c.log.Debug("using cached token", "expires_at", cached.ExpiresAt)
		return cached.Value, nil
	}

	if c.exchanger == nil {
		return "", ErrNoCredentials
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.log.Debug("exchanging new token")
	value, lifetime, err := c.exchanger.Exchange(ctx)
	if err != nil {
		c.log.Error("token exchange failed", tint.Err(err))
		return "", fmt.Errorf("token exchange: %w", err)
	}

	c.mu.Lock()
	c.cached = CachedToken{Value: value, ExpiresAt: now.Add(lifetime)}
	c.mu.Unlock()

	c.log.Info("fetched new token", "lifetime", lifetime)
	return value, nil
}

// Cached returns a copy of the currently cached token.
func (c *TokenCache) Cached() CachedToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

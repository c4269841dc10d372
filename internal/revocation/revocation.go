// Package revocation keeps a short-lived denylist of revoked access tokens.
//
// Lookups fail open: when the cache store can't be reached a token is reported as not revoked. Revoked tokens
// expire shortly anyway, and refusing every request during a cache outage is worse than honouring a revoked
// token for the length of the outage.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
)

const (
	// DefaultTTL is used when the token expiry can't be read.
	DefaultTTL = 60 * time.Minute
	// MinimumTTL keeps tokens that already expired on the list for a while.
	MinimumTTL = 5 * time.Minute
)

var ErrBlankToken = errors.New("token cannot be blank")

var revokedValue = []byte("true")

type Cache struct {
	store          cache.Store
	now            func() time.Time
	monitorService monitor.MonitorServiceInterface
}

type Option func(*Cache)

func WithMonitor(monitorService monitor.MonitorServiceInterface) Option {
	return func(c *Cache) {
		c.monitorService = monitorService
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(store cache.Store, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache store cannot be nil")
	}

	c := &Cache{store: store, now: time.Now, monitorService: monitor.NoopMonitorService{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Revoke adds token to the denylist until the token expires.
func (c *Cache) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrBlankToken
	}

	ttl := c.ttlFor(ctx, token)
	if err := c.store.Set(ctx, cache.RevokedTokenKey(token), revokedValue, ttl); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	log.Ctx(ctx).Debugf("token revoked for %s", ttl)
	return nil
}

// IsRevoked reports whether token is on the denylist.
func (c *Cache) IsRevoked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	value, found, err := c.store.Get(ctx, cache.RevokedTokenKey(token))
	if err != nil {
		log.Ctx(ctx).Warnf("revocation store unavailable, treating token as not revoked: %v", err)
		return false
	}

	revoked := found && string(value) == string(revokedValue)
	labels := monitor.RevocationLabels{Revoked: revoked}.ToMap()
	if err = c.monitorService.MonitorCounters(monitor.RevocationChecksCounterTag, labels); err != nil {
		log.Ctx(ctx).Debugf("recording revocation metric: %v", err)
	}
	return revoked
}

// ttlFor returns the remaining validity of token, read from its exp claim without verifying the signature.
func (c *Cache) ttlFor(ctx context.Context, token string) time.Duration {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		log.Ctx(ctx).Debugf("reading token expiry, using the default ttl: %v", err)
		return DefaultTTL
	}
	if claims.ExpiresAt == nil {
		return DefaultTTL
	}

	remaining := claims.ExpiresAt.Sub(c.now())
	if remaining <= 0 {
		return MinimumTTL
	}
	return remaining
}

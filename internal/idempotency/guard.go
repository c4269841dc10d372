// Package idempotency keeps two workers from running the same unit of work at the same time when a message is
// delivered more than once. The guard is advisory: it narrows duplicate processing, it doesn't make delivery
// exactly-once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

const (
	DefaultLockTTL = 10 * time.Minute
	DefaultTimeout = 5 * time.Minute
)

var (
	ErrAlreadyInProgress = errors.New("work is already in progress")
	ErrBlankKey          = errors.New("idempotency key cannot be blank")
)

var lockValue = []byte("true")

type Guard struct {
	store          cache.Store
	lockTTL        time.Duration
	timeout        time.Duration
	monitorService monitor.MonitorServiceInterface
}

type Option func(*Guard)

// WithLockTTL sets how long a lock outlives a worker that never released it.
func WithLockTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		g.lockTTL = ttl
	}
}

// WithTimeout bounds the work run by Run.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Guard) {
		g.timeout = timeout
	}
}

func WithMonitor(monitorService monitor.MonitorServiceInterface) Option {
	return func(g *Guard) {
		g.monitorService = monitorService
	}
}

func NewGuard(store cache.Store, opts ...Option) (*Guard, error) {
	if store == nil {
		return nil, errors.New("cache store cannot be nil")
	}

	g := &Guard{
		store:          store,
		lockTTL:        DefaultLockTTL,
		timeout:        DefaultTimeout,
		monitorService: monitor.NoopMonitorService{},
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.lockTTL <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", g.lockTTL)
	}
	if g.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", g.timeout)
	}
	return g, nil
}

// TryAcquire marks key as in progress and returns true, or returns false when another worker holds it. When the
// store can't be reached the key is treated as acquired so provisioning isn't blocked by a cache outage.
func (g *Guard) TryAcquire(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrBlankKey
	}

	acquired, err := g.store.SetIfAbsent(ctx, key, lockValue, g.lockTTL)
	if err != nil {
		log.Ctx(ctx).Warnf("idempotency store unavailable for key %s, proceeding without lock: %v", key, err)
		g.record(monitor.GuardOutcomeError)
		return true, nil
	}

	if !acquired {
		log.Ctx(ctx).Infof("key %s is already in progress", key)
		g.record(monitor.GuardOutcomeContended)
		return false, nil
	}

	g.record(monitor.GuardOutcomeAcquired)
	return true, nil
}

// Release deletes the lock for key.
func (g *Guard) Release(ctx context.Context, key string) error {
	if key == "" {
		return ErrBlankKey
	}
	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("releasing key %s: %w", key, err)
	}
	return nil
}

// Run executes fn while holding the lock for key, and releases it afterwards even when fn fails or panics. fn
// receives a context cancelled after the guard timeout. It returns ErrAlreadyInProgress without calling fn when
// the key is held by someone else.
func (g *Guard) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	acquired, err := g.TryAcquire(ctx, key)
	if err != nil {
		return fmt.Errorf("acquiring key %s: %w", key, err)
	}
	if !acquired {
		return ErrAlreadyInProgress
	}

	defer func() {
		// the lock must be released even if ctx was cancelled while fn was running
		if releaseErr := g.Release(tenantcontext.Detach(ctx), key); releaseErr != nil {
			log.Ctx(ctx).Errorf("lock will expire after %s: %v", g.lockTTL, releaseErr)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return fn(runCtx)
}

func (g *Guard) record(outcome string) {
	labels := monitor.GuardLabels{Outcome: outcome}.ToMap()
	if err := g.monitorService.MonitorCounters(monitor.GuardAcquisitionsCounterTag, labels); err != nil {
		log.Debugf("recording guard metric: %v", err)
	}
}

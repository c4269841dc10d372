package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
)

func newMemoryStore(t *testing.T) *cache.MemoryStore {
	t.Helper()
	store, err := cache.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func Test_NewGuard(t *testing.T) {
	_, err := NewGuard(nil)
	assert.EqualError(t, err, "cache store cannot be nil")

	store := newMemoryStore(t)

	_, err = NewGuard(store, WithLockTTL(0))
	assert.EqualError(t, err, "lock ttl must be positive, got 0s")

	_, err = NewGuard(store, WithTimeout(-time.Second))
	assert.EqualError(t, err, "timeout must be positive, got -1s")

	g, err := NewGuard(store)
	require.NoError(t, err)
	assert.Equal(t, DefaultLockTTL, g.lockTTL)
	assert.Equal(t, DefaultTimeout, g.timeout)
}

func Test_Guard_TryAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	g, err := NewGuard(newMemoryStore(t))
	require.NoError(t, err)

	key := cache.PostProvisioningKey("acme")

	acquired, err := g.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = g.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, acquired, "second acquire must report work in progress")

	acquired, err = g.TryAcquire(ctx, cache.PostProvisioningKey("globex"))
	require.NoError(t, err)
	assert.True(t, acquired, "keys are independent")

	require.NoError(t, g.Release(ctx, key))
	acquired, err = g.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, acquired)

	_, err = g.TryAcquire(ctx, "")
	assert.ErrorIs(t, err, ErrBlankKey)
	assert.ErrorIs(t, g.Release(ctx, ""), ErrBlankKey)
}

func Test_Guard_lockExpiresWithoutRelease(t *testing.T) {
	ctx := context.Background()
	g, err := NewGuard(newMemoryStore(t), WithLockTTL(100*time.Millisecond))
	require.NoError(t, err)

	acquired, err := g.TryAcquire(ctx, "crashed-worker")
	require.NoError(t, err)
	require.True(t, acquired)

	assert.Eventually(t, func() bool {
		acquired, err := g.TryAcquire(ctx, "crashed-worker")
		return err == nil && acquired
	}, 3*time.Second, 50*time.Millisecond)
}

func Test_Guard_TryAcquire_failsOpen(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMockStore(t)
	store.
		On("SetIfAbsent", ctx, "key", []byte("true"), DefaultLockTTL).
		Return(false, errors.New("connection refused")).
		Once()

	monitorService := monitor.NewMockMonitorService(t)
	monitorService.
		On("MonitorCounters", monitor.GuardAcquisitionsCounterTag, map[string]string{"outcome": "error"}).
		Return(nil).
		Once()

	g, err := NewGuard(store, WithMonitor(monitorService))
	require.NoError(t, err)

	getEntries := log.DefaultLogger.StartTest(log.WarnLevel)
	acquired, err := g.TryAcquire(ctx, "key")
	require.NoError(t, err)
	assert.True(t, acquired)

	entries := getEntries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "idempotency store unavailable for key key, proceeding without lock")
}

func Test_Guard_metrics(t *testing.T) {
	ctx := context.Background()
	monitorService := monitor.NewMockMonitorService(t)
	monitorService.
		On("MonitorCounters", monitor.GuardAcquisitionsCounterTag, map[string]string{"outcome": "acquired"}).
		Return(nil).
		Once().
		On("MonitorCounters", monitor.GuardAcquisitionsCounterTag, map[string]string{"outcome": "contended"}).
		Return(nil).
		Once()

	g, err := NewGuard(newMemoryStore(t), WithMonitor(monitorService))
	require.NoError(t, err)

	_, err = g.TryAcquire(ctx, "key")
	require.NoError(t, err)
	_, err = g.TryAcquire(ctx, "key")
	require.NoError(t, err)
}

func Test_Guard_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("runs and releases", func(t *testing.T) {
		g, err := NewGuard(newMemoryStore(t))
		require.NoError(t, err)

		called := false
		err = g.Run(ctx, "key", func(ctx context.Context) error {
			called = true
			held, acqErr := g.TryAcquire(ctx, "key")
			require.NoError(t, acqErr)
			assert.False(t, held, "the key is held while fn runs")
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)

		acquired, err := g.TryAcquire(ctx, "key")
		require.NoError(t, err)
		assert.True(t, acquired, "the key is released after fn")
	})

	t.Run("releases when fn fails", func(t *testing.T) {
		g, err := NewGuard(newMemoryStore(t))
		require.NoError(t, err)

		fnErr := errors.New("realm sync failed")
		err = g.Run(ctx, "key", func(context.Context) error { return fnErr })
		assert.ErrorIs(t, err, fnErr)

		acquired, err := g.TryAcquire(ctx, "key")
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("releases when fn panics", func(t *testing.T) {
		g, err := NewGuard(newMemoryStore(t))
		require.NoError(t, err)

		assert.Panics(t, func() {
			_ = g.Run(ctx, "key", func(context.Context) error { panic("boom") })
		})

		acquired, err := g.TryAcquire(ctx, "key")
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("does not run contended work", func(t *testing.T) {
		g, err := NewGuard(newMemoryStore(t))
		require.NoError(t, err)

		acquired, err := g.TryAcquire(ctx, "key")
		require.NoError(t, err)
		require.True(t, acquired)

		err = g.Run(ctx, "key", func(context.Context) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorIs(t, err, ErrAlreadyInProgress)
	})

	t.Run("bounds the work with the timeout", func(t *testing.T) {
		g, err := NewGuard(newMemoryStore(t), WithTimeout(50*time.Millisecond))
		require.NoError(t, err)

		err = g.Run(ctx, "key", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		acquired, err := g.TryAcquire(ctx, "key")
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("releases when the caller context is cancelled", func(t *testing.T) {
		store := newMemoryStore(t)
		g, err := NewGuard(store)
		require.NoError(t, err)

		cancellable, cancel := context.WithCancel(ctx)
		err = g.Run(cancellable, "key", func(context.Context) error {
			cancel()
			return nil
		})
		require.NoError(t, err)

		_, found, err := store.Get(ctx, "key")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("release failure is logged", func(t *testing.T) {
		store := cache.NewMockStore(t)
		store.On("SetIfAbsent", mock.Anything, "key", []byte("true"), DefaultLockTTL).Return(true, nil).Once()
		store.On("Delete", mock.Anything, "key").Return(errors.New("timeout")).Once()

		g, err := NewGuard(store)
		require.NoError(t, err)

		getEntries := log.DefaultLogger.StartTest(log.ErrorLevel)
		require.NoError(t, g.Run(ctx, "key", func(context.Context) error { return nil }))

		entries := getEntries()
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Message, "lock will expire after 10m0s: releasing key key: timeout")
	})
}

func Test_Guard_Run_concurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	g, err := NewGuard(newMemoryStore(t))
	require.NoError(t, err)

	var runs, skipped atomic.Int32
	start := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := g.Run(ctx, cache.PostProvisioningKey("acme"), func(context.Context) error {
				runs.Add(1)
				<-release
				return nil
			})
			if errors.Is(err, ErrAlreadyInProgress) {
				skipped.Add(1)
			}
		}()
	}

	close(start)
	assert.Eventually(t, func() bool { return skipped.Load() == 9 }, 3*time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
}

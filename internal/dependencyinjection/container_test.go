package dependencyinjection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/db"
)

func Test_SetInstance_GetInstance(t *testing.T) {
	ClearInstancesTestHelper(t)

	_, ok := GetInstance("router")
	assert.False(t, ok)

	SetInstance("router", "first")
	SetInstance("router", "second")
	got, ok := GetInstance("router")
	require.True(t, ok)
	assert.Equal(t, "second", got)
}

func Test_getOrCreate(t *testing.T) {
	ClearInstancesTestHelper(t)

	t.Run("builds once", func(t *testing.T) {
		var calls int
		var mu sync.Mutex
		newFn := func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return "codec", nil
		}

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := getOrCreate("codec", newFn)
				assert.NoError(t, err)
				assert.Equal(t, "codec", got)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, calls)
	})

	t.Run("failed builds are not stored", func(t *testing.T) {
		_, err := getOrCreate("broken", func() (string, error) { return "", errors.New("dial tcp: connection refused") })
		assert.EqualError(t, err, "dial tcp: connection refused")
		_, ok := GetInstance("broken")
		assert.False(t, ok)
	})

	t.Run("an instance of another type", func(t *testing.T) {
		_, err := getOrCreate("codec", func() (int, error) { return 1, nil })
		assert.EqualError(t, err, "instance codec has type string, expected int")
	})
}

func Test_DeleteAndCloseInstanceByKey(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		ClearInstancesTestHelper(t)
		assert.NotPanics(t, func() { DeleteAndCloseInstanceByKey(ctx, "missing") })
	})

	t.Run("instance that is not a closer", func(t *testing.T) {
		ClearInstancesTestHelper(t)
		SetInstance("name", "value")
		DeleteAndCloseInstanceByKey(ctx, "name")
		_, ok := GetInstance("name")
		assert.False(t, ok)
	})

	t.Run("a pool is closed", func(t *testing.T) {
		ClearInstancesTestHelper(t)
		pool := db.NewMockDBConnectionPool(t, "admin")
		pool.On("Close").Return(errors.New("already closed")).Once()

		SetInstance(AdminDBConnectionPoolInstanceName, pool)
		DeleteAndCloseInstanceByKey(ctx, AdminDBConnectionPoolInstanceName)
		_, ok := GetInstance(AdminDBConnectionPoolInstanceName)
		assert.False(t, ok)
	})
}

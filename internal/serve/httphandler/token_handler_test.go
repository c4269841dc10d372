package httphandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/revocation"
)

func Test_RevokeTokenHandler(t *testing.T) {
	store, err := cache.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	revocations, err := revocation.NewCache(store)
	require.NoError(t, err)
	handler := RevokeTokenHandler{Revocations: revocations}

	t.Run("without bearer token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/tokens/revoke", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revokes the bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tokens/revoke", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.True(t, revocations.IsRevoked(context.Background(), "some-token"))
		assert.False(t, revocations.IsRevoked(context.Background(), "other-token"))
	})
}

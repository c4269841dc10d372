package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
)

const CacheStoreInstanceName = "cache_store_instance"

// NewCacheStore creates the store shared by the idempotency guard and the revocation cache, or retrieves the one
// already created.
func NewCacheStore(ctx context.Context, opts cache.StoreOptions) (cache.Store, error) {
	return getOrCreate(CacheStoreInstanceName, func() (cache.Store, error) {
		log.Ctx(ctx).Infof("⚙️ Setting up %s cache store", opts.Type)
		store, err := cache.NewStore(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("creating cache store: %w", err)
		}
		return store, nil
	})
}

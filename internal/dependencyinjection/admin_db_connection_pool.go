package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

const AdminDBConnectionPoolInstanceName = "admin_db_connection_pool_instance"

type DBConnectionPoolOptions struct {
	DatabaseURL string
	PoolConfig  db.DBPoolConfig
}

// NewAdminDBConnectionPool opens the pool of the tenants registry database once per process.
func NewAdminDBConnectionPool(ctx context.Context, opts DBConnectionPoolOptions) (db.DBConnectionPool, error) {
	return getOrCreate(AdminDBConnectionPoolInstanceName, func() (db.DBConnectionPool, error) {
		log.Ctx(ctx).Infof("opening the registry database pool at %s", utils.RedactDSN(opts.DatabaseURL))
		pool, err := db.OpenDBConnectionPoolWithConfig(ctx, opts.DatabaseURL, opts.PoolConfig)
		if err != nil {
			return nil, fmt.Errorf("opening registry database pool: %w", err)
		}
		return pool, nil
	})
}

// Package rowfilter restricts the rows visible to a transaction to the tenant executing it. The restriction is a
// transaction-local Postgres setting read by the row-level security policies that enable_tenant_isolation creates
// on tenant-scoped tables.
package rowfilter

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

// CurrentTenantSetting is the setting the isolation policies compare tenant_id against.
const CurrentTenantSetting = "app.current_tenant_id"

const setTenantQuery = "SELECT set_config($1, $2, true)"

// unsupportedFilterCodes signal a database that doesn't know the filter mechanism. Isolation is opt-in, so these
// are not errors.
var unsupportedFilterCodes = map[pq.ErrorCode]string{
	"42704": "undefined_object",
	"42883": "undefined_function",
	"42P01": "undefined_table",
	"42P02": "undefined_parameter",
}

// EnableForCurrentTransaction restricts tx to the rows of the tenant in ctx. Without a tenant ID in ctx it's a
// no-op and the transaction runs unfiltered, which is what system operations rely on.
func EnableForCurrentTransaction(ctx context.Context, tx db.SQLExecuter) error {
	tenantID, ok := tenantcontext.TenantID(ctx)
	if !ok {
		return nil
	}

	if _, err := tx.ExecContext(ctx, setTenantQuery, CurrentTenantSetting, tenantID.String()); err != nil {
		return ignoreUnsupported(ctx, fmt.Errorf("enabling tenant filter: %w", err))
	}
	return nil
}

// DisableForCurrentTransaction lifts the restriction. It's safe to call when the filter was never enabled.
func DisableForCurrentTransaction(ctx context.Context, tx db.SQLExecuter) error {
	if _, err := tx.ExecContext(ctx, setTenantQuery, CurrentTenantSetting, ""); err != nil {
		return ignoreUnsupported(ctx, fmt.Errorf("disabling tenant filter: %w", err))
	}
	return nil
}

func ignoreUnsupported(ctx context.Context, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if name, ok := unsupportedFilterCodes[pqErr.Code]; ok {
			log.Ctx(ctx).Debugf("ignoring tenant filter error (%s): %v", name, err)
			return nil
		}
	}
	return err
}

// RunInTenantTransaction runs atomicFunction in a transaction filtered to the tenant in ctx. The filter is enabled
// before atomicFunction runs and disabled when it returns, whatever the outcome.
func RunInTenantTransaction[T any](ctx context.Context, dbConnectionPool db.DBConnectionPool, atomicFunction func(dbTx db.DBTransaction) (T, error)) (T, error) {
	return db.RunInTransactionWithResult(ctx, dbConnectionPool, nil, func(dbTx db.DBTransaction) (result T, err error) {
		if err = EnableForCurrentTransaction(ctx, dbTx); err != nil {
			return result, err
		}

		defer func() {
			if disableErr := DisableForCurrentTransaction(ctx, dbTx); disableErr != nil {
				if err == nil {
					err = disableErr
					return
				}
				log.Ctx(ctx).Warnf("disabling tenant filter after failure: %v", disableErr)
			}
		}()

		return atomicFunction(dbTx)
	})
}

// RunInTenantTransactionWithoutResult is RunInTenantTransaction for functions without a result.
func RunInTenantTransactionWithoutResult(ctx context.Context, dbConnectionPool db.DBConnectionPool, atomicFunction func(dbTx db.DBTransaction) error) error {
	_, err := RunInTenantTransaction(ctx, dbConnectionPool, func(dbTx db.DBTransaction) (any, error) {
		return nil, atomicFunction(dbTx)
	})
	return err
}

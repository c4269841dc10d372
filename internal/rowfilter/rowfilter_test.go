package rowfilter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

func Test_EnableForCurrentTransaction(t *testing.T) {
	tenantID := uuid.New()

	t.Run("no tenant ID is a no-op", func(t *testing.T) {
		dbTx := db.NewMockDBTransaction(t)
		require.NoError(t, EnableForCurrentTransaction(context.Background(), dbTx))
		require.NoError(t, EnableForCurrentTransaction(tenantcontext.Set(context.Background(), "acme", uuid.Nil), dbTx))
	})

	t.Run("sets the tenant for the transaction", func(t *testing.T) {
		ctx := tenantcontext.Set(context.Background(), "acme", tenantID)
		dbTx := db.NewMockDBTransaction(t)
		dbTx.On("ExecContext", ctx, setTenantQuery, []interface{}{CurrentTenantSetting, tenantID.String()}).
			Return(driver.RowsAffected(1), nil).Once()

		require.NoError(t, EnableForCurrentTransaction(ctx, dbTx))
	})

	t.Run("unsupported mechanism is ignored", func(t *testing.T) {
		ctx := tenantcontext.Set(context.Background(), "acme", tenantID)
		for _, code := range []pq.ErrorCode{"42704", "42883", "42P01", "42P02"} {
			dbTx := db.NewMockDBTransaction(t)
			dbTx.On("ExecContext", ctx, setTenantQuery, []interface{}{CurrentTenantSetting, tenantID.String()}).
				Return(nil, &pq.Error{Code: code}).Once()

			assert.NoError(t, EnableForCurrentTransaction(ctx, dbTx), string(code))
		}
	})

	t.Run("other errors are returned", func(t *testing.T) {
		ctx := tenantcontext.Set(context.Background(), "acme", tenantID)
		dbTx := db.NewMockDBTransaction(t)
		dbTx.On("ExecContext", ctx, setTenantQuery, []interface{}{CurrentTenantSetting, tenantID.String()}).
			Return(nil, &pq.Error{Code: "57P01", Message: "terminating connection"}).Once()

		err := EnableForCurrentTransaction(ctx, dbTx)
		require.ErrorContains(t, err, "enabling tenant filter")
	})
}

func Test_DisableForCurrentTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("resets the setting even without a tenant", func(t *testing.T) {
		dbTx := db.NewMockDBTransaction(t)
		dbTx.On("ExecContext", ctx, setTenantQuery, []interface{}{CurrentTenantSetting, ""}).
			Return(driver.RowsAffected(1), nil).Twice()

		require.NoError(t, DisableForCurrentTransaction(ctx, dbTx))
		require.NoError(t, DisableForCurrentTransaction(ctx, dbTx))
	})

	t.Run("unsupported mechanism is ignored", func(t *testing.T) {
		dbTx := db.NewMockDBTransaction(t)
		dbTx.On("ExecContext", ctx, setTenantQuery, []interface{}{CurrentTenantSetting, ""}).
			Return(nil, &pq.Error{Code: "42883"}).Once()

		require.NoError(t, DisableForCurrentTransaction(ctx, dbTx))
	})
}

func Test_RunInTenantTransaction(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenantcontext.Set(context.Background(), "acme", tenantID)
	enableArgs := []interface{}{CurrentTenantSetting, tenantID.String()}
	disableArgs := []interface{}{CurrentTenantSetting, ""}

	newTx := func(t *testing.T, calls *[]string) *db.MockDBTransaction {
		dbTx := db.NewMockDBTransaction(t)
		dbTx.On("ExecContext", ctx, setTenantQuery, enableArgs).
			Return(driver.RowsAffected(1), nil).Once().
			Run(func(mock.Arguments) { *calls = append(*calls, "enable") })
		dbTx.On("ExecContext", ctx, setTenantQuery, disableArgs).
			Return(driver.RowsAffected(1), nil).Once().
			Run(func(mock.Arguments) { *calls = append(*calls, "disable") })
		return dbTx
	}

	t.Run("enables, runs, disables and commits", func(t *testing.T) {
		var calls []string
		dbTx := newTx(t, &calls)
		dbTx.On("Commit").Return(nil).Once().
			Run(func(mock.Arguments) { calls = append(calls, "commit") })
		pool := db.NewMockDBConnectionPool(t, "acme")
		pool.On("BeginTxx", ctx, (*sql.TxOptions)(nil)).Return(dbTx, nil).Once()

		got, err := RunInTenantTransaction(ctx, pool, func(db.DBTransaction) (int, error) {
			calls = append(calls, "work")
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, []string{"enable", "work", "disable", "commit"}, calls)
	})

	t.Run("disables and rolls back when the work fails", func(t *testing.T) {
		var calls []string
		dbTx := newTx(t, &calls)
		dbTx.On("Rollback").Return(nil).Once().
			Run(func(mock.Arguments) { calls = append(calls, "rollback") })
		pool := db.NewMockDBConnectionPool(t, "acme")
		pool.On("BeginTxx", ctx, (*sql.TxOptions)(nil)).Return(dbTx, nil).Once()

		wantErr := errors.New("constraint violated")
		err := RunInTenantTransactionWithoutResult(ctx, pool, func(db.DBTransaction) error {
			calls = append(calls, "work")
			return wantErr
		})
		require.ErrorIs(t, err, wantErr)
		assert.Equal(t, []string{"enable", "work", "disable", "rollback"}, calls)
	})

	t.Run("work doesn't run when the filter can't be enabled", func(t *testing.T) {
		dbTx := db.NewMockDBTransaction(t)
		dbTx.On("ExecContext", ctx, setTenantQuery, enableArgs).
			Return(nil, errors.New("connection lost")).Once()
		dbTx.On("Rollback").Return(nil).Once()
		pool := db.NewMockDBConnectionPool(t, "acme")
		pool.On("BeginTxx", ctx, (*sql.TxOptions)(nil)).Return(dbTx, nil).Once()

		err := RunInTenantTransactionWithoutResult(ctx, pool, func(db.DBTransaction) error {
			t.Fatal("work must not run unfiltered")
			return nil
		})
		require.ErrorContains(t, err, "enabling tenant filter: connection lost")
	})
}

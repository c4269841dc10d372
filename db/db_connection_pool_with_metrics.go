//nolint:wrapcheck // Wrapper structs, no extra context needed
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
)

// DBConnectionPoolWithMetrics is a DBConnectionPool whose queries, including the ones of its transactions, are
// measured by the monitor service.
type DBConnectionPoolWithMetrics struct {
	dbConnectionPool DBConnectionPool
	SQLExecuterWithMetrics
}

var _ DBConnectionPool = (*DBConnectionPoolWithMetrics)(nil)

func NewDBConnectionPoolWithMetrics(dbConnectionPool DBConnectionPool, monitorService monitor.MonitorServiceInterface) (*DBConnectionPoolWithMetrics, error) {
	if dbConnectionPool == nil {
		return nil, fmt.Errorf("db connection pool cannot be nil")
	}
	if monitorService == nil {
		return nil, fmt.Errorf("monitor service cannot be nil")
	}
	return &DBConnectionPoolWithMetrics{
		dbConnectionPool:       dbConnectionPool,
		SQLExecuterWithMetrics: *NewSQLExecuterWithMetrics(dbConnectionPool, monitorService),
	}, nil
}

func (p *DBConnectionPoolWithMetrics) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	dbTx, err := p.dbConnectionPool.BeginTxx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting a new transaction: %w", err)
	}
	return &DBTransactionWithMetrics{
		dbTransaction:          dbTx,
		SQLExecuterWithMetrics: *NewSQLExecuterWithMetrics(dbTx, p.monitorService),
	}, nil
}

func (p *DBConnectionPoolWithMetrics) Close() error {
	return p.dbConnectionPool.Close()
}

func (p *DBConnectionPoolWithMetrics) Ping(ctx context.Context) error {
	return p.dbConnectionPool.Ping(ctx)
}

func (p *DBConnectionPoolWithMetrics) SqlxDB(ctx context.Context) (*sqlx.DB, error) {
	return p.dbConnectionPool.SqlxDB(ctx)
}

func (p *DBConnectionPoolWithMetrics) DSN(ctx context.Context) (string, error) {
	return p.dbConnectionPool.DSN(ctx)
}

// DBTransactionWithMetrics is a DBTransaction whose queries are measured by the monitor service.
type DBTransactionWithMetrics struct {
	dbTransaction DBTransaction
	SQLExecuterWithMetrics
}

var _ DBTransaction = (*DBTransactionWithMetrics)(nil)

func (tx *DBTransactionWithMetrics) Commit() error {
	return tx.dbTransaction.Commit()
}

func (tx *DBTransactionWithMetrics) Rollback() error {
	return tx.dbTransaction.Rollback()
}

// NewOpenerWithMetrics returns an OpenerFunc that opens pools with cfg and measures their queries.
func NewOpenerWithMetrics(cfg DBPoolConfig, monitorService monitor.MonitorServiceInterface) OpenerFunc {
	return func(ctx context.Context, dataSourceName string) (DBConnectionPool, error) {
		pool, err := OpenDBConnectionPoolWithConfig(ctx, dataSourceName, cfg)
		if err != nil {
			return nil, err
		}
		poolWithMetrics, err := NewDBConnectionPoolWithMetrics(pool, monitorService)
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		return poolWithMetrics, nil
	}
}

//nolint:wrapcheck // Wrapper structs, no extra context needed
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// DBPoolConfig holds the sql.DB pool tunables. Every tenant database gets its own pool built from the same config.
type DBPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

var DefaultDBPoolConfig = DBPoolConfig{
	MaxOpenConns:    20,
	MaxIdleConns:    2,
	ConnMaxIdleTime: 10 * time.Second,
	ConnMaxLifetime: 5 * time.Minute,
}

func (c DBPoolConfig) apply(sqlxDB *sqlx.DB) {
	sqlxDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlxDB.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	sqlxDB.SetConnMaxLifetime(c.ConnMaxLifetime)
}

// SQLExecuter is the query surface shared by *sqlx.DB and *sqlx.Tx.
type SQLExecuter interface {
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	sqlx.PreparerContext
	sqlx.QueryerContext
	Rebind(query string) string
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DBConnectionPool is the opaque connection handle the tenant router hands out.
type DBConnectionPool interface {
	SQLExecuter
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error)
	Close() error
	Ping(ctx context.Context) error
	SqlxDB(ctx context.Context) (*sqlx.DB, error)
	DSN(ctx context.Context) (string, error)
}

type DBTransaction interface {
	SQLExecuter
	Rollback() error
	Commit() error
}

var (
	_ SQLExecuter   = (*sqlx.DB)(nil)
	_ SQLExecuter   = (*sqlx.Tx)(nil)
	_ DBTransaction = (*sqlx.Tx)(nil)
)

// OpenerFunc opens a pool for a data source name. The tenant manager receives one so tests can open mocks instead.
type OpenerFunc func(ctx context.Context, dataSourceName string) (DBConnectionPool, error)

// sqlxPool adapts *sqlx.DB to DBConnectionPool and remembers the DSN it was opened with.
type sqlxPool struct {
	*sqlx.DB
	dsn string
}

var _ DBConnectionPool = (*sqlxPool)(nil)

func (p *sqlxPool) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	return p.DB.BeginTxx(ctx, opts)
}

func (p *sqlxPool) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *sqlxPool) SqlxDB(context.Context) (*sqlx.DB, error) {
	if p.DB == nil {
		return nil, errors.New("sqlx.DB is not initialized")
	}
	return p.DB, nil
}

func (p *sqlxPool) DSN(context.Context) (string, error) {
	return p.dsn, nil
}

// NewDBConnectionPool wraps an already opened sqlx.DB, as sqlmock hands out in tests.
func NewDBConnectionPool(sqlxDB *sqlx.DB, dataSourceName string) DBConnectionPool {
	return &sqlxPool{DB: sqlxDB, dsn: dataSourceName}
}

// OpenDBConnectionPoolWithConfig opens a postgres pool tuned with cfg. The pool is only returned once the database
// answers a ping.
func OpenDBConnectionPoolWithConfig(ctx context.Context, dataSourceName string, cfg DBPoolConfig) (DBConnectionPool, error) {
	sqlxDB, err := sqlx.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	cfg.apply(sqlxDB)

	if err = sqlxDB.PingContext(ctx); err != nil {
		_ = sqlxDB.Close()
		return nil, fmt.Errorf("pinging postgres pool: %w", err)
	}

	return NewDBConnectionPool(sqlxDB, dataSourceName), nil
}

func OpenDBConnectionPool(ctx context.Context, dataSourceName string) (DBConnectionPool, error) {
	return OpenDBConnectionPoolWithConfig(ctx, dataSourceName, DefaultDBPoolConfig)
}

// ClosePool closes pool unless it is nil or already closed. A pool that fails to ping counts as closed.
func ClosePool(ctx context.Context, pool DBConnectionPool) error {
	if pool == nil {
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		log.Ctx(ctx).Debugf("skipping close of an unreachable pool: %v", err)
		return nil
	}
	return pool.Close()
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNoDataSources = errors.New("no data sources found")

// DataSourceRouter picks the connection pool for the operation that owns ctx.
type DataSourceRouter interface {
	GetDataSource(ctx context.Context) (DBConnectionPool, error)
	GetAllDataSources() ([]DBConnectionPool, error)
	AnyDataSource() (DBConnectionPool, error)
}

// SQLExecutorWithRouter resolves the data source before every statement, so a single executor serves every tenant
// database.
type SQLExecutorWithRouter struct {
	router DataSourceRouter
}

var _ SQLExecuter = (*SQLExecutorWithRouter)(nil)

func NewSQLExecutorWithRouter(router DataSourceRouter) (*SQLExecutorWithRouter, error) {
	if router == nil {
		return nil, errors.New("data source router is nil")
	}
	return &SQLExecutorWithRouter{router: router}, nil
}

// routed resolves the pool of ctx and runs fn on it.
func routed[T any](ctx context.Context, router DataSourceRouter, op string, fn func(DBConnectionPool) (T, error)) (T, error) {
	pool, err := router.GetDataSource(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("resolving data source for %s: %w", op, err)
	}
	return fn(pool)
}

func (s SQLExecutorWithRouter) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	_, err := routed(ctx, s.router, "GetContext", func(p DBConnectionPool) (struct{}, error) {
		return struct{}{}, p.GetContext(ctx, dest, query, args...)
	})
	return err
}

func (s SQLExecutorWithRouter) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	_, err := routed(ctx, s.router, "SelectContext", func(p DBConnectionPool) (struct{}, error) {
		return struct{}{}, p.SelectContext(ctx, dest, query, args...)
	})
	return err
}

func (s SQLExecutorWithRouter) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return routed(ctx, s.router, "ExecContext", func(p DBConnectionPool) (sql.Result, error) {
		return p.ExecContext(ctx, query, args...)
	})
}

func (s SQLExecutorWithRouter) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return routed(ctx, s.router, "QueryContext", func(p DBConnectionPool) (*sql.Rows, error) {
		return p.QueryContext(ctx, query, args...)
	})
}

func (s SQLExecutorWithRouter) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return routed(ctx, s.router, "QueryxContext", func(p DBConnectionPool) (*sqlx.Rows, error) {
		return p.QueryxContext(ctx, query, args...)
	})
}

func (s SQLExecutorWithRouter) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return routed(ctx, s.router, "PrepareContext", func(p DBConnectionPool) (*sql.Stmt, error) {
		return p.PrepareContext(ctx, query)
	})
}

// QueryRowxContext returns nil when no data source resolves, *sqlx.Row has no way to carry the error.
func (s SQLExecutorWithRouter) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	row, _ := routed(ctx, s.router, "QueryRowxContext", func(p DBConnectionPool) (*sqlx.Row, error) {
		return p.QueryRowxContext(ctx, query, args...), nil
	})
	return row
}

// Rebind uses any registered pool since every data source runs postgres, falling back to the dollar bindvar.
func (s SQLExecutorWithRouter) Rebind(query string) string {
	if pool, err := s.router.AnyDataSource(); err == nil {
		return pool.Rebind(query)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func (s SQLExecutorWithRouter) DriverName() string {
	if pool, err := s.router.AnyDataSource(); err == nil {
		return pool.DriverName()
	}
	return ""
}

// ConnectionPoolWithRouter is a DBConnectionPool delegating every call to the pool resolved for the calling
// context.
type ConnectionPoolWithRouter struct {
	SQLExecutorWithRouter
}

var _ DBConnectionPool = (*ConnectionPoolWithRouter)(nil)

func NewConnectionPoolWithRouter(router DataSourceRouter) (*ConnectionPoolWithRouter, error) {
	executor, err := NewSQLExecutorWithRouter(router)
	if err != nil {
		return nil, fmt.Errorf("creating routed connection pool: %w", err)
	}
	return &ConnectionPoolWithRouter{SQLExecutorWithRouter: *executor}, nil
}

func (m ConnectionPoolWithRouter) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	return routed(ctx, m.router, "BeginTxx", func(p DBConnectionPool) (DBTransaction, error) {
		return p.BeginTxx(ctx, opts)
	})
}

func (m ConnectionPoolWithRouter) Ping(ctx context.Context) error {
	_, err := routed(ctx, m.router, "Ping", func(p DBConnectionPool) (struct{}, error) {
		return struct{}{}, p.Ping(ctx)
	})
	return err
}

func (m ConnectionPoolWithRouter) SqlxDB(ctx context.Context) (*sqlx.DB, error) {
	return routed(ctx, m.router, "SqlxDB", func(p DBConnectionPool) (*sqlx.DB, error) {
		return p.SqlxDB(ctx)
	})
}

func (m ConnectionPoolWithRouter) DSN(ctx context.Context) (string, error) {
	return routed(ctx, m.router, "DSN", func(p DBConnectionPool) (string, error) {
		return p.DSN(ctx)
	})
}

// Close closes every pool the router knows. A failing pool doesn't stop the others from being closed.
func (m ConnectionPoolWithRouter) Close() error {
	pools, err := m.router.GetAllDataSources()
	if err != nil {
		return fmt.Errorf("listing data sources to close: %w", err)
	}
	if len(pools) == 0 {
		return fmt.Errorf("closing routed connection pool: %w", ErrNoDataSources)
	}

	var errs []error
	for _, pool := range pools {
		if closeErr := pool.Close(); closeErr != nil {
			errs = append(errs, fmt.Errorf("closing data source: %w", closeErr))
		}
	}
	return errors.Join(errs...)
}

package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type testInterface interface {
	mock.TestingT
	Cleanup(func())
}

// MockSQLExecuter is a mock implementation of SQLExecuter, embedded by the pool and transaction mocks.
type MockSQLExecuter struct {
	mock.Mock
}

func (m *MockSQLExecuter) DriverName() string {
	return m.Called().String(0)
}

func (m *MockSQLExecuter) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	a := m.Called(ctx, query, args)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(sql.Result), a.Error(1)
}

func (m *MockSQLExecuter) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return m.Called(ctx, dest, query, args).Error(0)
}

func (m *MockSQLExecuter) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return m.Called(ctx, dest, query, args).Error(0)
}

func (m *MockSQLExecuter) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	a := m.Called(ctx, query)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(*sql.Stmt), a.Error(1)
}

func (m *MockSQLExecuter) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	a := m.Called(ctx, query, args)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(*sql.Rows), a.Error(1)
}

func (m *MockSQLExecuter) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	a := m.Called(ctx, query, args)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(*sqlx.Rows), a.Error(1)
}

func (m *MockSQLExecuter) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	a := m.Called(ctx, query, args)
	if a.Get(0) == nil {
		return nil
	}
	return a.Get(0).(*sqlx.Row)
}

func (m *MockSQLExecuter) Rebind(query string) string {
	return m.Called(query).String(0)
}

// MockDBTransaction is a mock implementation of DBTransaction.
type MockDBTransaction struct {
	MockSQLExecuter
}

var _ DBTransaction = (*MockDBTransaction)(nil)

func (m *MockDBTransaction) Commit() error {
	return m.Called().Error(0)
}

func (m *MockDBTransaction) Rollback() error {
	return m.Called().Error(0)
}

func NewMockDBTransaction(t testInterface) *MockDBTransaction {
	m := &MockDBTransaction{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockDBConnectionPool is a mock implementation of DBConnectionPool. It's the handle type the tenant router tests
// register and resolve.
type MockDBConnectionPool struct {
	MockSQLExecuter
	Name string
}

var _ DBConnectionPool = (*MockDBConnectionPool)(nil)

func (m *MockDBConnectionPool) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	a := m.Called(ctx, opts)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(DBTransaction), a.Error(1)
}

func (m *MockDBConnectionPool) Close() error {
	return m.Called().Error(0)
}

func (m *MockDBConnectionPool) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDBConnectionPool) SqlxDB(ctx context.Context) (*sqlx.DB, error) {
	a := m.Called(ctx)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(*sqlx.DB), a.Error(1)
}

func (m *MockDBConnectionPool) DSN(ctx context.Context) (string, error) {
	a := m.Called(ctx)
	return a.String(0), a.Error(1)
}

// NewMockDBConnectionPool creates a named pool mock that asserts its expectations on cleanup.
func NewMockDBConnectionPool(t testInterface, name string) *MockDBConnectionPool {
	m := &MockDBConnectionPool{Name: name}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockDataSourceRouter is a mock implementation of DataSourceRouter.
type MockDataSourceRouter struct {
	mock.Mock
}

var _ DataSourceRouter = (*MockDataSourceRouter)(nil)

func (m *MockDataSourceRouter) GetDataSource(ctx context.Context) (DBConnectionPool, error) {
	a := m.Called(ctx)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(DBConnectionPool), a.Error(1)
}

func (m *MockDataSourceRouter) GetAllDataSources() ([]DBConnectionPool, error) {
	a := m.Called()
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).([]DBConnectionPool), a.Error(1)
}

func (m *MockDataSourceRouter) AnyDataSource() (DBConnectionPool, error) {
	a := m.Called()
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(DBConnectionPool), a.Error(1)
}

func NewMockDataSourceRouter(t testInterface) *MockDataSourceRouter {
	m := &MockDataSourceRouter{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

var tenantRowColumns = []string{"id", "realm", "name", "secret", "configuration", "resource_status", "created_at", "updated_at"}

func newManagerWithSQLMock(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		sqlDB.Close()
	})

	pool := db.NewDBConnectionPool(sqlx.NewDb(sqlDB, "postgres"), "")
	return NewManager(WithDatabase(pool)), sqlMock
}

func tenantRow(id uuid.UUID, realm string, status ResourceStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tenantRowColumns).
		AddRow(id.String(), realm, "Acme Corp", []byte("s3cr3t"), []byte(`{"passwordPolicy":{"minLength":10}}`), string(status), now, now)
}

func Test_Manager_AddTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts a sanitized realm", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		id := uuid.New()
		sqlMock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("acme", "Acme Corp", []byte("s3cr3t"), sqlmock.AnyArg(), string(ProvisioningInitiated)).
			WillReturnRows(tenantRow(id, "acme", ProvisioningInitiated))

		tnt, err := m.AddTenant(ctx, NewTenant{Realm: "  ACME ", Name: "Acme Corp", Secret: []byte("s3cr3t")})
		require.NoError(t, err)
		assert.Equal(t, id, tnt.ID)
		assert.Equal(t, "acme", tnt.Realm)
		assert.Equal(t, ProvisioningInitiated, tnt.ResourceStatus)
		assert.Equal(t, 10, tnt.Configuration.PasswordPolicy.MinLength)
	})

	t.Run("duplicated realm", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		sqlMock.ExpectQuery(`INSERT INTO tenants`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_unique_realm"})

		_, err := m.AddTenant(ctx, NewTenant{Realm: "acme", Name: "Acme Corp"})
		require.ErrorIs(t, err, ErrDuplicatedTenantRealm)
	})

	t.Run("invalid input never reaches the database", func(t *testing.T) {
		m, _ := newManagerWithSQLMock(t)

		_, err := m.AddTenant(ctx, NewTenant{Realm: "acme"})
		require.ErrorIs(t, err, ErrEmptyTenantName)

		_, err = m.AddTenant(ctx, NewTenant{Realm: "acme corp", Name: "Acme Corp"})
		require.ErrorIs(t, err, utils.ErrInvalidRealm)
	})
}

func Test_Manager_GetTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("by realm", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		id := uuid.New()
		sqlMock.ExpectQuery(`SELECT .* FROM tenants WHERE realm = \$1`).
			WithArgs("acme").
			WillReturnRows(tenantRow(id, "acme", Active))

		tnt, err := m.GetTenantByRealm(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, id, tnt.ID)
		assert.Equal(t, ActiveTenantStatus, tnt.Status(ctx))
	})

	t.Run("by id, not found", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		id := uuid.New()
		sqlMock.ExpectQuery(`SELECT .* FROM tenants WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(sql.ErrNoRows)

		_, err := m.GetTenantByID(ctx, id)
		require.ErrorIs(t, err, ErrTenantDoesNotExist)
	})

	t.Run("unexpected error", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		sqlMock.ExpectQuery(`SELECT .* FROM tenants WHERE realm = \$1`).
			WillReturnError(errors.New("connection reset"))

		_, err := m.GetTenantByRealm(ctx, "acme")
		require.EqualError(t, err, "getting tenant by realm: connection reset")
	})
}

func Test_Manager_GetAllTenants(t *testing.T) {
	ctx := context.Background()

	t.Run("without filters", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		rows := tenantRow(uuid.New(), "acme", Active).
			AddRow(uuid.New().String(), "globex", "Globex", nil, nil, string(Deactivated), time.Now(), time.Now())
		sqlMock.ExpectQuery(`SELECT .* FROM tenants ORDER BY realm`).WillReturnRows(rows)

		tenants, err := m.GetAllTenants(ctx)
		require.NoError(t, err)
		require.Len(t, tenants, 2)
		assert.Equal(t, "globex", tenants[1].Realm)
		assert.Equal(t, TenantConfiguration{}, tenants[1].Configuration)
	})

	t.Run("filtered by status", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		sqlMock.ExpectQuery(`SELECT .* FROM tenants WHERE resource_status::text = ANY\(\$1\) ORDER BY realm`).
			WithArgs("{ACTIVE}").
			WillReturnRows(sqlmock.NewRows(tenantRowColumns))

		tenants, err := m.GetAllTenants(ctx, Active)
		require.NoError(t, err)
		assert.Empty(t, tenants)
	})
}

func Test_Manager_UpdateResourceStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("updates when the stored status matches", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		sqlMock.ExpectQuery(`UPDATE tenants SET resource_status = \$1`).
			WithArgs(string(ProvisioningInProgress), id.String(), string(ProvisioningInitiated)).
			WillReturnRows(tenantRow(id, "acme", ProvisioningInProgress))

		tnt, err := m.UpdateResourceStatus(ctx, id, ProvisioningInitiated, ProvisioningInProgress)
		require.NoError(t, err)
		assert.Equal(t, ProvisioningInProgress, tnt.ResourceStatus)
	})

	t.Run("concurrent update", func(t *testing.T) {
		m, sqlMock := newManagerWithSQLMock(t)
		sqlMock.ExpectQuery(`UPDATE tenants SET resource_status = \$1`).WillReturnError(sql.ErrNoRows)

		_, err := m.UpdateResourceStatus(ctx, id, ProvisioningInitiated, ProvisioningInProgress)
		require.ErrorIs(t, err, ErrConcurrentStatusUpdate)
	})
}

func Test_Manager_GetDSNForTenant(t *testing.T) {
	ctx := context.Background()
	adminPool := db.NewMockDBConnectionPool(t, "admin")
	adminPool.On("DSN", ctx).Return("postgres://localhost:5432/tenants?sslmode=disable", nil).Once()

	m := NewManager(WithDatabase(adminPool))
	dsn, err := m.GetDSNForTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/tenants?search_path=tenant_acme&sslmode=disable", dsn)
}

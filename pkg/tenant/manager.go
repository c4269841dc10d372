package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/db/router"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

type ManagerInterface interface {
	AddTenant(ctx context.Context, nt NewTenant) (*Tenant, error)
	GetTenantByRealm(ctx context.Context, realm string) (*Tenant, error)
	GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetAllTenants(ctx context.Context, statuses ...ResourceStatus) ([]Tenant, error)
	UpdateResourceStatus(ctx context.Context, id uuid.UUID, from, to ResourceStatus) (*Tenant, error)
	GetDSNForTenant(ctx context.Context, realm string) (string, error)
}

// Manager reads and writes the tenants registry in the admin database.
type Manager struct {
	db db.DBConnectionPool
}

var _ ManagerInterface = (*Manager)(nil)

type Option func(m *Manager)

func NewManager(opts ...Option) *Manager {
	m := Manager{}
	for _, opt := range opts {
		opt(&m)
	}
	return &m
}

func WithDatabase(dbConnectionPool db.DBConnectionPool) Option {
	return func(m *Manager) {
		m.db = dbConnectionPool
	}
}

const (
	tenantColumns         = "id, realm, name, secret, configuration, resource_status, created_at, updated_at"
	uniqueRealmConstraint = "idx_unique_realm"
)

// AddTenant inserts a tenant in the PROVISIONING_INITIATED status. The realm is sanitized before it's stored.
func (m *Manager) AddTenant(ctx context.Context, nt NewTenant) (*Tenant, error) {
	if err := nt.Validate(); err != nil {
		return nil, err
	}
	realm, err := utils.SanitizeRealm(nt.Realm)
	if err != nil {
		return nil, fmt.Errorf("sanitizing realm %q: %w", nt.Realm, err)
	}

	q := fmt.Sprintf(`
		INSERT INTO tenants (realm, name, secret, configuration, resource_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, tenantColumns)

	var t Tenant
	if err = m.db.GetContext(ctx, &t, q, realm, nt.Name, nt.Secret, nt.Configuration, ProvisioningInitiated); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == uniqueRealmConstraint {
			return nil, ErrDuplicatedTenantRealm
		}
		return nil, fmt.Errorf("inserting tenant %s: %w", realm, err)
	}
	return &t, nil
}

func (m *Manager) getTenant(ctx context.Context, filter string, arg interface{}) (*Tenant, error) {
	q := fmt.Sprintf("SELECT %s FROM tenants WHERE %s = $1", tenantColumns, filter)

	var t Tenant
	if err := m.db.GetContext(ctx, &t, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantDoesNotExist
		}
		return nil, fmt.Errorf("getting tenant by %s: %w", filter, err)
	}
	return &t, nil
}

func (m *Manager) GetTenantByRealm(ctx context.Context, realm string) (*Tenant, error) {
	return m.getTenant(ctx, "realm", realm)
}

func (m *Manager) GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return m.getTenant(ctx, "id", id)
}

// GetAllTenants returns the tenants ordered by realm. When statuses are given only tenants in one of them are
// returned.
func (m *Manager) GetAllTenants(ctx context.Context, statuses ...ResourceStatus) ([]Tenant, error) {
	q := fmt.Sprintf("SELECT %s FROM tenants", tenantColumns)
	var args []interface{}
	if len(statuses) > 0 {
		statusStrs := make([]string, 0, len(statuses))
		for _, s := range statuses {
			statusStrs = append(statusStrs, string(s))
		}
		q += " WHERE resource_status::text = ANY($1)"
		args = append(args, pq.Array(statusStrs))
	}
	q += " ORDER BY realm"

	tenants := []Tenant{}
	if err := m.db.SelectContext(ctx, &tenants, q, args...); err != nil {
		return nil, fmt.Errorf("getting tenants: %w", err)
	}
	return tenants, nil
}

// UpdateResourceStatus moves the tenant from one status to another. The update only applies when the stored status
// is still `from`, otherwise ErrConcurrentStatusUpdate is returned. Transition rules are enforced by callers.
func (m *Manager) UpdateResourceStatus(ctx context.Context, id uuid.UUID, from, to ResourceStatus) (*Tenant, error) {
	q := fmt.Sprintf(`
		UPDATE tenants SET resource_status = $1
		WHERE id = $2 AND resource_status = $3
		RETURNING %s`, tenantColumns)

	var t Tenant
	if err := m.db.GetContext(ctx, &t, q, to, id, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("updating tenant %s from %s to %s: %w", id, from, to, ErrConcurrentStatusUpdate)
		}
		return nil, fmt.Errorf("updating tenant %s resource status: %w", id, err)
	}
	return &t, nil
}

// GetDSNForTenant returns the DSN of the tenant schema, derived from the admin database DSN.
func (m *Manager) GetDSNForTenant(ctx context.Context, realm string) (string, error) {
	dataSourceName, err := m.db.DSN(ctx)
	if err != nil {
		return "", fmt.Errorf("getting admin database DSN: %w", err)
	}
	return router.GetDSNForTenant(dataSourceName, realm)
}

package tenant

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stellar/stellar-tenant-control-plane/db/router"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

// InMemoryManager is a ManagerInterface backed by a map, for tests that run the provisioning workflow without a
// database. Status updates keep the compare-and-set semantics of Manager.
type InMemoryManager struct {
	mu        sync.Mutex
	tenants   map[uuid.UUID]Tenant
	adminDSN  string
	statusLog []ResourceStatus
}

var _ ManagerInterface = (*InMemoryManager)(nil)

func NewInMemoryManagerFixture(t *testing.T, adminDSN string) *InMemoryManager {
	t.Helper()
	return &InMemoryManager{tenants: map[uuid.UUID]Tenant{}, adminDSN: adminDSN}
}

// CreateTenantFixture stores a tenant in the given status.
func CreateTenantFixture(t *testing.T, m *InMemoryManager, realm string, status ResourceStatus) *Tenant {
	t.Helper()

	tnt, err := m.AddTenant(context.Background(), NewTenant{Realm: realm, Name: realm + " corp"})
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	tnt.ResourceStatus = status
	m.tenants[tnt.ID] = *tnt
	m.statusLog = nil
	return tnt
}

func (m *InMemoryManager) AddTenant(_ context.Context, nt NewTenant) (*Tenant, error) {
	if err := nt.Validate(); err != nil {
		return nil, err
	}
	realm, err := utils.SanitizeRealm(nt.Realm)
	if err != nil {
		return nil, fmt.Errorf("sanitizing realm %q: %w", nt.Realm, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if existing.Realm == realm {
			return nil, ErrDuplicatedTenantRealm
		}
	}

	now := time.Now()
	tnt := Tenant{
		ID:             uuid.New(),
		Realm:          realm,
		Name:           nt.Name,
		Secret:         nt.Secret,
		Configuration:  nt.Configuration,
		ResourceStatus: ProvisioningInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.tenants[tnt.ID] = tnt
	m.statusLog = append(m.statusLog, ProvisioningInitiated)
	return &tnt, nil
}

func (m *InMemoryManager) GetTenantByRealm(_ context.Context, realm string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tnt := range m.tenants {
		if tnt.Realm == realm {
			return &tnt, nil
		}
	}
	return nil, ErrTenantDoesNotExist
}

func (m *InMemoryManager) GetTenantByID(_ context.Context, id uuid.UUID) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tnt, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantDoesNotExist
	}
	return &tnt, nil
}

func (m *InMemoryManager) GetAllTenants(_ context.Context, statuses ...ResourceStatus) ([]Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenants := []Tenant{}
	for _, tnt := range m.tenants {
		if len(statuses) == 0 || containsStatus(statuses, tnt.ResourceStatus) {
			tenants = append(tenants, tnt)
		}
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Realm < tenants[j].Realm })
	return tenants, nil
}

func (m *InMemoryManager) UpdateResourceStatus(_ context.Context, id uuid.UUID, from, to ResourceStatus) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tnt, ok := m.tenants[id]
	if !ok || tnt.ResourceStatus != from {
		return nil, fmt.Errorf("updating tenant %s from %s to %s: %w", id, from, to, ErrConcurrentStatusUpdate)
	}
	tnt.ResourceStatus = to
	tnt.UpdatedAt = time.Now()
	m.tenants[id] = tnt
	m.statusLog = append(m.statusLog, to)
	return &tnt, nil
}

func (m *InMemoryManager) GetDSNForTenant(_ context.Context, realm string) (string, error) {
	return router.GetDSNForTenant(m.adminDSN, realm)
}

// Statuses returns the statuses the tenants went through, in order.
func (m *InMemoryManager) Statuses() []ResourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ResourceStatus(nil), m.statusLog...)
}

func containsStatus(statuses []ResourceStatus, status ResourceStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

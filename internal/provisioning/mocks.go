package provisioning

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stellar/stellar-tenant-control-plane/internal/events/schemas"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

type testInterface interface {
	mock.TestingT
	Cleanup(func())
}

type MockDatabaseProvisioner struct {
	mock.Mock
}

var _ DatabaseProvisioner = (*MockDatabaseProvisioner)(nil)

func (m *MockDatabaseProvisioner) ProvisionDatabase(ctx context.Context, realm string) (string, error) {
	args := m.Called(ctx, realm)
	return args.String(0), args.Error(1)
}

func (m *MockDatabaseProvisioner) SyncDatabase(ctx context.Context, realm string) error {
	return m.Called(ctx, realm).Error(0)
}

func (m *MockDatabaseProvisioner) DropDatabase(ctx context.Context, realm string) error {
	return m.Called(ctx, realm).Error(0)
}

func NewMockDatabaseProvisioner(t testInterface) *MockDatabaseProvisioner {
	m := &MockDatabaseProvisioner{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type MockRealmProvisioner struct {
	mock.Mock
}

var _ RealmProvisioner = (*MockRealmProvisioner)(nil)

func (m *MockRealmProvisioner) ProvisionRealm(ctx context.Context, t tenant.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockRealmProvisioner) DeleteRealm(ctx context.Context, realm string) error {
	return m.Called(ctx, realm).Error(0)
}

func (m *MockRealmProvisioner) SyncIdentityProvider(ctx context.Context, realm string, idp IdentityProvider) error {
	return m.Called(ctx, realm, idp).Error(0)
}

func (m *MockRealmProvisioner) DeleteIdentityProvider(ctx context.Context, realm, alias string) error {
	return m.Called(ctx, realm, alias).Error(0)
}

func NewMockRealmProvisioner(t testInterface) *MockRealmProvisioner {
	m := &MockRealmProvisioner{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type MockService struct {
	mock.Mock
}

var _ ServiceInterface = (*MockService)(nil)

func (m *MockService) InitiateTenantCreation(ctx context.Context, nt tenant.NewTenant, adminEmail string) (*tenant.Tenant, error) {
	args := m.Called(ctx, nt, adminEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *MockService) InitiateTenantShutdown(ctx context.Context, realm, reason string) (*tenant.Tenant, error) {
	args := m.Called(ctx, realm, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Tenant), args.Error(1)
}

func (m *MockService) ProvisionDatabase(ctx context.Context, ref schemas.TenantRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockService) CompletePostProvisioning(ctx context.Context, ref schemas.TenantRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockService) ActivateTenant(ctx context.Context, ref schemas.TenantRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockService) ShutdownTenant(ctx context.Context, ref schemas.TenantRef) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockService) ApplyIdentityProvider(ctx context.Context, ref schemas.TenantRef, idp IdentityProvider, remove bool) error {
	return m.Called(ctx, ref, idp, remove).Error(0)
}

func NewMockService(t testInterface) *MockService {
	m := &MockService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

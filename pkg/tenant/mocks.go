package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type TenantManagerMock struct {
	mock.Mock
}

var _ ManagerInterface = (*TenantManagerMock)(nil)

func (m *TenantManagerMock) AddTenant(ctx context.Context, nt NewTenant) (*Tenant, error) {
	args := m.Called(ctx, nt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *TenantManagerMock) GetTenantByRealm(ctx context.Context, realm string) (*Tenant, error) {
	args := m.Called(ctx, realm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *TenantManagerMock) GetTenantByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *TenantManagerMock) GetAllTenants(ctx context.Context, statuses ...ResourceStatus) ([]Tenant, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Tenant), args.Error(1)
}

func (m *TenantManagerMock) UpdateResourceStatus(ctx context.Context, id uuid.UUID, from, to ResourceStatus) (*Tenant, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

func (m *TenantManagerMock) GetDSNForTenant(ctx context.Context, realm string) (string, error) {
	args := m.Called(ctx, realm)
	return args.String(0), args.Error(1)
}

type testInterface interface {
	mock.TestingT
	Cleanup(func())
}

func NewTenantManagerMock(t testInterface) *TenantManagerMock {
	m := &TenantManagerMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

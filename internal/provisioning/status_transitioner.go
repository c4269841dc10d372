// Package provisioning drives a tenant through the provisioning workflow: status transitions, the tenant database,
// the identity realm, and the events that chain those steps.
package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// StatusTransitioner is the only way business code changes a tenant's resource status. Every transition is
// validated against the provisioning state machine before it's persisted.
type StatusTransitioner struct {
	tenantManager  tenant.ManagerInterface
	monitorService monitor.MonitorServiceInterface
}

type StatusTransitionerOption func(st *StatusTransitioner)

func WithTransitionMonitor(monitorService monitor.MonitorServiceInterface) StatusTransitionerOption {
	return func(st *StatusTransitioner) {
		st.monitorService = monitorService
	}
}

func NewStatusTransitioner(tenantManager tenant.ManagerInterface, opts ...StatusTransitionerOption) (*StatusTransitioner, error) {
	if tenantManager == nil {
		return nil, fmt.Errorf("tenant manager cannot be nil")
	}

	st := &StatusTransitioner{
		tenantManager:  tenantManager,
		monitorService: monitor.NoopMonitorService{},
	}
	for _, opt := range opts {
		opt(st)
	}
	return st, nil
}

// Transition moves the tenant to the status `to`. It returns tenant.ErrInvalidTransition when the stored status
// can't reach `to`, and tenant.ErrConcurrentStatusUpdate when another worker changed the status in between.
func (st *StatusTransitioner) Transition(ctx context.Context, tenantID uuid.UUID, to tenant.ResourceStatus) (*tenant.Tenant, error) {
	t, err := st.tenantManager.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("getting tenant %s: %w", tenantID, err)
	}
	return st.transition(ctx, t, to)
}

func (st *StatusTransitioner) transition(ctx context.Context, t *tenant.Tenant, to tenant.ResourceStatus) (*tenant.Tenant, error) {
	from := t.ResourceStatus
	if err := from.TransitionTo(to); err != nil {
		return nil, fmt.Errorf("transitioning tenant %s: %w", t.Realm, err)
	}

	updated, err := st.tenantManager.UpdateResourceStatus(ctx, t.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("persisting status of tenant %s: %w", t.Realm, err)
	}

	labels := monitor.TransitionLabels{From: string(from), To: string(to)}.ToMap()
	if err = st.monitorService.MonitorCounters(monitor.ProvisioningTransitionsCounterTag, labels); err != nil {
		log.Ctx(ctx).Debugf("recording transition metric: %v", err)
	}
	log.Ctx(ctx).Infof("tenant %s moved from %s to %s", t.Realm, from, to)

	return updated, nil
}

// TransitionOrSkip is Transition for redelivered messages: when the tenant already left `from`, the step was done by
// an earlier delivery and skipped is true.
func (st *StatusTransitioner) TransitionOrSkip(ctx context.Context, tenantID uuid.UUID, from, to tenant.ResourceStatus) (t *tenant.Tenant, skipped bool, err error) {
	t, err = st.tenantManager.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, false, fmt.Errorf("getting tenant %s: %w", tenantID, err)
	}
	if t.ResourceStatus != from {
		log.Ctx(ctx).Infof("tenant %s is %s, skipping transition from %s to %s", t.Realm, t.ResourceStatus, from, to)
		return t, true, nil
	}

	updated, err := st.transition(ctx, t, to)
	if errors.Is(err, tenant.ErrConcurrentStatusUpdate) {
		log.Ctx(ctx).Infof("tenant %s status changed concurrently, skipping transition to %s", t.Realm, to)
		return t, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellar/go-stellar-sdk/support/log"
)

// ResourceStatus is the fine-grained provisioning status of a tenant's resources.
type ResourceStatus string

const (
	ProvisioningInitiated             ResourceStatus = "PROVISIONING_INITIATED"
	ProvisioningInProgress            ResourceStatus = "PROVISIONING_IN_PROGRESS"
	ProvisioningCompleted             ResourceStatus = "PROVISIONING_COMPLETED"
	ProvisioningFailed                ResourceStatus = "PROVISIONING_FAILED"
	ProvisioningPostActionsInitiated  ResourceStatus = "PROVISIONING_POST_ACTIONS_INITIATED"
	ProvisioningPostActionsInProgress ResourceStatus = "PROVISIONING_POST_ACTIONS_IN_PROGRESS"
	ProvisioningPostActionsCompleted  ResourceStatus = "PROVISIONING_POST_ACTIONS_COMPLETED"
	ProvisioningPostActionsFailed     ResourceStatus = "PROVISIONING_POST_ACTIONS_FAILED"
	Active                            ResourceStatus = "ACTIVE"
	ShutdownInitiated                 ResourceStatus = "SHUTDOWN_INITIATED"
	ShutdownInProgress                ResourceStatus = "SHUTDOWN_IN_PROGRESS"
	ShutdownCompleted                 ResourceStatus = "SHUTDOWN_COMPLETED"
	ShutdownFailed                    ResourceStatus = "SHUTDOWN_FAILED"
	Deactivated                       ResourceStatus = "DEACTIVATED"
)

// ResourceStatuses returns every resource status in lifecycle order.
func ResourceStatuses() []ResourceStatus {
	return []ResourceStatus{
		ProvisioningInitiated,
		ProvisioningInProgress,
		ProvisioningCompleted,
		ProvisioningFailed,
		ProvisioningPostActionsInitiated,
		ProvisioningPostActionsInProgress,
		ProvisioningPostActionsCompleted,
		ProvisioningPostActionsFailed,
		Active,
		ShutdownInitiated,
		ShutdownInProgress,
		ShutdownCompleted,
		ShutdownFailed,
		Deactivated,
	}
}

// resourceLifecycle is the provisioning lifecycle. Failure states only lead to teardown, a new attempt starts
// from a new tenant record.
var resourceLifecycle = NewStateMachine(
	Transition[ResourceStatus]{From: ProvisioningInitiated, To: ProvisioningInProgress},
	Transition[ResourceStatus]{From: ProvisioningInProgress, To: ProvisioningCompleted},
	Transition[ResourceStatus]{From: ProvisioningInProgress, To: ProvisioningFailed},
	Transition[ResourceStatus]{From: ProvisioningCompleted, To: ProvisioningPostActionsInitiated},
	Transition[ResourceStatus]{From: ProvisioningPostActionsInitiated, To: ProvisioningPostActionsInProgress},
	Transition[ResourceStatus]{From: ProvisioningPostActionsInitiated, To: ProvisioningPostActionsFailed},
	Transition[ResourceStatus]{From: ProvisioningPostActionsInProgress, To: ProvisioningPostActionsCompleted},
	Transition[ResourceStatus]{From: ProvisioningPostActionsInProgress, To: ProvisioningPostActionsFailed},
	Transition[ResourceStatus]{From: ProvisioningPostActionsCompleted, To: Active},
	// teardown
	Transition[ResourceStatus]{From: Active, To: ShutdownInitiated},
	Transition[ResourceStatus]{From: ProvisioningFailed, To: ShutdownInitiated},
	Transition[ResourceStatus]{From: ProvisioningPostActionsFailed, To: ShutdownInitiated},
	Transition[ResourceStatus]{From: ShutdownInitiated, To: ShutdownInProgress},
	Transition[ResourceStatus]{From: ShutdownInProgress, To: ShutdownCompleted},
	Transition[ResourceStatus]{From: ShutdownInProgress, To: ShutdownFailed},
	Transition[ResourceStatus]{From: ShutdownCompleted, To: Deactivated},
)

// TransitionTo validates the move from status to target.
func (status ResourceStatus) TransitionTo(target ResourceStatus) error {
	return resourceLifecycle.Check(status, target)
}

func (status ResourceStatus) CanTransitionTo(target ResourceStatus) bool {
	return resourceLifecycle.Allows(status, target)
}

// SourceStatuses returns the statuses that can transition to status, in lifecycle order.
func (status ResourceStatus) SourceStatuses() []ResourceStatus {
	return resourceLifecycle.Sources(status, ResourceStatuses())
}

func (status ResourceStatus) Validate() error {
	for _, s := range ResourceStatuses() {
		if s == status {
			return nil
		}
	}
	return fmt.Errorf("invalid resource status: %s", status)
}

// ToResourceStatus converts a case-insensitive string to a ResourceStatus.
func ToResourceStatus(s string) (ResourceStatus, error) {
	status := ResourceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

// TenantStatus is the coarse status exposed to consumers outside the provisioning pipeline.
type TenantStatus string

const (
	NewTenantStatus                    TenantStatus = "NEW"
	ProvisioningInProgressTenantStatus TenantStatus = "PROVISIONING_IN_PROGRESS"
	ProvisioningCompletedTenantStatus  TenantStatus = "PROVISIONING_COMPLETED"
	ProvisioningFailedTenantStatus     TenantStatus = "PROVISIONING_FAILED"
	ActiveTenantStatus                 TenantStatus = "ACTIVE"
	DeactivationInProgressTenantStatus TenantStatus = "DEACTIVATION_IN_PROGRESS"
	DeactivationFailedTenantStatus     TenantStatus = "DEACTIVATION_FAILED"
	DeactivatedTenantStatus            TenantStatus = "DEACTIVATED"
)

func TenantStatuses() []TenantStatus {
	return []TenantStatus{
		NewTenantStatus,
		ProvisioningInProgressTenantStatus,
		ProvisioningCompletedTenantStatus,
		ProvisioningFailedTenantStatus,
		ActiveTenantStatus,
		DeactivationInProgressTenantStatus,
		DeactivationFailedTenantStatus,
		DeactivatedTenantStatus,
	}
}

var tenantStatusByResourceStatus = map[ResourceStatus]TenantStatus{
	ProvisioningInitiated:             ProvisioningInProgressTenantStatus,
	ProvisioningInProgress:            ProvisioningInProgressTenantStatus,
	ProvisioningCompleted:             ProvisioningInProgressTenantStatus,
	ProvisioningFailed:                ProvisioningFailedTenantStatus,
	ProvisioningPostActionsInitiated:  ProvisioningInProgressTenantStatus,
	ProvisioningPostActionsInProgress: ProvisioningInProgressTenantStatus,
	ProvisioningPostActionsCompleted:  ProvisioningCompletedTenantStatus,
	ProvisioningPostActionsFailed:     ProvisioningFailedTenantStatus,
	Active:                            ActiveTenantStatus,
	ShutdownInitiated:                 DeactivationInProgressTenantStatus,
	ShutdownInProgress:                DeactivationInProgressTenantStatus,
	ShutdownCompleted:                 DeactivationInProgressTenantStatus,
	ShutdownFailed:                    DeactivationFailedTenantStatus,
	Deactivated:                       DeactivatedTenantStatus,
}

// ToTenantStatus reduces a resource status to its coarse TenantStatus. A status without a mapping reports NEW and
// logs a warning, since it means the mapping table fell behind the resource statuses.
func ToTenantStatus(ctx context.Context, status ResourceStatus) TenantStatus {
	tenantStatus, ok := tenantStatusByResourceStatus[status]
	if !ok {
		log.Ctx(ctx).Warnf("resource status %q has no tenant status mapping, reporting %s", status, NewTenantStatus)
		return NewTenantStatus
	}
	return tenantStatus
}

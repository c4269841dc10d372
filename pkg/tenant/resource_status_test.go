package tenant

import (
	"context"
	"testing"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ToTenantStatus(t *testing.T) {
	ctx := context.Background()
	want := map[ResourceStatus]TenantStatus{
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

	// every resource status must have an explicit entry, both here and in the mapping table
	require.Len(t, want, len(ResourceStatuses()))
	for _, status := range ResourceStatuses() {
		t.Run(string(status), func(t *testing.T) {
			wantStatus, ok := want[status]
			require.True(t, ok, "missing expectation for %s", status)
			_, mapped := tenantStatusByResourceStatus[status]
			require.True(t, mapped, "missing mapping for %s", status)

			got := ToTenantStatus(ctx, status)
			assert.Equal(t, wantStatus, got)
			assert.Contains(t, TenantStatuses(), got)
		})
	}
}

func Test_ToTenantStatus_unmappedReportsNew(t *testing.T) {
	getEntries := log.DefaultLogger.StartTest(log.WarnLevel)

	assert.Equal(t, NewTenantStatus, ToTenantStatus(context.Background(), ResourceStatus("SOMETHING_ELSE")))

	entries := getEntries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, `resource status "SOMETHING_ELSE" has no tenant status mapping`)
}

func Test_ResourceStatus_TransitionTo(t *testing.T) {
	testCases := []struct {
		from    ResourceStatus
		to      ResourceStatus
		wantErr bool
	}{
		{from: ProvisioningInitiated, to: ProvisioningInProgress},
		{from: ProvisioningInProgress, to: ProvisioningCompleted},
		{from: ProvisioningInProgress, to: ProvisioningFailed},
		{from: ProvisioningCompleted, to: ProvisioningPostActionsInitiated},
		{from: ProvisioningPostActionsInitiated, to: ProvisioningPostActionsInProgress},
		{from: ProvisioningPostActionsInProgress, to: ProvisioningPostActionsCompleted},
		{from: ProvisioningPostActionsInProgress, to: ProvisioningPostActionsFailed},
		{from: ProvisioningPostActionsCompleted, to: Active},
		{from: Active, to: ShutdownInitiated},
		{from: ShutdownInitiated, to: ShutdownInProgress},
		{from: ShutdownInProgress, to: ShutdownCompleted},
		{from: ShutdownInProgress, to: ShutdownFailed},
		{from: ShutdownCompleted, to: Deactivated},
		// skipping steps
		{from: ProvisioningInitiated, to: ProvisioningCompleted, wantErr: true},
		{from: ProvisioningInitiated, to: Active, wantErr: true},
		// going back
		{from: Active, to: ProvisioningInitiated, wantErr: true},
		{from: ProvisioningCompleted, to: ProvisioningInProgress, wantErr: true},
		// failures are terminal for the attempt
		{from: ProvisioningFailed, to: ProvisioningInProgress, wantErr: true},
		{from: ProvisioningPostActionsFailed, to: ProvisioningPostActionsInProgress, wantErr: true},
		{from: ShutdownFailed, to: ShutdownInProgress, wantErr: true},
		{from: Deactivated, to: Active, wantErr: true},
		// self transitions
		{from: Active, to: Active, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			err := tc.from.TransitionTo(tc.to)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.False(t, tc.from.CanTransitionTo(tc.to))
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func Test_ResourceStatus_SourceStatuses(t *testing.T) {
	assert.Empty(t, ProvisioningInitiated.SourceStatuses())
	assert.Equal(t, []ResourceStatus{ProvisioningPostActionsCompleted}, Active.SourceStatuses())
	assert.Equal(t,
		[]ResourceStatus{ProvisioningFailed, ProvisioningPostActionsFailed, Active},
		ShutdownInitiated.SourceStatuses(),
	)
}

func Test_ToResourceStatus(t *testing.T) {
	status, err := ToResourceStatus(" active ")
	require.NoError(t, err)
	assert.Equal(t, Active, status)

	_, err = ToResourceStatus("NOT_VALID")
	assert.EqualError(t, err, "invalid resource status: NOT_VALID")
}

func Test_StateMachine(t *testing.T) {
	type light string
	sm := NewStateMachine(
		Transition[light]{From: "red", To: "green"},
		Transition[light]{From: "green", To: "yellow"},
		Transition[light]{From: "yellow", To: "red"},
	)

	assert.True(t, sm.Allows("red", "green"))
	assert.False(t, sm.Allows("green", "red"))
	assert.False(t, sm.Allows("blue", "red"))

	require.NoError(t, sm.Check("yellow", "red"))
	err := sm.Check("red", "yellow")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.EqualError(t, err, "cannot transition from red to yellow: invalid status transition")

	assert.Equal(t, []light{"yellow"}, sm.Sources("red", []light{"red", "green", "yellow"}))
	assert.Empty(t, sm.Sources("blue", []light{"red", "green", "yellow"}))
}

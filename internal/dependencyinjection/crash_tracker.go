package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
)

const CrashTrackerInstanceName = "crash_tracker_instance"

// crashTrackerInstanceName keys the instances by type, a dry run and a Sentry tracker can coexist.
func crashTrackerInstanceName(crashTrackerType crashtracker.CrashTrackerType) string {
	return CrashTrackerInstanceName + "-" + string(crashTrackerType)
}

func NewCrashTracker(ctx context.Context, opts crashtracker.CrashTrackerOptions) (crashtracker.CrashTrackerClient, error) {
	return getOrCreate(crashTrackerInstanceName(opts.CrashTrackerType), func() (crashtracker.CrashTrackerClient, error) {
		client, err := crashtracker.GetClient(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("creating crash tracker: %w", err)
		}
		return client, nil
	})
}

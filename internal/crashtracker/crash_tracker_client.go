package crashtracker

import (
	"context"
	"time"

	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
)

// CrashTrackerClient reports failures that can't be returned to a caller, such as errors from message handlers.
// Reports carry the tenant and correlation ID found in the context.
type CrashTrackerClient interface {
	LogAndReportErrors(ctx context.Context, err error, msg string)
	LogAndReportMessages(ctx context.Context, msg string)
	FlushEvents(waitTime time.Duration) bool
	// Recover must be deferred directly by the goroutine it protects.
	Recover(ctx context.Context)
}

// tenantTags returns the tags that identify the operation that failed.
func tenantTags(ctx context.Context) map[string]string {
	tags := map[string]string{}
	if tr, ok := tenantcontext.Get(ctx); ok {
		tags[tenantcontext.RealmLogField] = tr.Realm
		if tr.HasTenantID() {
			tags[tenantcontext.TenantIDLogField] = tr.TenantID.String()
		}
	}
	if correlationID := tenantcontext.CorrelationID(ctx); correlationID != "" {
		tags[tenantcontext.CorrelationIDLogField] = correlationID
	}
	return tags
}

package tenantcontext

import "context"

// Snapshot is a copy of the tenant identity of an operation, used to hand it off to work that runs on a context
// that isn't derived from the original one (a pooled worker, a detached goroutine).
type Snapshot struct {
	tenant        *TenantRealm
	correlationID string
}

// Capture copies the tenant identity of ctx.
func Capture(ctx context.Context) Snapshot {
	snapshot := Snapshot{correlationID: CorrelationID(ctx)}
	if tr, ok := Get(ctx); ok {
		snapshot.tenant = &tr
	}
	return snapshot
}

// Restore re-establishes the captured identity on target in a new scope. A snapshot taken without a tenant clears
// whatever tenant target carried.
func (s Snapshot) Restore(target context.Context) context.Context {
	target = Clear(target)
	if s.tenant != nil {
		target = Set(target, s.tenant.Realm, s.tenant.TenantID)
	}
	return WithCorrelationID(target, s.correlationID)
}

func (s Snapshot) Tenant() (TenantRealm, bool) {
	if s.tenant == nil {
		return TenantRealm{}, false
	}
	return *s.tenant, true
}

// Detach returns a context that keeps the tenant identity of ctx but is not cancelled with it.
func Detach(ctx context.Context) context.Context {
	return Capture(ctx).Restore(context.WithoutCancel(ctx))
}

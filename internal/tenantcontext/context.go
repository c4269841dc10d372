// Package tenantcontext carries the tenant executing the current operation (realm and tenant id) in a
// context.Context, together with the log fields that identify it.
package tenantcontext

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"
)

var ErrMissingTenantContext = errors.New("tenant context is missing")

const (
	RealmLogField         = "realm"
	TenantIDLogField      = "tenant_id"
	CorrelationIDLogField = "correlation_id"
)

type (
	scopeContextKey         struct{}
	baseLoggerContextKey    struct{}
	correlationIDContextKey struct{}
)

// TenantRealm identifies who is executing the current operation. TenantID is uuid.Nil when it's not known yet.
type TenantRealm struct {
	Realm    string
	TenantID uuid.UUID
}

func (tr TenantRealm) HasTenantID() bool {
	return tr.TenantID != uuid.Nil
}

// scope is created once per Set and is only reachable from contexts derived after that call. The value it holds is
// immutable, the pointer is swapped only to fill in a missing tenant ID for the same realm.
type scope struct {
	current atomic.Pointer[TenantRealm]
}

func newScope(tr *TenantRealm) *scope {
	s := &scope{}
	s.current.Store(tr)
	return s
}

func (s *scope) load() *TenantRealm {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Set starts a new tenant scope for the operation that owns ctx. Any tenant previously set on ctx is replaced, and
// the logger in the returned context carries the realm and tenant ID fields.
func Set(ctx context.Context, realm string, tenantID uuid.UUID) context.Context {
	ctx = Clear(ctx)
	if realm == "" {
		return ctx
	}

	tr := &TenantRealm{Realm: realm, TenantID: tenantID}
	ctx = context.WithValue(ctx, baseLoggerContextKey{}, log.Ctx(ctx))
	ctx = context.WithValue(ctx, scopeContextKey{}, newScope(tr))
	return log.Set(ctx, log.Ctx(ctx).WithFields(logFields(*tr)))
}

// Clear removes the tenant from the returned context and restores the logger that was active before the tenant
// was set, so no realm or tenant fields are left behind.
func Clear(ctx context.Context) context.Context {
	if ctx.Value(scopeContextKey{}) == nil {
		return ctx
	}

	ctx = context.WithValue(ctx, scopeContextKey{}, (*scope)(nil))
	if base, ok := ctx.Value(baseLoggerContextKey{}).(*log.Entry); ok && base != nil {
		ctx = log.Set(ctx, base)
	}
	if correlationID := CorrelationID(ctx); correlationID != "" {
		ctx = log.Set(ctx, log.Ctx(ctx).WithField(CorrelationIDLogField, correlationID))
	}
	return ctx
}

// Refresh atomically clears the current tenant and sets a new realm with no tenant ID.
func Refresh(ctx context.Context, newRealm string) context.Context {
	return Set(Clear(ctx), newRealm, uuid.Nil)
}

func currentScope(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeContextKey{}).(*scope)
	return s
}

// Get returns the tenant executing the current operation, if any.
func Get(ctx context.Context) (TenantRealm, bool) {
	tr := currentScope(ctx).load()
	if tr == nil {
		return TenantRealm{}, false
	}
	return *tr, true
}

func Realm(ctx context.Context) (string, bool) {
	tr, ok := Get(ctx)
	if !ok || tr.Realm == "" {
		return "", false
	}
	return tr.Realm, true
}

// RequireRealm returns the current realm or ErrMissingTenantContext.
func RequireRealm(ctx context.Context) (string, error) {
	realm, ok := Realm(ctx)
	if !ok {
		return "", ErrMissingTenantContext
	}
	return realm, nil
}

func TenantID(ctx context.Context) (uuid.UUID, bool) {
	tr, ok := Get(ctx)
	if !ok || !tr.HasTenantID() {
		return uuid.Nil, false
	}
	return tr.TenantID, true
}

// RequireTenantID returns the current tenant ID or ErrMissingTenantContext.
func RequireTenantID(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := TenantID(ctx)
	if !ok {
		return uuid.Nil, ErrMissingTenantContext
	}
	return tenantID, nil
}

// PopulateTenantID fills the tenant ID of the current scope when it is missing and the scope's realm matches
// realm. It returns true when the scope was updated. Other operations never observe the change because scopes are
// not shared between calls to Set.
func PopulateTenantID(ctx context.Context, realm string, tenantID uuid.UUID) bool {
	s := currentScope(ctx)
	if s == nil || tenantID == uuid.Nil {
		return false
	}

	for {
		old := s.current.Load()
		if old == nil || old.Realm != realm || old.HasTenantID() {
			return false
		}
		updated := &TenantRealm{Realm: old.Realm, TenantID: tenantID}
		if s.current.CompareAndSwap(old, updated) {
			return true
		}
	}
}

// LoggerFields returns the tenant log fields for the current operation, or an empty map.
func LoggerFields(ctx context.Context) log.F {
	tr, ok := Get(ctx)
	if !ok {
		return log.F{}
	}
	return logFields(tr)
}

func logFields(tr TenantRealm) log.F {
	fields := log.F{RealmLogField: tr.Realm}
	if tr.HasTenantID() {
		fields[TenantIDLogField] = tr.TenantID.String()
	}
	return fields
}

// WithCorrelationID stores the correlation ID of the message being processed and adds it to the logger.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, correlationIDContextKey{}, correlationID)
	return log.Set(ctx, log.Ctx(ctx).WithField(CorrelationIDLogField, correlationID))
}

func CorrelationID(ctx context.Context) string {
	correlationID, _ := ctx.Value(correlationIDContextKey{}).(string)
	return correlationID
}

package tenant

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
)

// RoutableStatuses are the statuses of tenants whose database exists and can serve queries.
func RoutableStatuses() []ResourceStatus {
	return []ResourceStatus{
		ProvisioningCompleted,
		ProvisioningPostActionsInitiated,
		ProvisioningPostActionsInProgress,
		ProvisioningPostActionsCompleted,
		Active,
	}
}

// RegisterTenant opens the tenant's pool and registers it on the router together with the realm to tenant ID
// mapping. A pool replaced by the registration is closed.
func RegisterTenant(ctx context.Context, r *ConnectionRouter, manager ManagerInterface, opener db.OpenerFunc, t Tenant) error {
	dsn, err := manager.GetDSNForTenant(ctx, t.Realm)
	if err != nil {
		return fmt.Errorf("getting DSN for tenant %s: %w", t.Realm, err)
	}

	pool, err := opener(ctx, dsn)
	if err != nil {
		return fmt.Errorf("opening data source for tenant %s: %w", t.Realm, err)
	}

	if err = r.SetTenantMapping(t.Realm, t.ID); err != nil {
		_ = pool.Close()
		return fmt.Errorf("mapping tenant %s: %w", t.Realm, err)
	}

	replaced, err := r.Register(t.Realm, pool)
	if err != nil {
		_ = pool.Close()
		return fmt.Errorf("registering tenant %s: %w", t.Realm, err)
	}
	if replaced != nil && replaced != pool {
		if closeErr := replaced.Close(); closeErr != nil {
			log.Ctx(ctx).Warnf("closing replaced data source of tenant %s: %v", t.Realm, closeErr)
		}
	}
	return nil
}

// LoadRoutes registers a route for every tenant whose database is ready. A tenant whose pool can't be opened is
// logged and skipped so one unreachable database doesn't block the others. It returns the number of routes
// registered.
func LoadRoutes(ctx context.Context, r *ConnectionRouter, manager ManagerInterface, opener db.OpenerFunc) (int, error) {
	tenants, err := manager.GetAllTenants(ctx, RoutableStatuses()...)
	if err != nil {
		return 0, fmt.Errorf("loading routable tenants: %w", err)
	}

	registered := 0
	for _, t := range tenants {
		if err = RegisterTenant(ctx, r, manager, opener, t); err != nil {
			log.Ctx(ctx).WithField("realm", t.Realm).Errorf("loading route: %v", err)
			continue
		}
		registered++
	}

	log.Ctx(ctx).Infof("loaded %d of %d tenant routes", registered, len(tenants))
	return registered, nil
}

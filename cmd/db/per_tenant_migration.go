package db

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/cmd/utils"
	"github.com/stellar/stellar-tenant-control-plane/internal/tenantcontext"
	internalUtils "github.com/stellar/stellar-tenant-control-plane/internal/utils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// executeMigrationsPerTenant runs migrateFn on the schema of every tenant whose database exists, or only on the one
// selected with --realm. It stops at the first tenant that fails.
func executeMigrationsPerTenant(
	ctx context.Context,
	manager tenant.ManagerInterface,
	opts utils.TenantRoutingOptions,
	migrateFn func(ctx context.Context, dsn string) error,
) error {
	tenants, err := manager.GetAllTenants(ctx, tenant.RoutableStatuses()...)
	if err != nil {
		return fmt.Errorf("getting tenants: %w", err)
	}

	if opts.Realm != "" {
		realm, err := internalUtils.SanitizeRealm(opts.Realm)
		if err != nil {
			return fmt.Errorf("invalid realm %q: %w", opts.Realm, err)
		}

		var selected []tenant.Tenant
		for _, t := range tenants {
			if t.Realm == realm {
				selected = append(selected, t)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("tenant %s does not exist or its database is not provisioned", realm)
		}
		tenants = selected
	}

	for _, t := range tenants {
		tenantCtx := tenantcontext.Set(ctx, t.Realm, t.ID)
		dsn, err := manager.GetDSNForTenant(tenantCtx, t.Realm)
		if err != nil {
			return fmt.Errorf("getting DSN for tenant %s: %w", t.Realm, err)
		}

		log.Ctx(tenantCtx).Infof("Applying migrations on tenant %s", t.Realm)
		if err = migrateFn(tenantCtx, dsn); err != nil {
			return fmt.Errorf("migrating tenant %s: %w", t.Realm, err)
		}
	}

	return nil
}

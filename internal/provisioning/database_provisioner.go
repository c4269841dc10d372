package provisioning

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/db/migrations"
	"github.com/stellar/stellar-tenant-control-plane/db/router"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

// DatabaseProvisioner manages the database of a tenant. Every method is safe to call again for a realm whose
// database already is in the requested state.
type DatabaseProvisioner interface {
	// ProvisionDatabase creates the tenant database and applies the tenant migrations. It returns the schema name.
	ProvisionDatabase(ctx context.Context, realm string) (string, error)
	// SyncDatabase applies tenant migrations that are still pending.
	SyncDatabase(ctx context.Context, realm string) error
	DropDatabase(ctx context.Context, realm string) error
}

// MigrateFunc applies the tenant migrations to the database at dbURL.
type MigrateFunc func(ctx context.Context, dbURL string) (int, error)

func migrateTenantSchema(ctx context.Context, dbURL string) (int, error) {
	return db.Migrate(ctx, dbURL, migrate.Up, 0, migrations.TenantMigrationRouter)
}

// SchemaProvisioner provisions every tenant as a `tenant_<realm>` schema of the admin database.
type SchemaProvisioner struct {
	adminDB       db.DBConnectionPool
	tenantManager tenant.ManagerInterface
	migrate       MigrateFunc
}

var _ DatabaseProvisioner = (*SchemaProvisioner)(nil)

func NewSchemaProvisioner(adminDB db.DBConnectionPool, tenantManager tenant.ManagerInterface) (*SchemaProvisioner, error) {
	if adminDB == nil {
		return nil, fmt.Errorf("admin database cannot be nil")
	}
	if tenantManager == nil {
		return nil, fmt.Errorf("tenant manager cannot be nil")
	}
	return &SchemaProvisioner{adminDB: adminDB, tenantManager: tenantManager, migrate: migrateTenantSchema}, nil
}

func (p *SchemaProvisioner) ProvisionDatabase(ctx context.Context, realm string) (string, error) {
	schemaName, err := schemaNameFor(realm)
	if err != nil {
		return "", err
	}

	log.Ctx(ctx).Infof("creating database schema %s", schemaName)
	if _, err = p.adminDB.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(schemaName))); err != nil {
		return "", fmt.Errorf("creating database schema %s: %w", schemaName, err)
	}

	if err = p.SyncDatabase(ctx, realm); err != nil {
		return "", err
	}
	return schemaName, nil
}

func (p *SchemaProvisioner) SyncDatabase(ctx context.Context, realm string) error {
	dsn, err := p.tenantManager.GetDSNForTenant(ctx, realm)
	if err != nil {
		return fmt.Errorf("getting database DSN for tenant %s: %w", realm, err)
	}

	n, err := p.migrate(ctx, dsn)
	if err != nil {
		return fmt.Errorf("applying tenant migrations for %s: %w", realm, err)
	}
	log.Ctx(ctx).Infof("applied %d tenant migrations for %s", n, realm)
	return nil
}

func (p *SchemaProvisioner) DropDatabase(ctx context.Context, realm string) error {
	schemaName, err := schemaNameFor(realm)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Warnf("dropping database schema %s", schemaName)
	if _, err = p.adminDB.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schemaName))); err != nil {
		return fmt.Errorf("dropping database schema %s: %w", schemaName, err)
	}
	return nil
}

func schemaNameFor(realm string) (string, error) {
	sanitized, err := utils.SanitizeRealm(realm)
	if err != nil {
		return "", fmt.Errorf("realm %q: %w", realm, err)
	}
	return router.SchemaNameForRealm(sanitized), nil
}

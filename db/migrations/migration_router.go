package migrations

import (
	"net/http"

	adminmigrations "github.com/stellar/stellar-tenant-control-plane/db/migrations/admin-migrations"
	tenantmigrations "github.com/stellar/stellar-tenant-control-plane/db/migrations/tenant-migrations"
)

// MigrationRouter pairs a set of migration files with the table that tracks which of them were applied.
type MigrationRouter struct {
	TableName string
	FS        http.FileSystem
}

var (
	// AdminMigrationRouter owns the tenants registry in the admin schema.
	AdminMigrationRouter = MigrationRouter{TableName: "admin_migrations", FS: http.FS(adminmigrations.FS)}
	// TenantMigrationRouter is applied to every tenant schema at provisioning time.
	TenantMigrationRouter = MigrationRouter{TableName: "tenant_migrations", FS: http.FS(tenantmigrations.FS)}
)

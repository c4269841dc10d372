package db

import (
	"context"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/cmd/utils"
	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/db/migrations"
	"github.com/stellar/stellar-tenant-control-plane/pkg/tenant"
)

const DBConfigOptionFlagName = "database-url"

type DatabaseCommand struct{}

func (c *DatabaseCommand) Command(globalOptions *utils.GlobalOptionsType) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "db",
		Short:            "Database related commands",
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE:             utils.CallHelpCommand,
	}

	cmd.AddCommand(c.adminMigrationsCmd(globalOptions))     // 'admin migrate up|down'
	cmd.AddCommand(c.perTenantMigrationsCmd(globalOptions)) // 'tenant migrate up|down', uses --all and --realm

	return cmd
}

// adminMigrationsCmd returns a cobra.Command responsible for running the migrations of the `admin-migrations`
// folder, that hold the tenants registry.
func (c *DatabaseCommand) adminMigrationsCmd(globalOptions *utils.GlobalOptionsType) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:              "admin",
		Short:            "Migrations of the tenants registry. They are tracked in the table `admin_migrations`.",
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE:             utils.CallHelpCommand,
	}

	adminCmd.AddCommand(MigrateCmd(func(ctx context.Context, dir migrate.MigrationDirection, count int) error {
		return ExecuteMigrations(ctx, globalOptions.DatabaseURL, dir, count, migrations.AdminMigrationRouter)
	}))
	return adminCmd
}

// perTenantMigrationsCmd returns a cobra.Command responsible for running the migrations of the `tenant-migrations`
// folder on the schema of the desired tenant(s).
func (c *DatabaseCommand) perTenantMigrationsCmd(globalOptions *utils.GlobalOptionsType) *cobra.Command {
	opts := utils.TenantRoutingOptions{}
	var configOptions config.ConfigOptions = utils.TenantRoutingConfigOptions(&opts)

	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Per-tenant schema migrations, applied on the tenants selected with --all or --realm. They are tracked in the table `tenant_migrations` of each schema.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			utils.PropagatePersistentPreRun(cmd, args)
			configOptions.Require()
			if err := configOptions.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %v", err)
			}
		},
		RunE: utils.CallHelpCommand,
	}

	tenantCmd.AddCommand(MigrateCmd(func(ctx context.Context, dir migrate.MigrationDirection, count int) error {
		if err := opts.ValidateFlags(); err != nil {
			return err
		}

		adminDBConnectionPool, err := db.OpenDBConnectionPool(ctx, globalOptions.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening admin database: %w", err)
		}
		defer db.ClosePool(ctx, adminDBConnectionPool) //nolint:errcheck

		manager := tenant.NewManager(tenant.WithDatabase(adminDBConnectionPool))
		migrateFn := func(ctx context.Context, dsn string) error {
			return ExecuteMigrations(ctx, dsn, dir, count, migrations.TenantMigrationRouter)
		}
		if err = executeMigrationsPerTenant(ctx, manager, opts, migrateFn); err != nil {
			return fmt.Errorf("executing migrations for %s: %w", tenantCmd.Name(), err)
		}
		return nil
	}))

	if err := configOptions.Init(tenantCmd); err != nil {
		log.Fatalf("initializing config options: %v", err)
	}

	return tenantCmd
}

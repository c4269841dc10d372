package db

import (
	"context"
	"fmt"
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/cmd/utils"
	"github.com/stellar/stellar-tenant-control-plane/db"
	"github.com/stellar/stellar-tenant-control-plane/db/migrations"
)

type executeMigrationsFunc func(ctx context.Context, dir migrate.MigrationDirection, count int) error

// MigrateCmd returns the `migrate up|down [count]` command tree. Up without a count applies every pending
// migration, down always needs one so a typo can't drop a whole schema.
func MigrateCmd(executeMigrationsFn executeMigrationsFunc) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:              "migrate",
		Short:            "Schema migration helpers",
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE:             utils.CallHelpCommand,
	}

	migrateCmd.AddCommand(
		directionCmd(migrate.Up, "Applies the next [count] migrations, or all of them", cobra.MaximumNArgs(1), executeMigrationsFn),
		directionCmd(migrate.Down, "Reverts the last [count] migrations", cobra.ExactArgs(1), executeMigrationsFn),
	)
	return migrateCmd
}

func directionCmd(dir migrate.MigrationDirection, short string, args cobra.PositionalArgs, executeMigrationsFn executeMigrationsFunc) *cobra.Command {
	return &cobra.Command{
		Use:              directionName(dir) + " [count]",
		Short:            short,
		Args:             args,
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 0
			if len(args) == 1 {
				var err error
				if count, err = strconv.Atoi(args[0]); err != nil || count < 0 {
					return fmt.Errorf("invalid [count] argument %q", args[0])
				}
			}

			if err := executeMigrationsFn(cmd.Context(), dir, count); err != nil {
				return fmt.Errorf("migrating %s: %w", directionName(dir), err)
			}
			return nil
		},
	}
}

// ExecuteMigrations applies the migrations of migrationRouter to the database at dbURL.
func ExecuteMigrations(ctx context.Context, dbURL string, dir migrate.MigrationDirection, count int, migrationRouter migrations.MigrationRouter) error {
	applied, err := db.Migrate(ctx, dbURL, dir, count, migrationRouter)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	if applied == 0 {
		log.Ctx(ctx).Infof("%s is up to date, no migrations applied", migrationRouter.TableName)
		return nil
	}
	log.Ctx(ctx).Infof("applied %d %s migrations %s", applied, migrationRouter.TableName, directionName(dir))
	return nil
}

func directionName(dir migrate.MigrationDirection) string {
	if dir == migrate.Up {
		return "up"
	}
	return "down"
}

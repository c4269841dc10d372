package db

import (
	"context"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/stellar/stellar-tenant-control-plane/db/migrations"
	"github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

// Migrate runs up to count migrations of the router in the given direction against dbURL. A count of 0 runs all of
// them.
func Migrate(ctx context.Context, dbURL string, dir migrate.MigrationDirection, count int, migrationRouter migrations.MigrationRouter) (int, error) {
	dbConnectionPool, err := OpenDBConnectionPool(ctx, dbURL)
	if err != nil {
		return 0, fmt.Errorf("database URL '%s': %w", utils.RedactDSN(dbURL), err)
	}
	defer dbConnectionPool.Close()

	return MigrateWithPool(ctx, dbConnectionPool, dir, count, migrationRouter)
}

// MigrateWithPool is Migrate for an already opened pool.
func MigrateWithPool(ctx context.Context, dbConnectionPool DBConnectionPool, dir migrate.MigrationDirection, count int, migrationRouter migrations.MigrationRouter) (int, error) {
	sqlxDB, err := dbConnectionPool.SqlxDB(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching sqlx.DB: %w", err)
	}

	ms := migrate.MigrationSet{TableName: migrationRouter.TableName}
	source := migrate.HttpFileSystemMigrationSource{FileSystem: migrationRouter.FS}
	n, err := ms.ExecMax(sqlxDB.DB, dbConnectionPool.DriverName(), source, dir, count)
	if err != nil {
		return n, fmt.Errorf("executing %s migrations: %w", migrationRouter.TableName, err)
	}
	return n, nil
}

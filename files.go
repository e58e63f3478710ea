package auth

import (
	"context"
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrate applies every pending migration in data/sql/migrations
func Migrate(ctx context.Context, db *bun.DB, logger Logger) error {
	logger = normalizeLogger(logger)

	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to open migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to init migrations table")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}

	if group.IsZero() {
		logger.Info("no new migrations to run")
		return nil
	}

	logger.Info("migrated to %s", group)
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun/migrate"
)

// Migrate sets up and runs all migrations in the migrations model
// that haven't been run on the database being used by the proxy service
// returning error (if any) and a list of migrations that have been
// run and any that were not
func (c *Client) Migrate(ctx context.Context, migrations *migrate.Migrations) (*migrate.MigrationSlice, error) {
	if c.db == nil {
		return &migrate.MigrationSlice{}, errors.New("database client is not connected")
	}

	migrator := migrate.NewMigrator(c.db, migrations)

	// create / verify tables used to tack migrations
	err := migrator.Init(ctx)

	if err != nil {
		return &migrate.MigrationSlice{}, err
	}

	// run all un-applied migrations
	group, err := migrator.Migrate(ctx)

	// if migration failed attempt to rollback so migrations can be re-attempted
	if err != nil {
		group, rollbackErr := migrator.Rollback(ctx)

		if rollbackErr != nil {
			return &migrate.MigrationSlice{}, fmt.Errorf("error %s rolling back after original error %w", rollbackErr, err)
		}

		if group.ID == 0 {
			return &migrate.MigrationSlice{}, fmt.Errorf("no groups to rollback after migration error %w", err)
		}

		return &migrate.MigrationSlice{}, fmt.Errorf("rolled back after migration error %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)

	if err != nil {
		return &migrate.MigrationSlice{}, err
	}

	if group.IsZero() {
		c.logger.Debug().Msg("there are no new migrations to run")
	} else {
		c.logger.Info().Str("group", group.String()).Msg("ran database migrations")
	}

	return &ms, nil
}

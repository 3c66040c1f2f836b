package db

import (
	"context"
	"errors"
	"strings"

	"crm_search_backend/platform/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations from the configured directory.
// An empty directory setting disables migrations.
func RunMigrations(_ context.Context, cfg config.DatabaseConfig) error {
	migrationsDir := strings.TrimSpace(cfg.GetMigrationsDir())
	if migrationsDir == "" {
		return nil
	}

	m, err := migrate.New("file://"+migrationsDir, pgxMigrateURL(cfg.GetDatabaseURL()))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// pgxMigrateURL rewrites a postgres URL to the scheme registered by the
// migrate pgx/v5 driver.
func pgxMigrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

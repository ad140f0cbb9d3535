package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func newProvider(pool *pgxpool.Pool) (*goose.Provider, func() error, error) {
	fsys, err := fs.Sub(migrations, migrationsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	// goose works on database/sql
	db := stdlib.OpenDBFromPool(pool)

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys, goose.WithDisableGlobalRegistry(true))
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, db.Close, nil
}

// Migrate applies all pending migrations and returns the number applied
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	provider, closeDB, err := newProvider(pool)
	if err != nil {
		return 0, err
	}
	defer closeDB()

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return len(results), nil
}

// MigrationStatus describes one migration
type MigrationStatus struct {
	Version int64
	Source  string
	Applied bool
}

// Status lists every known migration and whether it has been applied
func Status(ctx context.Context, pool *pgxpool.Pool) ([]MigrationStatus, error) {
	provider, closeDB, err := newProvider(pool)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	result := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		result = append(result, MigrationStatus{
			Version: s.Source.Version,
			Source:  s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return result, nil
}

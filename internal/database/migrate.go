package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// Migrate applies the <version>.up.sql files in dir that schema_migrations
// does not list yet, oldest first, or reverts the listed ones newest first
// using their .down.sql files. Each file runs in its own transaction together
// with its bookkeeping row. It returns the number of files executed.
func Migrate(ctx context.Context, db *sql.DB, dir string, direction MigrateDirection) (int, error) {
	if direction != MigrateUp && direction != MigrateDown {
		return 0, fmt.Errorf("unknown migration direction %q", direction)
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
		    version    TEXT PRIMARY KEY,
		    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := "." + string(direction) + ".sql"
	var versions []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), suffix) {
			continue
		}
		version := strings.TrimSuffix(file.Name(), suffix)
		if applied[version] == (direction == MigrateUp) {
			continue
		}
		versions = append(versions, version)
	}

	slices.Sort(versions)
	if direction == MigrateDown {
		slices.Reverse(versions)
	}

	bookkeeping := `INSERT INTO schema_migrations (version) VALUES ($1)`
	if direction == MigrateDown {
		bookkeeping = `DELETE FROM schema_migrations WHERE version = $1`
	}

	opts := TxOptions{IsolationLevel: sql.LevelReadCommitted}
	for i, version := range versions {
		content, err := os.ReadFile(filepath.Join(dir, version+suffix))
		if err != nil {
			return i, fmt.Errorf("read migration %s: %w", version, err)
		}

		err = WithTransaction(ctx, db, opts, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, bookkeeping, version)
			return err
		})
		if err != nil {
			return i, fmt.Errorf("migrate %s %s: %w", direction, version, err)
		}
	}

	return len(versions), nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return applied, nil
}

package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migration is a single versioned schema change.
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// Migrations returns the embedded migrations ordered by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}

		version, err := versionFromFile(e.Name())
		if err != nil {
			return nil, err
		}

		b, err := fs.ReadFile(migrationFiles, "migrations/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}

		migrations = append(migrations, Migration{Version: version, Name: e.Name(), SQL: string(b)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	return migrations, nil
}

// Migrate applies every embedded migration that has not yet been applied.
// A migration is marked dirty before it runs and clean once it succeeds,
// so a failed migration is retried on the next run.
func Migrate(ctx context.Context, db DB, logger hclog.Logger) (int, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			dirty   BOOLEAN NOT NULL DEFAULT FALSE
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := Migrations()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		var done bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`, m.Version,
		).Scan(&done); err != nil {
			return applied, fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if done {
			logger.Debug("Migration already applied", "version", m.Version)
			continue
		}

		if _, err := db.Exec(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true) ON CONFLICT (version) DO UPDATE SET dirty = true`,
			m.Version,
		); err != nil {
			return applied, fmt.Errorf("mark migration %d dirty: %w", m.Version, err)
		}

		if _, err := db.Exec(ctx, m.SQL); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}

		if _, err := db.Exec(ctx, `UPDATE schema_migrations SET dirty = false WHERE version = $1`, m.Version); err != nil {
			return applied, fmt.Errorf("mark migration %d clean: %w", m.Version, err)
		}

		logger.Info("Applied migration", "version", m.Version, "name", m.Name)
		applied++
	}

	return applied, nil
}

// MigrationState reports whether an embedded migration has been applied.
type MigrationState struct {
	Version int64  `json:"version" yaml:"version"`
	Name    string `json:"name"    yaml:"name"`
	Applied bool   `json:"applied" yaml:"applied"`
	Dirty   bool   `json:"dirty"   yaml:"dirty"`
}

// Status lists every embedded migration with its state in the database.
// A database that was never migrated reports every migration as pending.
func Status(ctx context.Context, db DB) ([]MigrationState, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}

	var tracked bool
	if err := db.QueryRow(ctx, `SELECT to_regclass('schema_migrations') IS NOT NULL`).Scan(&tracked); err != nil {
		return nil, fmt.Errorf("check schema_migrations: %w", err)
	}

	dirty := make(map[int64]bool)
	if tracked {
		rows, err := db.Query(ctx, `SELECT version, dirty FROM schema_migrations`)
		if err != nil {
			return nil, fmt.Errorf("list schema_migrations: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				version int64
				isDirty bool
			)
			if err := rows.Scan(&version, &isDirty); err != nil {
				return nil, fmt.Errorf("scan schema_migrations: %w", err)
			}
			dirty[version] = isDirty
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("list schema_migrations: %w", err)
		}
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		isDirty, seen := dirty[m.Version]
		states = append(states, MigrationState{
			Version: m.Version,
			Name:    m.Name,
			Applied: seen && !isDirty,
			Dirty:   isDirty,
		})
	}

	return states, nil
}

// versionFromFile parses the numeric prefix of a name like "001_mcp_servers.up.sql".
func versionFromFile(name string) (int64, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s has no version prefix", name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("migration %s has invalid version: %w", name, err)
	}
	return v, nil
}

package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationNamePattern = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)\.sql$`)

// ErrChecksumMismatch is returned when an applied migration no longer matches
// the embedded file with the same version.
var ErrChecksumMismatch = errors.New("sqlite: migration checksum mismatch")

// Migration is one embedded schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations")
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("invalid migration file name %q", entry.Name())
		}
		if previous, ok := seen[match[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s: %s and %s", match[1], previous, entry.Name())
		}
		seen[match[1]] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version:     match[1],
			Description: strings.ReplaceAll(match[2], "_", " "),
			SQL:         string(content),
			Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Migrate applies every pending embedded migration, each in its own transaction.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	return applyMigrations(ctx, pool, migrations, logger)
}

func applyMigrations(ctx context.Context, pool *ConnectionPool, migrations []Migration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := pool.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := AppliedMigrations(ctx, pool)
	if err != nil {
		return err
	}
	checksums := make(map[string]string, len(applied))
	for _, migration := range applied {
		checksums[migration.Version] = migration.Checksum
	}

	pending := 0
	for _, migration := range migrations {
		if checksum, ok := checksums[migration.Version]; ok {
			if checksum != migration.Checksum {
				return fmt.Errorf("%w: version %s", ErrChecksumMismatch, migration.Version)
			}
			continue
		}

		started := time.Now()
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for i, statement := range splitStatements(migration.SQL) {
				if _, err := tx.ExecContext(ctx, statement); err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
				migration.Version,
				time.Now().UTC().Format(time.RFC3339Nano),
				migration.Checksum,
				time.Since(started).Milliseconds(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s (%s) failed: %w", migration.Version, migration.Description, err)
		}

		pending++
		logger.Info("schema migration applied",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Duration("duration", time.Since(started)),
		)
	}

	if pending == 0 {
		logger.Debug("schema up to date", slog.Int("migrations", len(migrations)))
	}
	return nil
}

// AppliedMigrations lists the rows of schema_migrations in version order.
func AppliedMigrations(ctx context.Context, pool *ConnectionPool) ([]AppliedMigration, error) {
	rows, err := pool.db.QueryContext(ctx, `
		SELECT version, applied_at, checksum, execution_time_ms
		FROM schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var migration AppliedMigration
		var appliedAt string
		var executionMs int64
		if err := rows.Scan(&migration.Version, &appliedAt, &migration.Checksum, &executionMs); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}
		migration.AppliedAt, _ = time.Parse(time.RFC3339Nano, appliedAt)
		migration.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		applied = append(applied, migration)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applied migrations: %w", err)
	}
	return applied, nil
}

// splitStatements splits a migration on semicolons and drops comment-only
// chunks. Migrations must not contain semicolons inside literals or triggers.
func splitStatements(content string) []string {
	var statements []string
	for _, chunk := range strings.Split(content, ";") {
		lines := strings.Split(chunk, "\n")
		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			statements = append(statements, strings.TrimSpace(strings.Join(kept, "\n")))
		}
	}
	return statements
}

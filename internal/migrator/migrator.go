package migrator

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded SQL migrations in lexical order, once each.
type Migrator struct {
	db     *sqlx.DB
	log    *slog.Logger
	schema string
}

func NewMigrator(db *sqlx.DB, log *slog.Logger, schema string) *Migrator {
	return &Migrator{
		db:     db,
		log:    log,
		schema: schema,
	}
}

// Run executes all pending migrations.
func (m *Migrator) Run(ctx context.Context) error {
	op := "migrator.Run"
	m.log.Info("starting database migrations", slog.String("schema", m.schema))

	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("%s: create migrations table: %w", op, err)
	}

	files, err := Files()
	if err != nil {
		return fmt.Errorf("%s: list migration files: %w", op, err)
	}

	for _, file := range files {
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("%s: migration %s: %w", op, file, err)
		}
	}

	m.log.Info("database migrations completed")
	return nil
}

// Files lists the embedded migration file names in the order they are applied.
func Files() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	return files, nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, m.schema)); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, m.schema)
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) applied(ctx context.Context, version string) (bool, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s.schema_migrations WHERE version = $1`, m.schema)
	if err := m.db.GetContext(ctx, &count, query, version); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *Migrator) apply(ctx context.Context, filename string) (err error) {
	version := strings.TrimSuffix(filename, ".sql")

	done, err := m.applied(ctx, version)
	if err != nil {
		return err
	}
	if done {
		m.log.Debug("migration already applied", slog.String("version", version))
		return nil
	}

	content, err := migrationsFS.ReadFile("migrations/" + filename)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.log.Error("rollback migration", slog.String("version", version), slog.String("error", rbErr.Error()))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s, public", m.schema)); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	if _, err = tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.schema_migrations (version) VALUES ($1)`, m.schema), version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.log.Info("migration applied", slog.String("version", version))
	return nil
}

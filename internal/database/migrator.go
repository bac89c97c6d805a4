// Package database applies the embedded schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.up.sql
var embedded embed.FS

// Migrations returns the schema files shipped with the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrator applies plain .up.sql migrations in lexical order, each in its own
// transaction, recording applied names in schema_migrations.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{db: db, log: log}
}

// Apply runs every pending migration found in fsys.
func (m *Migrator) Apply(ctx context.Context, fsys fs.FS) error {
	names, err := ListMigrations(fsys, ".")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		m.log.Info("no .up.sql migrations found")
		return nil
	}

	const bootstrap = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := m.db.ExecContext(ctx, bootstrap); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, name := range names {
		if err := m.applyFile(ctx, fsys, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) applyFile(ctx context.Context, fsys fs.FS, name string) error {
	log := m.log.With(slog.String("migration", name))

	var applied bool
	err := m.db.QueryRowContext(ctx, `SELECT true FROM schema_migrations WHERE name = $1`, name).Scan(&applied)
	switch {
	case err == nil:
		log.Debug("migration already applied")
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check migration %q: %w", name, err)
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}

	statement := strings.TrimSpace(string(data))
	if statement == "" {
		log.Warn("migration is empty, skipping")
		return nil
	}

	log.Info("applying migration")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("rollback error", slog.Any("error", rbErr))
		}
	}()

	if _, err := tx.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("execute migration %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	return nil
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files under root in lexical order.
func ListMigrations(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isUpMigration(e.Name()) {
			continue
		}
		names = append(names, path.Join(root, e.Name()))
	}

	sort.Strings(names)
	return names, nil
}

// Package store persists the narration -> ledger cache in SQLite. The cache
// is process-wide shared state with application lifetime; entries are
// narration-keyed facts, so writes committed by an aborted batch stay valid.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed ledger cache. Safe for concurrent use; SQLite
// serializes the writes and the ON CONFLICT clause keeps the first
// classification for a narration.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at dbPath and applies
// pending migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Get looks up the cached ledger for a narration by exact-match key.
func (s *Store) Get(ctx context.Context, narration string) (string, bool, error) {
	var ledger string
	err := s.db.QueryRowContext(ctx,
		`SELECT ledger FROM ledger_map WHERE narration = ?`, narration,
	).Scan(&ledger)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select ledger_map: %w", err)
	}
	return ledger, true, nil
}

// Put records a classification. First write wins: a conflicting insert for an
// already-classified narration is dropped rather than overwriting.
func (s *Store) Put(ctx context.Context, narration, ledger string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_map (narration, ledger) VALUES (?, ?)
		 ON CONFLICT(narration) DO NOTHING`,
		narration, ledger,
	)
	if err != nil {
		return fmt.Errorf("insert ledger_map: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("set up migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Package store manages the on-device SQLite database holding patients,
// doctors and appointments. It is the local side of the sync layer: the
// source of truth whenever the clinical API cannot be reached.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
)

// driverName is go-sqlite3 with the casefold() SQL function registered on
// every connection. SQLite's built-in lower() and LIKE only fold ASCII.
const driverName = "sqlite3_clinicsync"

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("casefold", casefold, true)
		},
	})
}

func casefold(s string) string {
	return strings.ToLower(s)
}

// PersistenceError reports a failed read or write against the database
// (I/O, locking, corruption). Not-found is never a PersistenceError: updates
// and deletes report it as zero affected rows.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Store is the SQLite-backed clinic repository.
type Store struct {
	db      *sql.DB
	version uint
	created bool
}

// DefaultDBPath returns the default path for the clinic database:
// ~/.local/share/clinicsync/clinic.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "clinicsync", "clinic.db"), nil
}

// Open opens (or creates) the SQLite database at path and brings its schema
// up to date. A brand-new database receives the sample records, so the
// application is never empty on first run.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open(driverName, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the migration version the database is at.
func (s *Store) SchemaVersion() uint {
	return s.version
}

// Created reports whether this Open created the database from scratch (and
// therefore seeded it with sample data).
func (s *Store) Created() bool {
	return s.created
}

// migrate applies the embedded migrations. The migrate instance is not
// closed: closing it would close s.db as well.
func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	drv, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}

	_, _, verr := m.Version()
	s.created = errors.Is(verr, migrate.ErrNilVersion)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	s.version = version
	return nil
}

// IsEmpty reports whether the store holds no patients, doctors or
// appointments.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	const q = `
		SELECT (SELECT COUNT(*) FROM patients)
		     + (SELECT COUNT(*) FROM doctors)
		     + (SELECT COUNT(*) FROM appointments)`
	var n int
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return false, persistErr("checking if store is empty", err)
	}
	return n == 0, nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scan helpers can be reused.
type scanner interface {
	Scan(dest ...any) error
}

// likeEscaper makes %, _ and \ in a search query match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern for a case-insensitive substring
// match. The empty query matches every row.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(casefold(q)) + "%"
}

// affected returns the number of rows touched by an exec result.
func affected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr(op, err)
	}
	return n, nil
}

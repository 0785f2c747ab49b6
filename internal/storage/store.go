package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	// DatabaseFileName is the name of the registry file inside the data directory.
	DatabaseFileName = "registry.db"

	driverName = "sqlite"

	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
)

// Per-connection pragmas. They travel in the DSN so every pooled connection
// gets them, not only the one that happened to run an Exec.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

type Store struct {
	db   *sqlx.DB
	path string

	Members MemberRepository
}

// Open creates dir when needed, opens or creates registry.db inside it and
// brings the schema up to date. Every failure wraps ErrUnavailable, except a
// database written by a newer schema which reports ErrSchemaTooNew.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: open storage: empty data directory", ErrUnavailable)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: open storage: create data dir: %v", ErrUnavailable, err)
	}
	path := filepath.Join(dir, DatabaseFileName)

	db, err := sqlx.Open(driverName, dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open storage: %v", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := RunMigrations(db.DB, DefaultMigrations()); err != nil {
		_ = db.Close()
		if errors.Is(err, ErrSchemaTooNew) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := ensureDBPermissions(path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	store := &Store{
		db:   db,
		path: path,
	}
	store.Members = newMemberRepository(db)
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sqlx.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SchemaVersion returns the migration version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("%w: schema version: nil store", ErrUnavailable)
	}
	return readSchemaVersionContext(ctx, s.db.DB)
}

func dataSourceName(path string) string {
	dsn := "file:" + filepath.ToSlash(path)
	for i, pragma := range connectionPragmas {
		if i == 0 {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += "_pragma=" + pragma
	}
	return dsn
}

func configureSQLite(db *sqlx.DB) error {
	// journal_mode is stored in the file, one statement is enough.
	if _, err := db.Exec(pragmaJournalModeWAL); err != nil {
		return fmt.Errorf("%w: configure sqlite %q: %v", ErrUnavailable, pragmaJournalModeWAL, err)
	}
	return nil
}

func ensureDBPermissions(path string) error {
	if err := os.Chmod(path, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set db file permissions: %w", err)
		}
	}

	walPath := path + "-wal"
	if err := os.Chmod(walPath, 0o600); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set wal file permissions: %w", err)
		}
	}
	return nil
}

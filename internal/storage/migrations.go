package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const schemaVersionMetaKey = "schema_version"

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create members table",
		Up: func(tx *sql.Tx) error {
			// IF NOT EXISTS adopts a members table left by an earlier install.
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS members (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				father_husband_name TEXT NOT NULL,
				gender TEXT NOT NULL,
				cnic_number TEXT NOT NULL UNIQUE,
				date_of_birth TEXT NOT NULL,
				date_of_issue TEXT NOT NULL,
				date_of_expiry TEXT NOT NULL,
				cnic_front_image BLOB,
				cnic_back_image BLOB,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`)
			if err != nil {
				return fmt.Errorf("create members: %w", err)
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

func RunMigrations(db *sql.DB, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("run migrations: db is nil")
	}

	if err := ensureMigrationTables(db); err != nil {
		return err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := readSchemaVersion(db)
	if err != nil {
		return err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion)
	}

	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, migration.Version, nowUTCString()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema migration v%d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO registry_meta(key, value) VALUES(?, ?)`, schemaVersionMetaKey, strconv.Itoa(migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("update schema version v%d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", migration.Version, err)
		}
	}

	return nil
}

func ensureMigrationTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS registry_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO registry_meta(key, value) VALUES('` + schemaVersionMetaKey + `', '0')`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure migration tables: %w", err)
		}
	}
	return nil
}

func readSchemaVersion(db *sql.DB) (int, error) {
	return readSchemaVersionContext(context.Background(), db)
}

func readSchemaVersionContext(ctx context.Context, db *sql.DB) (int, error) {
	var versionStr string
	if err := db.QueryRowContext(ctx, `SELECT value FROM registry_meta WHERE key = ?`, schemaVersionMetaKey).Scan(&versionStr); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", versionStr, err)
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

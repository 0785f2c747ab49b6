package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Layouts SQLite and the driver may hand back for a DATETIME column.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized layout", raw)
}

func parseNullableTimestamp(raw sql.NullString) (time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(raw.String)
}

// nullableBytes stores an empty image as NULL; see Member.
func nullableBytes(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// translateError maps driver failures onto the storage taxonomy and adds the
// operation name.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isConstraintError(err):
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	case isUnavailableError(err):
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

func isUnavailableError(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_CANTOPEN,
		sqlite3.SQLITE_NOTADB,
		sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_READONLY,
		sqlite3.SQLITE_FULL,
		sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

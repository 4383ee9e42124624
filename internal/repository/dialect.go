package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect captures the few statements and error codes that differ
// between MySQL and SQLite.  Everything else is portable SQL with "?"
// placeholders.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a database driver name to its Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(driver))) {
	case MySQL:
		return MySQL, nil
	case SQLite:
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d Dialect) upsertCapacitySQL() string {
	if d == MySQL {
		return `INSERT INTO availability_rules (day, capacity) VALUES (?, ?)
		        ON DUPLICATE KEY UPDATE capacity = VALUES(capacity)`
	}
	return `INSERT INTO availability_rules (day, capacity) VALUES (?, ?)
	        ON CONFLICT (day) DO UPDATE SET capacity = excluded.capacity`
}

func (d Dialect) upsertConfigSQL() string {
	if d == MySQL {
		return `INSERT INTO system_config (config_key, config_value, updated_at) VALUES (?, ?, ?)
		        ON DUPLICATE KEY UPDATE config_value = VALUES(config_value), updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO system_config (config_key, config_value, updated_at) VALUES (?, ?, ?)
	        ON CONFLICT (config_key) DO UPDATE SET config_value = excluded.config_value, updated_at = excluded.updated_at`
}

// bumpAdmissionDaySQL writes the admission_days row of a day.  The write
// takes InnoDB's exclusive row lock (MySQL) or the database write lock
// (SQLite) and holds it until the transaction ends.
func (d Dialect) bumpAdmissionDaySQL() string {
	if d == MySQL {
		return `INSERT INTO admission_days (day, version) VALUES (?, 1)
		        ON DUPLICATE KEY UPDATE version = version + 1`
	}
	return `INSERT INTO admission_days (day, version) VALUES (?, 1)
	        ON CONFLICT (day) DO UPDATE SET version = version + 1`
}

// admissionTxOptions returns the isolation used by admission
// transactions.  Under MySQL's default REPEATABLE READ a snapshot could
// predate the lock wait; READ COMMITTED makes the post-lock SUM see every
// earlier committed admission.  SQLite is serializable already.
func (d Dialect) admissionTxOptions() *sql.TxOptions {
	if d == MySQL {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

// translate maps driver integrity errors onto ErrDuplicate/ErrConflict,
// keeping the driver error in the chain.
func (d Dialect) translate(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case 1048, 1216, 1217, 1451, 1452, 3819: // not null, foreign keys, check
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		if liteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate entry") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// dbTime scans DATETIME columns from either driver: MySQL yields
// time.Time, SQLite may yield text in one of a few layouts.
type dbTime struct{ t time.Time }

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.t = time.Time{}
		return nil
	case time.Time:
		d.t = v.UTC()
		return nil
	case int64:
		d.t = time.UnixMilli(v).UTC()
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (d *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

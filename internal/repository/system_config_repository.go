package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Known system_config keys.
const (
	ConfigDefaultCapacity         = "default_capacity"
	ConfigEducationalReservations = "educational_reservations_enabled"
)

// SystemConfigRepo is a tiny key/value store for runtime settings that
// administrators may change without a redeploy.
type SystemConfigRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSystemConfigRepo returns a SystemConfigRepo bound to the given
// database.
func NewSystemConfigRepo(db *sql.DB, dialect Dialect) *SystemConfigRepo {
	return &SystemConfigRepo{db: db, dialect: dialect}
}

// Get returns the stored value of key and whether it is set.
func (r *SystemConfigRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT config_value FROM system_config WHERE config_key = ?`
	var value string
	err := r.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (r *SystemConfigRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.upsertConfigSQL(), key, value, time.Now().UTC())
	return r.dialect.translate(err)
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// CapacityRuleRepo stores per-day capacity overrides in the
// availability_rules table.  Days without a row fall back to the
// configured default, which is resolved by the service layer.
type CapacityRuleRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewCapacityRuleRepo returns a CapacityRuleRepo bound to the given
// database.
func NewCapacityRuleRepo(db *sql.DB, dialect Dialect) *CapacityRuleRepo {
	return &CapacityRuleRepo{db: db, dialect: dialect}
}

// Get returns the override for day and whether one exists.
func (r *CapacityRuleRepo) Get(ctx context.Context, day model.Date) (int, bool, error) {
	return r.get(ctx, r.db, day)
}

// GetTx is Get inside an existing transaction.  Admission reads the
// capacity after taking the day lock so a concurrent override is seen.
func (r *CapacityRuleRepo) GetTx(ctx context.Context, tx *sql.Tx, day model.Date) (int, bool, error) {
	return r.get(ctx, tx, day)
}

func (r *CapacityRuleRepo) get(ctx context.Context, q Querier, day model.Date) (int, bool, error) {
	const query = `SELECT capacity FROM availability_rules WHERE day = ?`
	var capacity int
	err := q.QueryRowContext(ctx, query, day).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return capacity, true, nil
}

// Upsert creates or replaces the override of rule.Day.
func (r *CapacityRuleRepo) Upsert(ctx context.Context, rule model.CapacityRule) error {
	_, err := r.db.ExecContext(ctx, r.dialect.upsertCapacitySQL(), rule.Day, rule.Capacity)
	return r.dialect.translate(err)
}

// ListRange returns the overrides for every day in [from, to] that has
// one.
func (r *CapacityRuleRepo) ListRange(ctx context.Context, from, to model.Date) (map[model.Date]int, error) {
	const query = `SELECT day, capacity FROM availability_rules WHERE day BETWEEN ? AND ? ORDER BY day`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Date]int)
	for rows.Next() {
		var (
			day      model.Date
			capacity int
		)
		if err := rows.Scan(&day, &capacity); err != nil {
			return nil, err
		}
		out[day] = capacity
	}
	return out, rows.Err()
}

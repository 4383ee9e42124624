package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// likeEscape is the LIKE escape character.  A backslash would itself
// need escaping inside MySQL string literals, so "!" is used instead.
const likeEscape = "!"

// containsPattern turns user text into a case-insensitive "contains"
// LIKE pattern with wildcard characters escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// buildFilter renders f as a WHERE clause (including the keyword, or
// empty) plus its arguments.  Identity matches the holder or any
// companion by substring of the normalised ID; Name matches first or last
// name of the holder or any companion, case-insensitively.
func buildFilter(f model.ReservationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Date != nil {
		conds = append(conds, "r.visit_date = ?")
		args = append(args, *f.Date)
	}
	if f.Month != nil {
		conds = append(conds, "r.visit_date BETWEEN ? AND ?")
		args = append(args, f.Month.First(), f.Month.Last())
	}
	if f.Year > 0 {
		conds = append(conds, "r.visit_date BETWEEN ? AND ?")
		args = append(args,
			model.Month{Year: f.Year, Month: 1}.First(),
			model.Month{Year: f.Year, Month: 12}.Last())
	}
	if f.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Kind != "" {
		conds = append(conds, "r.visitor_kind = ?")
		args = append(args, string(f.Kind))
	}
	if id := model.NormalizeIdentity(f.Identity); id != "" {
		p := containsPattern(id)
		conds = append(conds, `(LOWER(r.national_id) LIKE ? ESCAPE '`+likeEscape+`'
    OR EXISTS (SELECT 1 FROM reservation_companions c
               WHERE c.reservation_id = r.id AND LOWER(c.national_id) LIKE ? ESCAPE '`+likeEscape+`'))`)
		args = append(args, p, p)
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		p := containsPattern(name)
		conds = append(conds, `(LOWER(r.first_name) LIKE ? ESCAPE '`+likeEscape+`'
    OR LOWER(r.last_name) LIKE ? ESCAPE '`+likeEscape+`'
    OR EXISTS (SELECT 1 FROM reservation_companions c
               WHERE c.reservation_id = r.id
                 AND (LOWER(c.first_name) LIKE ? ESCAPE '`+likeEscape+`'
                      OR LOWER(c.last_name) LIKE ? ESCAPE '`+likeEscape+`')))`)
		args = append(args, p, p, p, p)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Count returns the number of reservations matching f.
func (r *ReservationRepo) Count(ctx context.Context, f model.ReservationFilter) (int, error) {
	where, args := buildFilter(f)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations r`+where, args...).Scan(&n)
	return n, err
}

// List returns reservations matching f, newest first, skipping offset
// rows and returning at most limit rows.  A limit <= 0 returns every
// match.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter, offset, limit int) ([]model.Reservation, error) {
	where, args := buildFilter(f)
	query := `SELECT ` + reservationColumns + ` FROM reservations r` + where +
		` ORDER BY r.created_at DESC, r.id DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var list []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading companions; SQLite runs with
	// a single connection.
	rows.Close()

	if err := r.attachCompanions(ctx, r.db, list); err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0, len(list))
	for _, res := range list {
		out = append(out, *res)
	}
	return out, nil
}

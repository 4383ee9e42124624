package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations and their
// companions.  Admission runs inside a transaction opened with
// BeginAdmission: LockDayTx serialises writers of one visit date, after
// which SumActivePeopleTx, ExistsActiveTx and CreateTx observe every
// earlier committed admission of that date.  All timestamps are stored
// in UTC.
type ReservationRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB, dialect Dialect) *ReservationRepo {
	return &ReservationRepo{db: db, dialect: dialect}
}

// DB exposes the underlying handle so services can start transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// BeginAdmission starts a transaction with the isolation admission
// requires on the configured dialect.
func (r *ReservationRepo) BeginAdmission(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, r.dialect.admissionTxOptions())
}

// LockDayTx takes the exclusive admission lock of day for the lifetime
// of tx.  A second transaction calling LockDayTx for the same day blocks
// until tx commits or rolls back.
func (r *ReservationRepo) LockDayTx(ctx context.Context, tx *sql.Tx, day model.Date) error {
	_, err := tx.ExecContext(ctx, r.dialect.bumpAdmissionDaySQL(), day)
	return err
}

const sumActiveSQL = `SELECT COALESCE(SUM(adults + minors + infants), 0)
FROM reservations WHERE visit_date = ? AND status <> 'CANCELLED'`

// SumActivePeople returns the number of people booked on day by
// non-cancelled reservations.
func (r *ReservationRepo) SumActivePeople(ctx context.Context, day model.Date) (int, error) {
	var used int64
	err := r.db.QueryRowContext(ctx, sumActiveSQL, day).Scan(&used)
	return int(used), err
}

// SumActivePeopleTx is SumActivePeople inside tx.
func (r *ReservationRepo) SumActivePeopleTx(ctx context.Context, tx *sql.Tx, day model.Date) (int, error) {
	var used int64
	err := tx.QueryRowContext(ctx, sumActiveSQL, day).Scan(&used)
	return int(used), err
}

// SumActivePeopleRange returns the people booked per day in [from, to].
// Days with no active reservation are absent from the map.
func (r *ReservationRepo) SumActivePeopleRange(ctx context.Context, from, to model.Date) (map[model.Date]int, error) {
	const q = `SELECT visit_date, COALESCE(SUM(adults + minors + infants), 0)
FROM reservations
WHERE visit_date BETWEEN ? AND ? AND status <> 'CANCELLED'
GROUP BY visit_date`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Date]int)
	for rows.Next() {
		var (
			day  model.Date
			used int64
		)
		if err := rows.Scan(&day, &used); err != nil {
			return nil, err
		}
		out[day] = int(used)
	}
	return out, rows.Err()
}

// ExistsActiveTx reports whether a non-cancelled reservation for
// identity already exists on day.
func (r *ReservationRepo) ExistsActiveTx(ctx context.Context, tx *sql.Tx, day model.Date, identity string) (bool, error) {
	const q = `SELECT COUNT(*) FROM reservations
WHERE visit_date = ? AND national_id = ? AND status <> 'CANCELLED'`
	var n int
	if err := tx.QueryRowContext(ctx, q, day, identity).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateTx inserts res and its companions within tx.  The caller assigns
// the ID and timestamps and must commit or roll back the transaction.
// A unique violation on the active (visit_date, national_id) key is
// reported as ErrDuplicate.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (
    id, visit_date, national_id, first_name, last_name, phone, email,
    adults, minors, infants, visitor_kind, status,
    institution_name, institution_students, circuit, notes,
    reduced_mobility, allergies, origin_location, how_heard, accepted_policies,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var (
		instName     sql.NullString
		instStudents sql.NullInt64
	)
	if res.Institution != nil {
		instName = sql.NullString{String: res.Institution.Name, Valid: true}
		instStudents = sql.NullInt64{Int64: int64(res.Institution.Students), Valid: true}
	}
	_, err := tx.ExecContext(ctx, q,
		res.ID, res.VisitDate, res.Identity,
		res.Holder.FirstName, res.Holder.LastName, res.Holder.Phone, res.Holder.Email,
		res.Party.Adults, res.Party.Minors, res.Party.Infants,
		string(res.Kind), string(res.Status),
		instName, instStudents, string(res.Circuit), res.Notes,
		res.ReducedMobility, res.Allergies, res.OriginLocation, string(res.HowHeard), res.AcceptedPolicies,
		res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	if err != nil {
		return r.dialect.translate(err)
	}
	return r.createCompanionsTx(ctx, tx, res.ID, res.Companions)
}

// createCompanionsTx inserts all companions in a single statement,
// numbering them in submission order.
func (r *ReservationRepo) createCompanionsTx(ctx context.Context, tx *sql.Tx, reservationID string, companions []model.Companion) error {
	if len(companions) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO reservation_companions (reservation_id, seq, first_name, last_name, national_id, phone) VALUES `)
	args := make([]any, 0, len(companions)*6)
	for i, c := range companions {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		var phone sql.NullString
		if c.Phone != nil {
			phone = sql.NullString{String: *c.Phone, Valid: true}
		}
		args = append(args, reservationID, i, c.FirstName, c.LastName, c.Identity, phone)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return r.dialect.translate(err)
}

const reservationColumns = `r.id, r.visit_date, r.national_id, r.first_name, r.last_name, r.phone, r.email,
r.adults, r.minors, r.infants, r.visitor_kind, r.status,
r.institution_name, r.institution_students, r.circuit, r.notes,
r.reduced_mobility, r.allergies, r.origin_location, r.how_heard, r.accepted_policies,
r.created_at, r.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res          model.Reservation
		kind, status string
		circuit      string
		howHeard     string
		notes        sql.NullString
		instName     sql.NullString
		instStudents sql.NullInt64
		created      dbTime
		updated      dbTime
	)
	err := row.Scan(
		&res.ID, &res.VisitDate, &res.Identity,
		&res.Holder.FirstName, &res.Holder.LastName, &res.Holder.Phone, &res.Holder.Email,
		&res.Party.Adults, &res.Party.Minors, &res.Party.Infants,
		&kind, &status, &instName, &instStudents, &circuit, &notes,
		&res.ReducedMobility, &res.Allergies, &res.OriginLocation, &howHeard, &res.AcceptedPolicies,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}
	res.Kind = model.VisitorKind(kind)
	res.Status = model.Status(status)
	res.Circuit = model.Circuit(circuit)
	res.Notes = notes.String
	res.HowHeard = model.HowHeard(howHeard)
	if instName.Valid {
		res.Institution = &model.Institution{Name: instName.String, Students: int(instStudents.Int64)}
	}
	res.CreatedAt = created.t
	res.UpdatedAt = updated.t
	res.Companions = []model.Companion{}
	return &res, nil
}

// GetByID returns the reservation with the given id, including its
// companions, or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return r.get(ctx, r.db, id)
}

// GetTx is GetByID inside tx.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id string) (*model.Reservation, error) {
	return r.get(ctx, tx, id)
}

func (r *ReservationRepo) get(ctx context.Context, q Querier, id string) (*model.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachCompanions(ctx, q, []*model.Reservation{res}); err != nil {
		return nil, err
	}
	return res, nil
}

// attachCompanions loads the companions of every reservation in list
// with one query and fills their Companions slices in seq order.
func (r *ReservationRepo) attachCompanions(ctx context.Context, q Querier, list []*model.Reservation) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*model.Reservation, len(list))
	placeholders := make([]string, 0, len(list))
	args := make([]any, 0, len(list))
	for _, res := range list {
		byID[res.ID] = res
		placeholders = append(placeholders, "?")
		args = append(args, res.ID)
	}
	query := `SELECT reservation_id, first_name, last_name, national_id, phone
FROM reservation_companions
WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
ORDER BY reservation_id, seq`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			resID string
			c     model.Companion
			phone sql.NullString
		)
		if err := rows.Scan(&resID, &c.FirstName, &c.LastName, &c.Identity, &phone); err != nil {
			return err
		}
		if phone.Valid {
			p := phone.String
			c.Phone = &p
		}
		if res, ok := byID[resID]; ok {
			res.Companions = append(res.Companions, c)
		}
	}
	return rows.Err()
}

// UpdateStatusTx moves the reservation from status from to status to,
// provided it is still in from.  It reports whether a row changed; false
// means another writer got there first (or the id does not exist).
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id string, from, to model.Status, at time.Time) (bool, error) {
	const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, q, string(to), at.UTC(), id, string(from))
	if err != nil {
		return false, r.dialect.translate(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the reservation and its companions.  It returns
// ErrNotFound when no reservation has the given id.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_companions WHERE reservation_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return r.dialect.translate(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

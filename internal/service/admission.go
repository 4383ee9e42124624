package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/repository"
)

// AdmissionService decides whether a new reservation fits the day's
// remaining capacity and does not duplicate an active booking of the
// same identity, and commits it atomically when it does.
//
// Admissions of one day are serialised twice: by an in-process per-day
// lock, and by the admission_days row written first in the admission
// transaction, which covers several server processes sharing a
// database.  Capacity and duplicate checks therefore always see every
// earlier admission of the day.
type AdmissionService struct {
	reservations *repository.ReservationRepo
	rules        *repository.CapacityRuleRepo
	settings     *Settings
	locks        *dayLocks
	logger       *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewAdmissionService wires the admission controller.
func NewAdmissionService(reservations *repository.ReservationRepo, rules *repository.CapacityRuleRepo, settings *Settings, logger *slog.Logger) *AdmissionService {
	return &AdmissionService{
		reservations: reservations,
		rules:        rules,
		settings:     settings,
		locks:        newDayLocks(),
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Submit validates req and persists a new reservation, returning its id.
// The checks run in a fixed order and the first failing one decides the
// error kind: InvalidRequest, CapacityExceeded, FeatureDisabled (or
// InvalidRequest for missing institution fields), DuplicateBooking.
func (s *AdmissionService) Submit(ctx context.Context, req model.SubmitReservationRequest) (string, error) {
	log := logging.Resolve(ctx, s.logger, "service", "admission", "operation", "submit")

	identity := model.NormalizeIdentity(req.Identity)
	if identity == "" {
		return "", newError(KindInvalidRequest, "identity is required")
	}
	if req.VisitDate.IsZero() {
		return "", newError(KindInvalidRequest, "visit date is required")
	}
	rule, ok := kindRules[req.Kind]
	if !ok {
		return "", newError(KindInvalidRequest, "unknown visitor kind %q", req.Kind)
	}
	if rule.adminOnly {
		return "", newError(KindInvalidRequest, "visitor kind %s is not accepted on public submission", req.Kind)
	}
	if req.Party.HasNegative() {
		return "", newError(KindInvalidRequest, "party counts must not be negative")
	}
	requested := req.Party.Total()
	if requested <= 0 {
		return "", newError(KindInvalidRequest, "a reservation must include at least one person")
	}
	var circuit model.Circuit
	if strings.TrimSpace(req.Circuit) != "" {
		c, ok := model.ParseCircuit(req.Circuit)
		if !ok {
			return "", newError(KindInvalidRequest, "unknown circuit %q", req.Circuit)
		}
		circuit = c
	}
	if !req.AcceptedPolicies {
		return "", newError(KindInvalidRequest, "the privacy policies must be accepted")
	}
	if req.ReducedMobility < 0 || req.Allergies < 0 {
		return "", newError(KindInvalidRequest, "reduced mobility and allergy counts must not be negative")
	}
	if req.ReducedMobility > requested || req.Allergies > requested {
		return "", newError(KindInvalidRequest, "reduced mobility and allergy counts must not exceed the party of %d", requested)
	}
	var howHeard model.HowHeard
	if strings.TrimSpace(req.HowHeard) != "" {
		h, ok := model.ParseHowHeard(req.HowHeard)
		if !ok {
			return "", newError(KindInvalidRequest, "unknown how-heard channel %q", req.HowHeard)
		}
		howHeard = h
	}

	// Settings are read before the transaction: they live in the same
	// database and SQLite runs with a single connection.
	flags, err := s.flags(ctx, req.Kind)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	res := &model.Reservation{
		ID:               s.newID(),
		VisitDate:        req.VisitDate,
		Identity:         identity,
		Holder:           trimHolder(req.Holder),
		Party:            req.Party,
		Kind:             req.Kind,
		Status:           rule.initialStatus,
		Circuit:          circuit,
		Notes:            strings.TrimSpace(req.Notes),
		ReducedMobility:  req.ReducedMobility,
		Allergies:        req.Allergies,
		OriginLocation:   strings.TrimSpace(req.OriginLocation),
		HowHeard:         howHeard,
		AcceptedPolicies: true,
		Companions:       normalizeCompanions(req.Companions),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if rule.keepsInstitution && req.Institution != nil {
		res.Institution = &model.Institution{
			Name:     strings.TrimSpace(req.Institution.Name),
			Students: req.Institution.Students,
		}
	}

	err = s.admit(ctx, res, func(ctx context.Context, tx *sql.Tx) error {
		capacity, ok, err := s.rules.GetTx(ctx, tx, req.VisitDate)
		if err != nil {
			return err
		}
		if !ok {
			capacity = flags.defaultCapacity
		}
		used, err := s.reservations.SumActivePeopleTx(ctx, tx, req.VisitDate)
		if err != nil {
			return err
		}
		if used+requested > capacity {
			return newError(KindCapacityExceeded,
				"requested %d people but only %d of %d remain on %s",
				requested, max(capacity-used, 0), capacity, req.VisitDate)
		}
		if rule.validate != nil {
			if err := rule.validate(ctx, &req, flags); err != nil {
				return err
			}
		}
		dup, err := s.reservations.ExistsActiveTx(ctx, tx, req.VisitDate, identity)
		if err != nil {
			return err
		}
		if dup {
			return newError(KindDuplicateBooking, "identity already holds an active reservation on %s", req.VisitDate)
		}
		return nil
	})
	if err != nil {
		if kind := KindOf(err); kind != "" {
			log.Info("reservation rejected", "date", req.VisitDate.String(), "kind", string(req.Kind), "reason", string(kind))
		}
		return "", err
	}
	log.Info("reservation admitted", "id", res.ID, "date", req.VisitDate.String(),
		"kind", string(res.Kind), "people", requested)
	return res.ID, nil
}

// admit runs check and the insert of res inside one admission
// transaction holding the lock of res.VisitDate.  check may be nil.
func (s *AdmissionService) admit(ctx context.Context, res *model.Reservation, check func(ctx context.Context, tx *sql.Tx) error) error {
	unlock, err := s.locks.acquire(ctx, res.VisitDate)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.reservations.BeginAdmission(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.reservations.LockDayTx(ctx, tx, res.VisitDate); err != nil {
		return err
	}
	if check != nil {
		if err := check(ctx, tx); err != nil {
			return err
		}
	}
	if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
		return translateStoreError(err, res.VisitDate)
	}
	if err := tx.Commit(); err != nil {
		return translateStoreError(err, res.VisitDate)
	}
	committed = true
	return nil
}

func (s *AdmissionService) flags(ctx context.Context, kind model.VisitorKind) (admissionFlags, error) {
	var (
		flags admissionFlags
		err   error
	)
	flags.defaultCapacity, err = s.settings.DefaultCapacity(ctx)
	if err != nil {
		return flags, err
	}
	flags.educationalEnabled = true
	if kind == model.KindEducationalInstitution {
		flags.educationalEnabled, err = s.settings.EducationalReservationsEnabled(ctx)
	}
	return flags, err
}

// translateStoreError maps repository integrity errors onto business
// kinds.  A unique violation means a concurrent admission of the same
// identity won the race.
func translateStoreError(err error, day model.Date) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return wrapError(KindDuplicateBooking, err, "identity already holds an active reservation on %s", day)
	case errors.Is(err, repository.ErrConflict):
		return wrapError(KindStorageConflict, err, "reservation violates a storage constraint")
	}
	return err
}

func trimHolder(h model.Holder) model.Holder {
	return model.Holder{
		FirstName: strings.TrimSpace(h.FirstName),
		LastName:  strings.TrimSpace(h.LastName),
		Phone:     strings.TrimSpace(h.Phone),
		Email:     strings.TrimSpace(h.Email),
	}
}

func normalizeCompanions(in []model.Companion) []model.Companion {
	out := make([]model.Companion, 0, len(in))
	for _, c := range in {
		nc := model.Companion{
			FirstName: strings.TrimSpace(c.FirstName),
			LastName:  strings.TrimSpace(c.LastName),
			Identity:  model.NormalizeIdentity(c.Identity),
		}
		if c.Phone != nil {
			if p := strings.TrimSpace(*c.Phone); p != "" {
				nc.Phone = &p
			}
		}
		out = append(out, nc)
	}
	return out
}

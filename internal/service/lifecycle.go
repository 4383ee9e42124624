package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/queue"
	"github.com/iliyamo/visit-reservation/internal/repository"
)

// Emitter receives lifecycle events.  Implementations must not block;
// *queue.AsyncEmitter is the production Emitter.
type Emitter interface {
	Emit(ctx context.Context, ev queue.ReservationEvent)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, queue.ReservationEvent) {}

const defaultEventTitle = "Evento"

// LifecycleService moves committed reservations between PENDING,
// CONFIRMED and CANCELLED and emits one event per real transition.
//
// Transitions are decided explicitly: confirming a CONFIRMED reservation
// or cancelling a CANCELLED one is a no-op without an event, and a
// CANCELLED reservation can never be confirmed again.
type LifecycleService struct {
	reservations *repository.ReservationRepo
	admission    *AdmissionService
	emitter      Emitter
	logger       *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewLifecycleService wires the lifecycle.  CreateEvent persists through
// admission so block allocations take the same per-day lock as regular
// submissions.  A nil emitter discards events.
func NewLifecycleService(reservations *repository.ReservationRepo, admission *AdmissionService, emitter Emitter, logger *slog.Logger) *LifecycleService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &LifecycleService{
		reservations: reservations,
		admission:    admission,
		emitter:      emitter,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Confirm moves a PENDING reservation to CONFIRMED.
func (s *LifecycleService) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(ctx, id, model.StatusConfirmed, queue.EventReservationConfirmed)
}

// Cancel moves a PENDING or CONFIRMED reservation to CANCELLED.  Its
// people stop counting against the day immediately.
func (s *LifecycleService) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(ctx, id, model.StatusCancelled, queue.EventReservationCancelled)
}

func (s *LifecycleService) transition(ctx context.Context, id string, to model.Status, evType queue.EventType) (*model.Reservation, error) {
	log := logging.Resolve(ctx, s.logger, "service", "lifecycle", "operation", strings.ToLower(string(to)), "id", id)

	tx, err := s.reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.reservations.GetTx(ctx, tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "reservation %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if res.Status == to {
		log.Debug("transition is a no-op", "status", string(to))
		return res, nil
	}
	if !res.Status.CanTransitionTo(to) {
		return nil, newError(KindInvalidTransition, "reservation %s is %s and cannot become %s", id, res.Status, to)
	}

	at := s.now().UTC()
	changed, err := s.reservations.UpdateStatusTx(ctx, tx, id, res.Status, to, at)
	if err != nil {
		return nil, translateStoreError(err, res.VisitDate)
	}
	if !changed {
		return nil, newError(KindStorageConflict, "reservation %s was modified concurrently", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	from := res.Status
	res.Status = to
	res.UpdatedAt = at
	log.Info("reservation status changed", "from", string(from), "to", string(to))
	s.emitter.Emit(ctx, queue.NewReservationEvent(evType, res, at))
	return res, nil
}

// Created emits ReservationCreated for a freshly admitted reservation.
// The HTTP layer calls it after a successful Submit.
func (s *LifecycleService) Created(ctx context.Context, id string) error {
	res, err := s.reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, "reservation %s not found", id)
	}
	if err != nil {
		return err
	}
	s.emitter.Emit(ctx, queue.NewReservationEvent(queue.EventReservationCreated, res, s.now()))
	return nil
}

// CreateEvent stores an administrative block allocation: a CONFIRMED
// EVENT reservation for req.Cupo adults under a synthetic identity.  It
// skips the party, capacity, institution and duplicate checks.
func (s *LifecycleService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Reservation, error) {
	if req.Date.IsZero() {
		return nil, newError(KindInvalidRequest, "event date is required")
	}
	cupo := 0
	if req.Cupo != nil {
		cupo = *req.Cupo
	}
	if cupo < 0 {
		return nil, newError(KindInvalidRequest, "cupo must not be negative")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultEventTitle
	}
	circuit, ok := model.ParseCircuit(req.Circuit)
	if !ok {
		circuit = model.CircuitA
	}

	now := s.now().UTC()
	res := &model.Reservation{
		ID:               s.newID(),
		VisitDate:        req.Date,
		Identity:         syntheticIdentity(),
		Holder:           model.Holder{FirstName: title},
		Party:            model.PartyCounts{Adults: cupo},
		Kind:             model.KindEvent,
		Status:           kindRules[model.KindEvent].initialStatus,
		Circuit:          circuit,
		Notes:            strings.TrimSpace(req.Notes),
		AcceptedPolicies: true,
		Companions:       []model.Companion{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.admission.admit(ctx, res, nil); err != nil {
		return nil, err
	}
	logging.Resolve(ctx, s.logger, "service", "lifecycle", "operation", "create_event").
		Info("event created", "id", res.ID, "date", res.VisitDate.String(), "cupo", cupo)
	s.emitter.Emit(ctx, queue.NewReservationEvent(queue.EventReservationCreated, res, now))
	return res, nil
}

// Delete hard-deletes a reservation and its companions.
func (s *LifecycleService) Delete(ctx context.Context, id string) error {
	err := s.reservations.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, "reservation %s not found", id)
	}
	if err != nil {
		return err
	}
	logging.Resolve(ctx, s.logger, "service", "lifecycle", "operation", "delete").
		Warn("reservation deleted", "id", id)
	return nil
}

// syntheticIdentity returns a unique identity for block allocations so
// they never collide with each other or with a visitor.
func syntheticIdentity() string {
	return "EVT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

package service

import (
	"context"
	"log/slog"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/repository"
)

// AvailabilityService derives capacity, usage and remaining places per
// day from the persisted state.  Reads are never cached here; callers
// that display availability may cache the HTTP response.
type AvailabilityService struct {
	rules        *repository.CapacityRuleRepo
	reservations *repository.ReservationRepo
	settings     *Settings
	logger       *slog.Logger
}

// NewAvailabilityService wires the calculator.
func NewAvailabilityService(rules *repository.CapacityRuleRepo, reservations *repository.ReservationRepo, settings *Settings, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{rules: rules, reservations: reservations, settings: settings, logger: logger}
}

// CapacityFor returns the rule capacity of day, or the current default
// when day has no rule.
func (s *AvailabilityService) CapacityFor(ctx context.Context, day model.Date) (int, error) {
	if day.IsZero() {
		return 0, newError(KindInvalidRequest, "date is required")
	}
	capacity, ok, err := s.rules.Get(ctx, day)
	if err != nil {
		return 0, err
	}
	if ok {
		return capacity, nil
	}
	return s.settings.DefaultCapacity(ctx)
}

// UsedFor returns the number of people booked on day by non-cancelled
// reservations.
func (s *AvailabilityService) UsedFor(ctx context.Context, day model.Date) (int, error) {
	if day.IsZero() {
		return 0, newError(KindInvalidRequest, "date is required")
	}
	return s.reservations.SumActivePeople(ctx, day)
}

// AvailabilityFor returns capacity, used and remaining for day.
func (s *AvailabilityService) AvailabilityFor(ctx context.Context, day model.Date) (model.DayAvailability, error) {
	capacity, err := s.CapacityFor(ctx, day)
	if err != nil {
		return model.DayAvailability{}, err
	}
	used, err := s.UsedFor(ctx, day)
	if err != nil {
		return model.DayAvailability{}, err
	}
	return model.NewDayAvailability(day, capacity, used), nil
}

// AvailabilityForMonth returns one entry per calendar day of month, in
// date order.  Each entry follows the same rule as AvailabilityFor; the
// rules and sums are fetched with one range query each.
func (s *AvailabilityService) AvailabilityForMonth(ctx context.Context, month model.Month) ([]model.DayAvailability, error) {
	if month.Year == 0 || month.Month < 1 || month.Month > 12 {
		return nil, newError(KindInvalidRequest, "month is required")
	}
	first, last := month.First(), month.Last()
	rules, err := s.rules.ListRange(ctx, first, last)
	if err != nil {
		return nil, err
	}
	used, err := s.reservations.SumActivePeopleRange(ctx, first, last)
	if err != nil {
		return nil, err
	}
	def, err := s.settings.DefaultCapacity(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.DayAvailability, 0, month.Days())
	for day := first; !day.After(last); day = day.AddDays(1) {
		capacity, ok := rules[day]
		if !ok {
			capacity = def
		}
		out = append(out, model.NewDayAvailability(day, capacity, used[day]))
	}
	return out, nil
}

// UpsertCapacity sets the capacity override of day.  Lowering it below
// what is already booked is allowed; remaining is then reported as zero.
func (s *AvailabilityService) UpsertCapacity(ctx context.Context, day model.Date, capacity int) error {
	if day.IsZero() {
		return newError(KindInvalidRequest, "date is required")
	}
	if capacity < 0 {
		return newError(KindInvalidRequest, "capacity must not be negative")
	}
	if err := s.rules.Upsert(ctx, model.CapacityRule{Day: day, Capacity: capacity}); err != nil {
		return err
	}
	logging.Resolve(ctx, s.logger, "service", "availability").
		Info("capacity updated", "day", day.String(), "capacity", capacity)
	return nil
}

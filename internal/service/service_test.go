package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/visit-reservation/internal/database"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/queue"
	"github.com/iliyamo/visit-reservation/internal/repository"
)

type fakeEmitter struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (f *fakeEmitter) Emit(_ context.Context, ev queue.ReservationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeEmitter) types() []queue.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db           *sql.DB
	reservations *repository.ReservationRepo
	settings     *Settings
	availability *AvailabilityService
	admission    *AdmissionService
	lifecycle    *LifecycleService
	query        *QueryService
	emitter      *fakeEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "visits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reservations := repository.NewReservationRepo(db, repository.SQLite)
	rules := repository.NewCapacityRuleRepo(db, repository.SQLite)
	settings := NewSettings(repository.NewSystemConfigRepo(db, repository.SQLite), nil, 0, 30, logger)
	admission := NewAdmissionService(reservations, rules, settings, logger)
	emitter := &fakeEmitter{}

	return &fixture{
		db:           db,
		reservations: reservations,
		settings:     settings,
		availability: NewAvailabilityService(rules, reservations, settings, logger),
		admission:    admission,
		lifecycle:    NewLifecycleService(reservations, admission, emitter, logger),
		query:        NewQueryService(reservations, 0),
		emitter:      emitter,
	}
}

func individual(day, identity string, adults int) model.SubmitReservationRequest {
	return model.SubmitReservationRequest{
		VisitDate: model.MustParseDate(day),
		Identity:  identity,
		Holder:    model.Holder{FirstName: "Ana", LastName: "Pérez", Email: "ana@example.com"},
		Party:     model.PartyCounts{Adults: adults},
		Kind:      model.KindIndividual,

		AcceptedPolicies: true,
	}
}

func (f *fixture) submit(t *testing.T, req model.SubmitReservationRequest) string {
	t.Helper()
	id, err := f.admission.Submit(context.Background(), req)
	require.NoError(t, err)
	return id
}

func (f *fixture) remaining(t *testing.T, day string) int {
	t.Helper()
	av, err := f.availability.AvailabilityFor(context.Background(), model.MustParseDate(day))
	require.NoError(t, err)
	return av.Remaining
}

package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/queue"
)

func TestLifecycle_ConfirmThenCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, individual("2025-09-15", "L1", 2))

	res, err := f.lifecycle.Confirm(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)

	// Confirming again is a no-op without an event.
	res, err = f.lifecycle.Confirm(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)

	res, err = f.lifecycle.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)

	_, err = f.lifecycle.Cancel(ctx, id)
	require.NoError(t, err)

	_, err = f.lifecycle.Confirm(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, []queue.EventType{queue.EventReservationConfirmed, queue.EventReservationCancelled}, f.emitter.types())

	stored, err := f.query.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestLifecycle_CancelPending(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, individual("2025-09-15", "L2", 1))

	res, err := f.lifecycle.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)

	f.emitter.mu.Lock()
	defer f.emitter.mu.Unlock()
	require.Len(t, f.emitter.events, 1)
	ev := f.emitter.events[0]
	assert.Equal(t, queue.EventReservationCancelled, ev.Type)
	assert.Equal(t, id, ev.ReservationID)
	assert.Equal(t, "2025-09-15", ev.VisitDate)
	assert.Equal(t, "L2", ev.Identity)
	assert.Equal(t, model.StatusCancelled, ev.Status)
}

func TestLifecycle_UnknownID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Confirm(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.lifecycle.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.lifecycle.Created(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, f.lifecycle.Delete(ctx, "missing"), ErrNotFound)
	assert.Empty(t, f.emitter.types())
}

func TestLifecycle_Created(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, individual("2025-09-15", "L3", 2))

	require.NoError(t, f.lifecycle.Created(context.Background(), id))
	f.emitter.mu.Lock()
	defer f.emitter.mu.Unlock()
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, queue.EventReservationCreated, f.emitter.events[0].Type)
	assert.Equal(t, 2, f.emitter.events[0].PartySize)
	assert.Equal(t, "ana@example.com", f.emitter.events[0].Email)
}

func TestLifecycle_CreateEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := model.MustParseDate("2025-09-15")
	require.NoError(t, f.availability.UpsertCapacity(ctx, day, 5))

	cupo := 40
	res, err := f.lifecycle.CreateEvent(ctx, model.CreateEventRequest{
		Title: "Noche de museos", Date: day, Circuit: "c", Cupo: &cupo, Notes: "  guided  ",
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindEvent, res.Kind)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, 40, res.Party.Adults)
	assert.Equal(t, "Noche de museos", res.Holder.FirstName)
	assert.Equal(t, model.CircuitC, res.Circuit)
	assert.Equal(t, "guided", res.Notes)
	assert.True(t, strings.HasPrefix(res.Identity, "EVT"))

	// The allocation bypasses capacity but still counts as used.
	av, err := f.availability.AvailabilityFor(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 40, av.Used)
	assert.Equal(t, 0, av.Remaining)

	// Defaults: title, circuit, empty cupo; identities never collide.
	other, err := f.lifecycle.CreateEvent(ctx, model.CreateEventRequest{Date: day, Circuit: "nope"})
	require.NoError(t, err)
	assert.Equal(t, defaultEventTitle, other.Holder.FirstName)
	assert.Equal(t, model.CircuitA, other.Circuit)
	assert.Equal(t, 0, other.Party.Total())
	assert.NotEqual(t, res.Identity, other.Identity)

	assert.Equal(t, []queue.EventType{queue.EventReservationCreated, queue.EventReservationCreated}, f.emitter.types())

	stored, err := f.query.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Identity, stored.Identity)
}

func TestLifecycle_CreateEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.CreateEvent(ctx, model.CreateEventRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	negative := -1
	_, err = f.lifecycle.CreateEvent(ctx, model.CreateEventRequest{Date: model.MustParseDate("2025-09-15"), Cupo: &negative})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestLifecycle_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, individual("2025-09-15", "L4", 3))

	require.NoError(t, f.lifecycle.Delete(ctx, id))
	_, err := f.query.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, f.remainingDefault(t, "2025-09-15"), f.remaining(t, "2025-09-15"))
}

func TestNopEmitter(t *testing.T) {
	assert.NotPanics(t, func() {
		NopEmitter{}.Emit(context.Background(), queue.ReservationEvent{})
	})
}

func (f *fixture) remainingDefault(t *testing.T, day string) int {
	t.Helper()
	capacity, err := f.availability.CapacityFor(context.Background(), model.MustParseDate(day))
	require.NoError(t, err)
	return capacity
}

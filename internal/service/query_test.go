package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/visit-reservation/internal/model"
)

func TestQuery_ListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.submit(t, individual("2025-09-15", fmt.Sprintf("Q%d", i), 1))
	}

	page, err := f.query.List(ctx, model.ReservationFilter{}, model.PageRequest{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 2)

	page, err = f.query.List(ctx, model.ReservationFilter{}, model.PageRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = f.query.List(ctx, model.ReservationFilter{}, model.PageRequest{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)

	page, err = f.query.List(ctx, model.ReservationFilter{}, model.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Size)
}

func TestQuery_ListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, individual("2025-09-15", "S1", 2))
	f.submit(t, individual("2025-09-15", "S2", 2))
	_, err := f.lifecycle.Cancel(ctx, id)
	require.NoError(t, err)

	page, err := f.query.List(ctx, model.ReservationFilter{Status: model.StatusCancelled}, model.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, id, page.Items[0].ID)
}

func TestQuery_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []model.PageRequest{{Page: -1}, {Size: -3}, {Size: MaxPageSize + 1}} {
		_, err := f.query.List(ctx, model.ReservationFilter{}, p)
		assert.ErrorIs(t, err, ErrInvalidRequest, "%+v", p)
	}
	_, err := f.query.List(ctx, model.ReservationFilter{Status: "LOST"}, model.PageRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.query.Export(ctx, model.ReservationFilter{Kind: "ALIEN"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestQuery_ExportGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.query = NewQueryService(f.reservations, 2)
	for i := 0; i < 3; i++ {
		f.submit(t, individual("2025-09-15", fmt.Sprintf("E%d", i), 1))
	}
	f.submit(t, individual("2025-09-20", "E9", 1))

	_, err := f.query.Export(ctx, model.ReservationFilter{})
	assert.ErrorIs(t, err, ErrTooManyRecords)

	day := model.MustParseDate("2025-09-20")
	rows, err := f.query.Export(ctx, model.ReservationFilter{Date: &day})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "E9", rows[0].Identity)
}

func TestQuery_ExportLimitIsExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.query = NewQueryService(f.reservations, 2)
	day := model.MustParseDate("2025-09-15")
	filter := model.ReservationFilter{Date: &day}

	f.submit(t, individual("2025-09-15", "L1", 1))
	f.submit(t, individual("2025-09-15", "L2", 1))
	rows, err := f.query.Export(ctx, filter)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// one more admission pushes the same filter over the limit
	f.submit(t, individual("2025-09-15", "L3", 1))
	rows, err = f.query.Export(ctx, filter)
	assert.ErrorIs(t, err, ErrTooManyRecords)
	assert.Nil(t, rows)
}

func TestQuery_GetUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.query.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("handler: %w", newError(KindCapacityExceeded, "full"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NotErrorIs(t, err, ErrDuplicateBooking)
	assert.Equal(t, KindCapacityExceeded, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))

	cause := errors.New("driver said no")
	wrapped := wrapError(KindStorageConflict, cause, "write failed")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "write failed: driver said no", wrapped.Error())
	assert.Equal(t, string(KindNotFound), ErrNotFound.Error())
}

func TestDayLocks_SerialiseSameDay(t *testing.T) {
	locks := newDayLocks()
	day := model.MustParseDate("2025-09-15")
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.acquire(ctx, day)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
	assert.Zero(t, locks.size())
}

func TestDayLocks_OtherDaysDoNotWait(t *testing.T) {
	locks := newDayLocks()
	ctx := context.Background()
	unlock, err := locks.acquire(ctx, model.MustParseDate("2025-09-15"))
	require.NoError(t, err)
	defer unlock()

	other, err := locks.acquire(ctx, model.MustParseDate("2025-09-16"))
	require.NoError(t, err)
	other()
	other() // releasing twice is harmless
	assert.Equal(t, 1, locks.size())
}

func TestDayLocks_AcquireHonoursContext(t *testing.T) {
	locks := newDayLocks()
	day := model.MustParseDate("2025-09-15")
	unlock, err := locks.acquire(context.Background(), day)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, day)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, locks.size())
}

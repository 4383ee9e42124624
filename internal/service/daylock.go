package service

import (
	"context"
	"sync"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// dayLocks is a set of per-day mutexes.  Entries are reference counted
// and removed when the last holder or waiter leaves, so the map only
// holds days with in-flight admissions.
type dayLocks struct {
	mu    sync.Mutex
	locks map[model.Date]*dayLock
}

type dayLock struct {
	sem  chan struct{}
	refs int
}

func newDayLocks() *dayLocks {
	return &dayLocks{locks: make(map[model.Date]*dayLock)}
}

// acquire blocks until the lock of day is held or ctx is done.  The
// returned function releases the lock and must be called exactly once.
func (l *dayLocks) acquire(ctx context.Context, day model.Date) (func(), error) {
	l.mu.Lock()
	dl, ok := l.locks[day]
	if !ok {
		dl = &dayLock{sem: make(chan struct{}, 1)}
		l.locks[day] = dl
	}
	dl.refs++
	l.mu.Unlock()

	select {
	case dl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(day, dl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-dl.sem
			l.release(day, dl)
		})
	}, nil
}

func (l *dayLocks) release(day model.Date, dl *dayLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	dl.refs--
	if dl.refs == 0 {
		delete(l.locks, day)
	}
}

// size returns the number of tracked days.
func (l *dayLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

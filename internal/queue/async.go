package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink delivers one event.  *Publisher is the production Sink.
type Sink interface {
	Publish(ctx context.Context, ev ReservationEvent) error
}

// AsyncEmitter hands events to a Sink from a background worker.  Emit
// never blocks the caller: when the buffer is full the event is dropped
// and logged.  Delivery failures are logged and otherwise ignored; they
// never affect the reservation that produced the event.
type AsyncEmitter struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
	events  chan ReservationEvent

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncEmitter starts the worker.  buffer <= 0 selects a default of
// 256; timeout bounds each delivery.
func NewAsyncEmitter(sink Sink, buffer int, timeout time.Duration, logger *slog.Logger) *AsyncEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &AsyncEmitter{
		sink:    sink,
		logger:  logger,
		timeout: timeout,
		events:  make(chan ReservationEvent, buffer),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit queues ev for delivery.  The context is not used for delivery,
// which outlives the request that emitted the event.
func (e *AsyncEmitter) Emit(_ context.Context, ev ReservationEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.logger.Warn("event dropped: emitter closed", "type", ev.Type, "reservation_id", ev.ReservationID)
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event dropped: buffer full", "type", ev.Type, "reservation_id", ev.ReservationID)
	}
}

// Close stops accepting events and waits until the buffered ones were
// handed to the sink or ctx is done.
func (e *AsyncEmitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	e.mu.Unlock()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *AsyncEmitter) run() {
	defer close(e.done)
	for ev := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := e.sink.Publish(ctx, ev); err != nil {
			e.logger.Warn("event delivery failed", "type", ev.Type, "reservation_id", ev.ReservationID, "error", err)
		}
		cancel()
	}
}

// Package queue defines the reservation events exchanged over the
// message broker, the RabbitMQ publisher and consumer, and the
// fire-and-forget emitter used by the services.
package queue

import (
	"time"

	"github.com/iliyamo/visit-reservation/internal/model"
)

// EventType names an event.  Each type is published to the durable
// queue of the same name on the default exchange.
type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCancelled EventType = "reservation.cancelled"
)

// EventTypes lists every event type, in lifecycle order.
var EventTypes = []EventType{EventReservationCreated, EventReservationConfirmed, EventReservationCancelled}

// Queue returns the queue name the event type is routed to.
func (t EventType) Queue() string { return string(t) }

// ReservationEvent is published whenever a reservation is created,
// confirmed or cancelled.  It contains enough information for the
// notifier to render a message without querying the primary database.
type ReservationEvent struct {
	Type          EventType         `json:"type"`
	ReservationID string            `json:"reservation_id"`
	VisitDate     string            `json:"visit_date"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Identity      string            `json:"identity"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	PartySize     int               `json:"party_size"`
	Kind          model.VisitorKind `json:"visitor_kind"`
	Status        model.Status      `json:"status"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// NewReservationEvent snapshots res into an event of type t.
func NewReservationEvent(t EventType, res *model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: res.ID,
		VisitDate:     res.VisitDate.String(),
		FirstName:     res.Holder.FirstName,
		LastName:      res.Holder.LastName,
		Identity:      res.Identity,
		Email:         res.Holder.Email,
		Phone:         res.Holder.Phone,
		PartySize:     res.Party.Total(),
		Kind:          res.Kind,
		Status:        res.Status,
		OccurredAt:    at.UTC(),
	}
}

// Package queue carries reservation events over RabbitMQ: the publisher
// used by the service after each committed change, and the audit consumer
// that appends them to a log file.
package queue

import (
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// EventsQueue is the durable queue every reservation event is routed to.
const EventsQueue = "reservation.events"

// Event types carried in ReservationEvent.Type and amqp.Publishing.Type.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationsCleared  = "reservations.cleared"
)

// ReservationEvent describes one committed ledger change.  It holds
// enough for downstream consumers to log or notify without querying the
// service.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservation_id,omitempty"`
	BusID         string `json:"bus_id,omitempty"`
	Route         string `json:"route,omitempty"`
	Passenger     string `json:"passenger,omitempty"`
	Seat          string `json:"seat,omitempty"`
	Price         int    `json:"price,omitempty"`
	Count         int    `json:"count,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// ReservationCreated builds the event for a new booking.
func ReservationCreated(r model.Reservation, price int, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          EventReservationCreated,
		ReservationID: r.ID,
		BusID:         r.BusID,
		Route:         r.Route,
		Passenger:     r.Name,
		Seat:          r.SeatLabel(),
		Price:         price,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}

// ReservationCancelled builds the event for a cancellation.
func ReservationCancelled(r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          EventReservationCancelled,
		ReservationID: r.ID,
		BusID:         r.BusID,
		Route:         r.Route,
		Passenger:     r.Name,
		Seat:          r.SeatLabel(),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}

// ReservationsCleared builds the event for an administrative clear-all.
func ReservationsCleared(count int, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:       EventReservationsCleared,
		Count:      count,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

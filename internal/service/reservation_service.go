// Package service is the façade the HTTP layer talks to.  It validates
// input, delegates to the ledger and inventory, and after every committed
// change records metrics and publishes an event.  Publishing is
// best-effort: a broker failure is logged and never undoes a change.
package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/metrics"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
)

const publishTimeout = 2 * time.Second

// Ledger is the reservation lifecycle the service drives.
type Ledger interface {
	Reserve(ctx context.Context, busID string, row, seat int, name string) (model.Reservation, error)
	Cancel(ctx context.Context, id string) (model.Reservation, error)
	ClearAll(ctx context.Context) (int, error)
	Get(id string) (model.Reservation, error)
	All() iter.Seq[model.Reservation]
}

// Inventory is the read side of the seat grids.
type Inventory interface {
	Catalog(busID string) (model.Bus, error)
	Bus(busID string) (model.BusSnapshot, error)
	Buses() []model.BusSnapshot
	Occupancy(busID string) (booked, total int, err error)
}

// Publisher delivers reservation events.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// BusSummary is one row of the bus list.
type BusSummary struct {
	model.Bus
	SeatsLeft int `json:"seats_left"`
}

// Occupancy is one row of the dashboard.
type Occupancy struct {
	BusID    string  `json:"bus_id"`
	Route    string  `json:"route"`
	Booked   int     `json:"booked"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
}

// ReservationService exposes every user-facing operation.
type ReservationService struct {
	ledger    Ledger
	inv       Inventory
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithPublisher enables event publishing.
func WithPublisher(p Publisher) Option {
	return func(s *ReservationService) { s.publisher = p }
}

// WithMetrics enables business metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReservationService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ReservationService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time stamped on events.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the service.  Without options it neither publishes nor
// records metrics.
func New(ledger Ledger, inv Inventory, opts ...Option) *ReservationService {
	s := &ReservationService{
		ledger: ledger,
		inv:    inv,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.refreshBookedGauge()
	return s
}

// ListBuses returns every bus in catalog order with its seats left.
func (s *ReservationService) ListBuses() []BusSummary {
	snaps := s.inv.Buses()
	out := make([]BusSummary, 0, len(snaps))
	for _, b := range snaps {
		out = append(out, BusSummary{Bus: b.Bus, SeatsLeft: b.Available})
	}
	return out
}

// Bus returns one bus with its seat grid.
func (s *ReservationService) Bus(busID string) (model.BusSnapshot, error) {
	return s.inv.Bus(strings.TrimSpace(busID))
}

// Dashboard reports occupancy for every bus in catalog order.
func (s *ReservationService) Dashboard() []Occupancy {
	snaps := s.inv.Buses()
	out := make([]Occupancy, 0, len(snaps))
	for _, b := range snaps {
		o := Occupancy{BusID: b.ID, Route: b.Route, Booked: b.Booked(), Total: b.TotalSeats()}
		if o.Total > 0 {
			o.Fraction = float64(o.Booked) / float64(o.Total)
		}
		out = append(out, o)
	}
	return out
}

// Reserve books one seat.  Coordinates are zero-based.
func (s *ReservationService) Reserve(ctx context.Context, busID string, row, seat int, name string) (model.Reservation, error) {
	busID = strings.TrimSpace(busID)
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Reservation{}, model.ErrInvalidName
	}
	if row < 0 || seat < 0 {
		return model.Reservation{}, model.ErrInvalidSeat
	}

	r, err := s.ledger.Reserve(ctx, busID, row, seat, name)
	if err != nil {
		s.countFailure(err)
		return model.Reservation{}, err
	}
	s.log.Info("seat reserved", "reservation_id", r.ID, "bus_id", r.BusID, "seat", r.SeatLabel())
	if s.metrics != nil {
		s.metrics.Reservations.Inc()
	}
	s.refreshBookedGauge(r.BusID)

	price := 0
	if bus, err := s.inv.Catalog(r.BusID); err == nil {
		price = bus.PricePerSeat
	}
	s.publish(ctx, queue.ReservationCreated(r, price, s.now()))
	return r, nil
}

// Cancel removes reservation id and frees its seat.
func (s *ReservationService) Cancel(ctx context.Context, id string) (model.Reservation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Reservation{}, model.ErrNotFound
	}
	r, err := s.ledger.Cancel(ctx, id)
	if err != nil {
		s.countFailure(err)
		return model.Reservation{}, err
	}
	s.log.Info("reservation cancelled", "reservation_id", r.ID, "bus_id", r.BusID, "seat", r.SeatLabel())
	if s.metrics != nil {
		s.metrics.Cancellations.Inc()
	}
	s.refreshBookedGauge(r.BusID)
	s.publish(ctx, queue.ReservationCancelled(r, s.now()))
	return r, nil
}

// Reservation returns one live reservation.
func (s *ReservationService) Reservation(id string) (model.Reservation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Reservation{}, model.ErrNotFound
	}
	return s.ledger.Get(id)
}

// ListReservations returns live reservations ordered by creation time,
// optionally restricted to one bus.
func (s *ReservationService) ListReservations(busID string) []model.Reservation {
	busID = strings.TrimSpace(busID)
	out := []model.Reservation{}
	for r := range s.ledger.All() {
		if busID == "" || r.BusID == busID {
			out = append(out, r)
		}
	}
	return out
}

// ClearAll removes every reservation and frees every seat.  It returns
// the number of reservations removed.
func (s *ReservationService) ClearAll(ctx context.Context) (int, error) {
	count, err := s.ledger.ClearAll(ctx)
	if err != nil {
		s.countFailure(err)
		return 0, err
	}
	s.log.Warn("all reservations cleared", "count", count)
	if s.metrics != nil {
		s.metrics.Clears.Inc()
	}
	s.refreshBookedGauge()
	s.publish(ctx, queue.ReservationsCleared(count, s.now()))
	return count, nil
}

func (s *ReservationService) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, model.ErrSeatTaken):
		s.metrics.SeatConflicts.Inc()
	case errors.Is(err, model.ErrIO):
		s.metrics.PersistFailures.Inc()
	}
}

// refreshBookedGauge sets the booked-seat gauge for the named buses, or
// for every bus when none are named.
func (s *ReservationService) refreshBookedGauge(busIDs ...string) {
	if s.metrics == nil {
		return
	}
	if len(busIDs) == 0 {
		for _, b := range s.inv.Buses() {
			busIDs = append(busIDs, b.ID)
		}
	}
	for _, id := range slices.Compact(slices.Sorted(slices.Values(busIDs))) {
		booked, _, err := s.inv.Occupancy(id)
		if err != nil {
			continue
		}
		s.metrics.SeatsBooked.WithLabelValues(id).Set(float64(booked))
	}
}

// publish runs detached from the request so a client that hangs up right
// after a commit does not lose the event.
func (s *ReservationService) publish(ctx context.Context, ev queue.ReservationEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		s.log.Warn("event not published", "type", ev.Type, "reservation_id", ev.ReservationID, "err", err)
	}
}

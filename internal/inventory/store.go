// Package inventory owns the authoritative seat grid of every bus.  The
// store is a leaf component: it knows nothing about reservations and
// only enforces that each transition matches the current cell state.
package inventory

import (
	"fmt"
	"sync"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Store holds one seat grid per catalog bus.  The set of buses is fixed
// at construction, so lookups need no store-wide lock; every grid guards
// itself.
type Store struct {
	order []string
	buses map[string]*grid
}

type grid struct {
	mu        sync.RWMutex
	bus       model.Bus
	seats     [][]model.SeatState
	available int
}

// New builds a store with every seat of every bus Available.  Catalog
// entries must be valid and have unique ids.
func New(catalog []model.Bus) (*Store, error) {
	s := &Store{
		order: make([]string, 0, len(catalog)),
		buses: make(map[string]*grid, len(catalog)),
	}
	for _, b := range catalog {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.buses[b.ID]; dup {
			return nil, fmt.Errorf("duplicate bus id %q in catalog", b.ID)
		}
		g := &grid{bus: b}
		g.reset()
		s.buses[b.ID] = g
		s.order = append(s.order, b.ID)
	}
	return s, nil
}

func (g *grid) reset() {
	g.seats = make([][]model.SeatState, g.bus.Rows)
	for r := range g.seats {
		row := make([]model.SeatState, g.bus.SeatsPerRow)
		for c := range row {
			row[c] = model.SeatAvailable
		}
		g.seats[r] = row
	}
	g.available = g.bus.TotalSeats()
}

func (g *grid) snapshot() model.BusSnapshot {
	seats := make([][]model.SeatState, len(g.seats))
	for r, row := range g.seats {
		seats[r] = append([]model.SeatState(nil), row...)
	}
	return model.BusSnapshot{Bus: g.bus, Seats: seats, Available: g.available}
}

func (s *Store) lookup(busID string) (*grid, error) {
	g, ok := s.buses[busID]
	if !ok {
		return nil, fmt.Errorf("bus %q: %w", busID, model.ErrNotFound)
	}
	return g, nil
}

// Catalog returns the catalog entry of a bus without copying its grid.
func (s *Store) Catalog(busID string) (model.Bus, error) {
	g, err := s.lookup(busID)
	if err != nil {
		return model.Bus{}, err
	}
	return g.bus, nil
}

// IDs returns bus ids in catalog order.
func (s *Store) IDs() []string { return append([]string(nil), s.order...) }

// Bus returns a snapshot of one bus and its seat grid.
func (s *Store) Bus(busID string) (model.BusSnapshot, error) {
	g, err := s.lookup(busID)
	if err != nil {
		return model.BusSnapshot{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot(), nil
}

// Buses returns snapshots of every bus in catalog order.
func (s *Store) Buses() []model.BusSnapshot {
	out := make([]model.BusSnapshot, 0, len(s.order))
	for _, id := range s.order {
		g := s.buses[id]
		g.mu.RLock()
		out = append(out, g.snapshot())
		g.mu.RUnlock()
	}
	return out
}

// MarkBooked flips an Available seat to Booked.  Booking a seat that is
// already Booked fails with model.ErrAlreadyBooked; it is never a no-op,
// since callers rely on the error to detect stale state.
func (s *Store) MarkBooked(busID string, row, seat int) error {
	return s.transition(busID, row, seat, model.SeatAvailable, model.SeatBooked)
}

// MarkAvailable flips a Booked seat back to Available.  Freeing a seat
// that is already Available fails with model.ErrAlreadyAvailable.
func (s *Store) MarkAvailable(busID string, row, seat int) error {
	return s.transition(busID, row, seat, model.SeatBooked, model.SeatAvailable)
}

func (s *Store) transition(busID string, row, seat int, from, to model.SeatState) error {
	g, err := s.lookup(busID)
	if err != nil {
		return err
	}
	if !g.bus.Contains(row, seat) {
		return fmt.Errorf("bus %s seat (%d,%d) outside %dx%d grid: %w",
			busID, row, seat, g.bus.Rows, g.bus.SeatsPerRow, model.ErrInvalidSeat)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seats[row][seat] != from {
		if to == model.SeatBooked {
			return fmt.Errorf("bus %s seat %s: %w", busID, model.SeatLabel(row, seat), model.ErrAlreadyBooked)
		}
		return fmt.Errorf("bus %s seat %s: %w", busID, model.SeatLabel(row, seat), model.ErrAlreadyAvailable)
	}
	g.seats[row][seat] = to
	if to == model.SeatBooked {
		g.available--
	} else {
		g.available++
	}
	return nil
}

// Occupancy returns the booked and total seat counts of a bus.
func (s *Store) Occupancy(busID string) (booked, total int, err error) {
	g, err := s.lookup(busID)
	if err != nil {
		return 0, 0, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	total = g.bus.TotalSeats()
	return total - g.available, total, nil
}

// Reset returns every seat of every bus to Available.
func (s *Store) Reset() {
	for _, g := range s.buses {
		g.mu.Lock()
		g.reset()
		g.mu.Unlock()
	}
}

// Package ledger owns the lifecycle of reservations.  It keeps the
// reservation records and the inventory seat grid in step: a command
// either updates both and commits them to the store, or leaves both
// untouched.
//
// Commands on the same bus are serialized by a per-bus critical section;
// commands on different buses run in parallel up to the snapshot commit,
// which is serialized so snapshots reach the store in order.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// DefaultPersistTimeout bounds a single snapshot save.
const DefaultPersistTimeout = 3 * time.Second

// Store persists full ledger snapshots.
type Store interface {
	Load(ctx context.Context) (map[string]model.Reservation, error)
	Save(ctx context.Context, reservations map[string]model.Reservation) error
}

// Inventory is the seat grid the ledger books against.
type Inventory interface {
	Catalog(busID string) (model.Bus, error)
	IDs() []string
	MarkBooked(busID string, row, seat int) error
	MarkAvailable(busID string, row, seat int) error
	Reset()
}

// Ledger is the authoritative collection of live reservations.
type Ledger struct {
	inv            Inventory
	store          Store
	log            *slog.Logger
	now            func() time.Time
	persistTimeout time.Duration
	ids            idGenerator

	busLocks map[string]*semaphore.Weighted
	commit   *semaphore.Weighted

	mu           sync.RWMutex
	reservations map[string]model.Reservation
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for anomalies and rollbacks.
func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.log = l
		}
	}
}

// WithClock overrides the time source used to stamp reservations.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) {
		if now != nil {
			led.now = now
		}
	}
}

// WithPersistTimeout overrides DefaultPersistTimeout.
func WithPersistTimeout(d time.Duration) Option {
	return func(led *Ledger) {
		if d > 0 {
			led.persistTimeout = d
		}
	}
}

// New returns an empty ledger over inv and store.  Call Restore to load
// the persisted snapshot before serving requests.
func New(inv Inventory, store Store, opts ...Option) *Ledger {
	l := &Ledger{
		inv:            inv,
		store:          store,
		log:            slog.Default(),
		now:            time.Now,
		persistTimeout: DefaultPersistTimeout,
		busLocks:       make(map[string]*semaphore.Weighted),
		commit:         semaphore.NewWeighted(1),
		reservations:   make(map[string]model.Reservation),
	}
	for _, id := range inv.IDs() {
		l.busLocks[id] = semaphore.NewWeighted(1)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore loads the persisted snapshot and replays every record as a
// booked seat.  A malformed store is logged and treated as empty.
// Records that name an unknown bus, an out-of-range seat or a seat
// already claimed by an earlier record are dropped and logged; they
// disappear from the store on the next commit.
func (l *Ledger) Restore(ctx context.Context) error {
	release, err := l.lockAll(ctx)
	if err != nil {
		return err
	}
	defer release()

	loadCtx, cancel := context.WithTimeout(ctx, l.persistTimeout)
	defer cancel()
	loaded, err := l.store.Load(loadCtx)
	switch {
	case errors.Is(err, model.ErrMalformed):
		l.log.Error("reservation store is malformed, starting with an empty ledger", "err", err)
		loaded = map[string]model.Reservation{}
	case err != nil:
		return fmt.Errorf("loading reservations: %w: %w", model.ErrIO, err)
	}

	l.inv.Reset()
	kept := make(map[string]model.Reservation, len(loaded))
	for _, r := range sortedByCreation(loaded) {
		if strings.TrimSpace(r.Name) == "" {
			l.log.Warn("dropping persisted reservation without passenger name", "reservation_id", r.ID)
			continue
		}
		if err := l.inv.MarkBooked(r.BusID, r.Row, r.Seat); err != nil {
			l.log.Warn("dropping persisted reservation", "reservation_id", r.ID, "bus_id", r.BusID,
				"row", r.Row, "seat", r.Seat, "err", err)
			continue
		}
		kept[r.ID] = r
	}

	l.mu.Lock()
	l.reservations = kept
	l.mu.Unlock()
	l.log.Info("ledger restored", "reservations", len(kept), "dropped", len(loaded)-len(kept))
	return nil
}

// Reserve books seat (row, seat) of busID for name.  The name is trimmed
// and must not be empty; coordinates are zero-based.  A seat that is
// already booked yields model.ErrSeatTaken.  If the snapshot cannot be
// saved the seat is returned to Available and model.ErrIO is reported.
func (l *Ledger) Reserve(ctx context.Context, busID string, row, seat int, name string) (model.Reservation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Reservation{}, model.ErrInvalidName
	}
	bus, err := l.inv.Catalog(busID)
	if err != nil {
		return model.Reservation{}, err
	}
	if !bus.Contains(row, seat) {
		return model.Reservation{}, fmt.Errorf("bus %s seat (%d,%d) outside %dx%d grid: %w",
			busID, row, seat, bus.Rows, bus.SeatsPerRow, model.ErrInvalidSeat)
	}

	release, err := l.lockBus(ctx, busID)
	if err != nil {
		return model.Reservation{}, err
	}
	defer release()

	if err := l.inv.MarkBooked(busID, row, seat); err != nil {
		if errors.Is(err, model.ErrAlreadyBooked) {
			return model.Reservation{}, fmt.Errorf("bus %s seat %s: %w", busID, model.SeatLabel(row, seat), model.ErrSeatTaken)
		}
		return model.Reservation{}, err
	}

	// Microseconds are the finest precision every store keeps.
	created := l.now().UTC().Truncate(time.Microsecond)
	r := model.Reservation{
		ID:        l.ids.next(busID, row, seat, created),
		Name:      name,
		BusID:     busID,
		Route:     bus.Route,
		Row:       row,
		Seat:      seat,
		CreatedAt: created,
	}
	err = l.commitChange(ctx, func(next map[string]model.Reservation) {
		for {
			if _, dup := next[r.ID]; !dup {
				break
			}
			r.ID = l.ids.next(busID, row, seat, created)
		}
		next[r.ID] = r
	})
	if err != nil {
		if rbErr := l.inv.MarkAvailable(busID, row, seat); rbErr != nil {
			l.log.Error("rollback of seat booking failed", "bus_id", busID, "row", row, "seat", seat, "err", rbErr)
		}
		l.log.Warn("reservation rolled back", "bus_id", busID, "row", row, "seat", seat, "err", err)
		return model.Reservation{}, err
	}
	return r, nil
}

// Cancel removes reservation id and frees its seat.  Unknown ids yield
// model.ErrNotFound.  If the seat turns out to be Available already, the
// anomaly is logged and the cancellation still succeeds.
func (l *Ledger) Cancel(ctx context.Context, id string) (model.Reservation, error) {
	id = strings.TrimSpace(id)
	r, err := l.Get(id)
	if err != nil {
		return model.Reservation{}, err
	}

	release, err := l.lockBus(ctx, r.BusID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		release = func() {}
	case err != nil:
		return model.Reservation{}, err
	}
	defer release()

	// The record may have been cancelled or cleared while waiting.
	if r, err = l.Get(id); err != nil {
		return model.Reservation{}, err
	}
	if err := l.commitChange(ctx, func(next map[string]model.Reservation) { delete(next, id) }); err != nil {
		return model.Reservation{}, err
	}
	if err := l.inv.MarkAvailable(r.BusID, r.Row, r.Seat); err != nil {
		l.log.Warn("cancelled reservation did not hold a booked seat", "reservation_id", id,
			"bus_id", r.BusID, "row", r.Row, "seat", r.Seat, "err", err)
	}
	return r, nil
}

// ClearAll removes every reservation and resets every seat grid.  It
// returns the number of reservations removed.
func (l *Ledger) ClearAll(ctx context.Context) (int, error) {
	release, err := l.lockAll(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var count int
	err = l.commitChange(ctx, func(next map[string]model.Reservation) {
		count = len(next)
		clear(next)
	})
	if err != nil {
		return 0, err
	}
	l.inv.Reset()
	return count, nil
}

// Get returns one live reservation.
func (l *Ledger) Get(id string) (model.Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.reservations[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("reservation %q: %w", id, model.ErrNotFound)
	}
	return r, nil
}

// Len returns the number of live reservations.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.reservations)
}

// All yields live reservations ordered by creation time.  Each range
// over the sequence works on a fresh snapshot taken when iteration
// starts.
func (l *Ledger) All() iter.Seq[model.Reservation] {
	return func(yield func(model.Reservation) bool) {
		l.mu.RLock()
		snapshot := sortedByCreation(l.reservations)
		l.mu.RUnlock()
		for _, r := range snapshot {
			if !yield(r) {
				return
			}
		}
	}
}

// commitChange applies mutate to a copy of the committed reservations and
// saves the copy.  The committed map is replaced only after the save
// succeeds.
func (l *Ledger) commitChange(ctx context.Context, mutate func(next map[string]model.Reservation)) error {
	if err := l.commit.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting to commit: %w", err)
	}
	defer l.commit.Release(1)

	l.mu.RLock()
	next := maps.Clone(l.reservations)
	l.mu.RUnlock()
	mutate(next)

	saveCtx, cancel := context.WithTimeout(ctx, l.persistTimeout)
	defer cancel()
	if err := l.store.Save(saveCtx, next); err != nil {
		return fmt.Errorf("saving reservations: %w: %w", model.ErrIO, err)
	}

	l.mu.Lock()
	l.reservations = next
	l.mu.Unlock()
	return nil
}

func (l *Ledger) lockBus(ctx context.Context, busID string) (func(), error) {
	sem, ok := l.busLocks[busID]
	if !ok {
		return nil, fmt.Errorf("bus %q: %w", busID, model.ErrNotFound)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for bus %s: %w", busID, err)
	}
	return func() { sem.Release(1) }, nil
}

// lockAll takes every bus lock in catalog order.  Single-bus commands
// hold at most one lock, so a fixed order cannot deadlock.
func (l *Ledger) lockAll(ctx context.Context) (func(), error) {
	held := make([]*semaphore.Weighted, 0, len(l.busLocks))
	unlock := func() {
		for _, sem := range held {
			sem.Release(1)
		}
	}
	for _, id := range l.inv.IDs() {
		sem := l.busLocks[id]
		if err := sem.Acquire(ctx, 1); err != nil {
			unlock()
			return nil, fmt.Errorf("waiting for bus %s: %w", id, err)
		}
		held = append(held, sem)
	}
	return unlock, nil
}

func sortedByCreation(reservations map[string]model.Reservation) []model.Reservation {
	out := slices.Collect(maps.Values(reservations))
	slices.SortFunc(out, func(a, b model.Reservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

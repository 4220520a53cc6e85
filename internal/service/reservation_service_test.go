package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/bus-seat-reservation/internal/inventory"
	"github.com/iliyamo/bus-seat-reservation/internal/ledger"
	"github.com/iliyamo/bus-seat-reservation/internal/metrics"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
)

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]model.Reservation
	saveErr error
}

func (f *fakeStore) Load(context.Context) (map[string]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.data), nil
}

func (f *fakeStore) Save(_ context.Context, r map[string]model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data = maps.Clone(r)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc   *ReservationService
	store *fakeStore
	pub   *fakePublisher
	m     *metrics.Metrics
}

var now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) fixture {
	t.Helper()
	inv, err := inventory.New([]model.Bus{
		{ID: "B1", Route: "Kolhapur → Mumbai", Rows: 5, SeatsPerRow: 4, PricePerSeat: 300},
		{ID: "B2", Route: "Nagpur → Sangli", Rows: 5, SeatsPerRow: 4, PricePerSeat: 350},
	})
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeStore{}
	l := ledger.New(inv, store, ledger.WithLogger(log), ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, l.Restore(context.Background()))

	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	svc := New(l, inv,
		WithPublisher(pub),
		WithMetrics(m),
		WithLogger(log),
		WithClock(func() time.Time { return now }),
	)
	return fixture{svc: svc, store: store, pub: pub, m: m}
}

func seatsLeft(svc *ReservationService, busID string) int {
	for _, b := range svc.ListBuses() {
		if b.ID == busID {
			return b.SeatsLeft
		}
	}
	return -1
}

func TestReserveConflictCancelRebook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	asha, err := f.svc.Reserve(ctx, "B1", 0, 0, "Asha")
	require.NoError(t, err)
	assert.Equal(t, 19, seatsLeft(f.svc, "B1"))

	_, err = f.svc.Reserve(ctx, "B1", 0, 0, "Raj")
	assert.ErrorIs(t, err, model.ErrSeatTaken)

	_, err = f.svc.Cancel(ctx, "  "+asha.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, 20, seatsLeft(f.svc, "B1"))

	raj, err := f.svc.Reserve(ctx, "B1", 0, 0, "Raj")
	require.NoError(t, err)
	assert.NotEqual(t, asha.ID, raj.ID)

	assert.Equal(t, []string{
		queue.EventReservationCreated,
		queue.EventReservationCancelled,
		queue.EventReservationCreated,
	}, f.pub.types())
	assert.Equal(t, 300, f.pub.events[0].Price)
	assert.Equal(t, "1-1", f.pub.events[0].Seat)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.m.Reservations))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Cancellations))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.SeatConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.SeatsBooked.WithLabelValues("B1")))
}

func TestReserveRejectsBadInput(t *testing.T) {
	tests := []struct {
		description string
		busID       string
		row, seat   int
		name        string
		want        error
	}{
		{"blank name", "B1", 0, 0, "   ", model.ErrInvalidName},
		{"negative row", "B1", -1, 0, "Asha", model.ErrInvalidSeat},
		{"negative seat", "B1", 0, -2, "Asha", model.ErrInvalidSeat},
		{"past last row", "B1", 5, 0, "Asha", model.ErrInvalidSeat},
		{"unknown bus", "B404", 0, 0, "Asha", model.ErrNotFound},
	}
	f := newFixture(t)
	for _, test := range tests {
		_, err := f.svc.Reserve(context.Background(), test.busID, test.row, test.seat, test.name)
		assert.ErrorIs(t, err, test.want, test.description)
	}
	assert.Empty(t, f.pub.types())
	assert.Empty(t, f.svc.ListReservations(""))
	assert.Equal(t, 20, seatsLeft(f.svc, "B1"))
}

func TestPublishFailureKeepsReservation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	r, err := f.svc.Reserve(context.Background(), "B2", 1, 2, "Meera")
	require.NoError(t, err)
	got, err := f.svc.Reservation(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meera", got.Name)
}

func TestPersistFailureIsCounted(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = errors.New("disk full")

	_, err := f.svc.Reserve(context.Background(), "B1", 0, 0, "Asha")
	assert.ErrorIs(t, err, model.ErrIO)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.PersistFailures))
	assert.Equal(t, 20, seatsLeft(f.svc, "B1"))
	assert.Empty(t, f.pub.types())
}

func TestCancelAndLookupUnknown(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"", "   ", "B1_0_0_missing"} {
		_, err := f.svc.Cancel(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrNotFound, id)
		_, err = f.svc.Reservation(id)
		assert.ErrorIs(t, err, model.ErrNotFound, id)
	}
}

func TestListReservationsFiltersByBus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Reserve(ctx, "B1", 0, 0, "Asha")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "B2", 0, 0, "Raj")
	require.NoError(t, err)

	assert.Len(t, f.svc.ListReservations(""), 2)
	only := f.svc.ListReservations("B2")
	require.Len(t, only, 1)
	assert.Equal(t, "Raj", only[0].Name)
	assert.NotNil(t, f.svc.ListReservations("B9"))
}

func TestDashboardAndBus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for seat := 0; seat < 4; seat++ {
		_, err := f.svc.Reserve(ctx, "B1", 2, seat, "Asha")
		require.NoError(t, err)
	}

	dash := f.svc.Dashboard()
	require.Len(t, dash, 2)
	assert.Equal(t, Occupancy{BusID: "B1", Route: "Kolhapur → Mumbai", Booked: 4, Total: 20, Fraction: 0.2}, dash[0])
	assert.Equal(t, 0, dash[1].Booked)

	b, err := f.svc.Bus(" B1 ")
	require.NoError(t, err)
	assert.Equal(t, model.SeatBooked, b.Seats[2][3])
	assert.Equal(t, model.SeatAvailable, b.Seats[0][0])

	_, err = f.svc.Bus("B9")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Reserve(ctx, "B1", 0, 0, "Asha")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "B2", 4, 3, "Raj")
	require.NoError(t, err)

	n, err := f.svc.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, f.svc.ListReservations(""))
	for _, b := range f.svc.ListBuses() {
		assert.Equal(t, b.TotalSeats(), b.SeatsLeft)
	}
	types := f.pub.types()
	assert.Equal(t, queue.EventReservationsCleared, types[len(types)-1])
	assert.Equal(t, 0.0, testutil.ToFloat64(f.m.SeatsBooked.WithLabelValues("B2")))
}

func TestClearAllCountsRacingReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var (
		g      errgroup.Group
		booked atomic.Int64
	)
	for row := 0; row < 5; row++ {
		for seat := 0; seat < 4; seat++ {
			g.Go(func() error {
				if _, err := f.svc.Reserve(ctx, "B1", row, seat, "Asha"); err == nil {
					booked.Add(1)
				}
				return nil
			})
		}
	}
	var cleared int
	g.Go(func() error {
		n, err := f.svc.ClearAll(ctx)
		cleared = n
		return err
	})
	require.NoError(t, g.Wait())

	remaining := len(f.svc.ListReservations(""))
	assert.Equal(t, int(booked.Load()), cleared+remaining)

	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	var announced int
	for _, ev := range f.pub.events {
		if ev.Type == queue.EventReservationsCleared {
			announced = ev.Count
		}
	}
	assert.Equal(t, cleared, announced)
}

// silentBroker accepts connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestReserveNotHeldUpByStalledBroker(t *testing.T) {
	inv, err := inventory.New([]model.Bus{
		{ID: "B1", Route: "Kolhapur → Mumbai", Rows: 5, SeatsPerRow: 4, PricePerSeat: 300},
	})
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(inv, &fakeStore{}, ledger.WithLogger(log))
	require.NoError(t, l.Restore(context.Background()))

	pub := queue.NewPublisher(silentBroker(t), log)
	defer pub.Close()
	svc := New(l, inv, WithPublisher(pub), WithLogger(log))

	start := time.Now()
	r, err := svc.Reserve(context.Background(), "B1", 0, 0, "Asha")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Less(t, time.Since(start), publishTimeout+time.Second)
}

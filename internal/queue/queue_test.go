package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

var (
	at     = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	booked = model.Reservation{
		ID: "B1_0_0_1", Name: "Asha", BusID: "B1", Route: "Kolhapur → Mumbai",
		Row: 0, Seat: 0, CreatedAt: at,
	}
)

func TestEventConstructors(t *testing.T) {
	created := ReservationCreated(booked, 300, at)
	assert.Equal(t, ReservationEvent{
		Type: EventReservationCreated, ReservationID: "B1_0_0_1", BusID: "B1",
		Route: "Kolhapur → Mumbai", Passenger: "Asha", Seat: "1-1", Price: 300,
		OccurredAt: "2026-10-15T09:00:00Z",
	}, created)

	cancelled := ReservationCancelled(booked, at)
	assert.Equal(t, EventReservationCancelled, cancelled.Type)
	assert.Zero(t, cancelled.Price)

	cleared := ReservationsCleared(3, at)
	assert.Equal(t, 3, cleared.Count)
	assert.Empty(t, cleared.ReservationID)
}

func TestFormatAuditLine(t *testing.T) {
	tests := []struct {
		description string
		event       ReservationEvent
		want        string
	}{
		{
			"created",
			ReservationCreated(booked, 300, at),
			"[2026-10-15T09:00:00Z] Reservation created | reservation_id=B1_0_0_1 | bus=B1 | route=\"Kolhapur → Mumbai\" | seat=1-1 | passenger=\"Asha\" | price=300\n",
		},
		{
			"cancelled",
			ReservationCancelled(booked, at),
			"[2026-10-15T09:00:00Z] Reservation cancelled | reservation_id=B1_0_0_1 | bus=B1 | route=\"Kolhapur → Mumbai\" | seat=1-1 | passenger=\"Asha\"\n",
		},
		{
			"cleared",
			ReservationsCleared(2, at),
			"[2026-10-15T09:00:00Z] Reservations cleared | count=2\n",
		},
	}
	for _, test := range tests {
		got, err := FormatAuditLine(test.event)
		require.NoError(t, err, test.description)
		assert.Equal(t, test.want, got, test.description)
	}

	_, err := FormatAuditLine(ReservationEvent{Type: "seat.teleported"})
	assert.Error(t, err)
}

func TestAuditConsumerHandleAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	a := NewAuditConsumer("amqp://unused", dir, nil)

	for _, ev := range []ReservationEvent{ReservationCreated(booked, 300, at), ReservationCancelled(booked, at)} {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, a.Handle(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, AuditLogName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Reservation created")
	assert.Contains(t, lines[1], "Reservation cancelled")
}

func TestAuditConsumerRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	a := NewAuditConsumer("amqp://unused", dir, nil)

	assert.Error(t, a.Handle([]byte("{not json")))
	assert.Error(t, a.Handle([]byte(`{"type":"unknown"}`)))
	_, err := os.Stat(filepath.Join(dir, AuditLogName))
	assert.True(t, os.IsNotExist(err))
}

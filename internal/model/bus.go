package model

import (
	"errors"
	"fmt"
	"strings"
)

// SeatState is the availability of a single seat cell.
type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatBooked    SeatState = "BOOKED"
)

// Bus is one entry of the bus catalog.  The catalog is read-only input:
// the seat grid itself lives in the inventory store, keyed by ID.
//
// Fields:
//  ID           – unique bus identifier (e.g. "B1").
//  Route        – human readable route label.
//  Rows         – number of seat rows.
//  SeatsPerRow  – number of seats in every row.
//  PricePerSeat – fare for one seat, in whole currency units.
type Bus struct {
	ID           string `json:"bus_id"`
	Route        string `json:"route"`
	Rows         int    `json:"rows"`
	SeatsPerRow  int    `json:"seats_per_row"`
	PricePerSeat int    `json:"price_per_seat"`
}

// TotalSeats returns rows × seats per row.
func (b Bus) TotalSeats() int { return b.Rows * b.SeatsPerRow }

// Contains reports whether (row, seat) addresses a cell of the grid.
// Coordinates are zero-based.
func (b Bus) Contains(row, seat int) bool {
	return row >= 0 && row < b.Rows && seat >= 0 && seat < b.SeatsPerRow
}

// Validate checks that a catalog entry can back a seat grid.
func (b Bus) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("bus id is required")
	}
	if b.Rows <= 0 || b.SeatsPerRow <= 0 {
		return fmt.Errorf("bus %s: grid must be at least 1x1, got %dx%d", b.ID, b.Rows, b.SeatsPerRow)
	}
	if b.PricePerSeat < 0 {
		return fmt.Errorf("bus %s: negative price %d", b.ID, b.PricePerSeat)
	}
	return nil
}

// BusSnapshot is a point-in-time copy of a bus together with its seat
// grid.  Mutating a snapshot never affects the inventory.
type BusSnapshot struct {
	Bus
	Seats     [][]SeatState
	Available int
}

// Booked returns the number of booked cells in the snapshot.
func (s BusSnapshot) Booked() int { return s.TotalSeats() - s.Available }

// SeatLabel renders zero-based coordinates as the 1-based "row-seat"
// label shown to passengers, e.g. (0, 0) -> "1-1".
func SeatLabel(row, seat int) string {
	return fmt.Sprintf("%d-%d", row+1, seat+1)
}

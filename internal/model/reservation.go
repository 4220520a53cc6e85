package model

import "time"

// Reservation is the durable proof that one passenger holds one seat
// cell.  Reservations are immutable: they are created by a successful
// reserve and destroyed by cancel or clear, never updated.
//
// Fields:
//  ID        – unique reservation identifier.
//  Name      – passenger name, trimmed and non-empty.
//  BusID     – bus the seat belongs to.
//  Route     – route label copied from the catalog at booking time.
//  Row       – zero-based row index.
//  Seat      – zero-based seat index within the row.
//  CreatedAt – creation timestamp (UTC).
type Reservation struct {
	ID        string
	Name      string
	BusID     string
	Route     string
	Row       int
	Seat      int
	CreatedAt time.Time
}

// SeatLabel returns the 1-based "row-seat" label of the reserved seat.
func (r Reservation) SeatLabel() string { return SeatLabel(r.Row, r.Seat) }

// Package model holds the bus and reservation types shared by every layer
// together with the sentinel errors used to classify failures.  Callers
// test for a kind with errors.Is; lower layers wrap the sentinels with
// context using fmt.Errorf("...: %w", err).
package model

import "errors"

// ErrNotFound is returned when a bus id or reservation id is unknown.
var ErrNotFound = errors.New("not found")

// ErrInvalidSeat is returned for coordinates outside the bus grid.
var ErrInvalidSeat = errors.New("invalid seat")

// ErrInvalidName is returned when the passenger name is empty after
// trimming.
var ErrInvalidName = errors.New("invalid passenger name")

// ErrSeatTaken is returned by Reserve when the seat is already held by
// another reservation.  It is an expected outcome of concurrent requests;
// callers should offer another seat.
var ErrSeatTaken = errors.New("seat already taken")

// ErrAlreadyBooked and ErrAlreadyAvailable are inventory consistency
// violations: the requested transition does not match the cell state.
var (
	ErrAlreadyBooked    = errors.New("seat already booked")
	ErrAlreadyAvailable = errors.New("seat already available")
)

// ErrIO is returned when the reservation store could not be read or
// written.  A mutating command that fails with ErrIO has been rolled back.
var ErrIO = errors.New("persistence failure")

// ErrMalformed is returned by a store whose persisted contents cannot be
// decoded.  It accompanies an empty mapping so startup can proceed.
var ErrMalformed = errors.New("malformed reservation store")

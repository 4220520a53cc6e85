// Package repository implements durable storage for the reservation
// ledger.  Every store persists a full snapshot (reservation id → record)
// and replaces it atomically: readers observe either the previous
// snapshot or the new one, never a partial write.  A store whose
// contents cannot be decoded reports model.ErrMalformed together with an
// empty mapping so that startup can continue.
package repository

import (
	"fmt"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// malformed wraps a decoding failure so callers can test it with
// errors.Is(err, model.ErrMalformed).
func malformed(err error) error {
	return fmt.Errorf("%w: %v", model.ErrMalformed, err)
}

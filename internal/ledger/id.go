package ledger

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// idGenerator builds reservation ids of the form
//
//	<bus>_<row>_<seat>_<unix nanos>-<sequence>-<random>
//
// The sequence is monotonic within the process and the random part comes
// from a v4 UUID, so ids stay unique even when the clock does not move
// between two bookings of the same seat.
type idGenerator struct {
	seq atomic.Uint64
}

func (g *idGenerator) next(busID string, row, seat int, at time.Time) string {
	n := g.seq.Add(1)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%d_%d-%d-%s", busID, row, seat, at.UnixNano(), n, random)
}

package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// legacyTimeLayout is the second-granularity local timestamp written by
// earlier versions of the reservation file.
const legacyTimeLayout = "2006-01-02 15:04:05"

// ReservationRecord mirrors one persisted reservation.  The reservation id
// is the key of the enclosing mapping and is not repeated in the value.
// Business logic should use model.Reservation instead.
type ReservationRecord struct {
	Name  string `json:"name"`
	BusID string `json:"bus_id"`
	Route string `json:"route"`
	Row   int    `json:"row"`
	Seat  int    `json:"seat"`
	Time  string `json:"time"`
}

func toRecord(r model.Reservation) ReservationRecord {
	return ReservationRecord{
		Name:  r.Name,
		BusID: r.BusID,
		Route: r.Route,
		Row:   r.Row,
		Seat:  r.Seat,
		Time:  r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromRecord(id string, rec ReservationRecord) (model.Reservation, error) {
	created, err := parseRecordTime(rec.Time)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %s: %w", id, err)
	}
	return model.Reservation{
		ID:        id,
		Name:      rec.Name,
		BusID:     rec.BusID,
		Route:     rec.Route,
		Row:       rec.Row,
		Seat:      rec.Seat,
		CreatedAt: created,
	}, nil
}

func parseRecordTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable time %q", s)
	}
	return t.UTC(), nil
}

// encodeSnapshot renders a reservation mapping as indented JSON keyed by
// reservation id.  encoding/json sorts map keys, so equal snapshots
// produce identical bytes.
func encodeSnapshot(reservations map[string]model.Reservation) ([]byte, error) {
	records := make(map[string]ReservationRecord, len(reservations))
	for id, r := range reservations {
		records[id] = toRecord(r)
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decodeSnapshot parses the output of encodeSnapshot.  Blank input is an
// empty ledger.  Any structural problem is reported as model.ErrMalformed.
func decodeSnapshot(data []byte) (map[string]model.Reservation, error) {
	out := make(map[string]model.Reservation)
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	var records map[string]ReservationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, malformed(err)
	}
	for id, rec := range records {
		r, err := fromRecord(id, rec)
		if err != nil {
			return nil, malformed(err)
		}
		out[id] = r
	}
	return out, nil
}

package handler

import (
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

type seatView struct {
	Label string          `json:"label"`
	Row   int             `json:"row"`
	Seat  int             `json:"seat"`
	State model.SeatState `json:"state"`
}

type busDetail struct {
	model.Bus
	SeatsLeft int          `json:"seats_left"`
	Layout    [][]seatView `json:"layout"`
}

func newBusDetail(b model.BusSnapshot) busDetail {
	layout := make([][]seatView, len(b.Seats))
	for r, row := range b.Seats {
		layout[r] = make([]seatView, len(row))
		for s, st := range row {
			layout[r][s] = seatView{Label: model.SeatLabel(r, s), Row: r, Seat: s, State: st}
		}
	}
	return busDetail{Bus: b.Bus, SeatsLeft: b.Available, Layout: layout}
}

// reservationView is the confirmation shown to a passenger.  QRPayload is
// the string a client encodes into the ticket QR code.
type reservationView struct {
	ID        string    `json:"reservation_id"`
	Passenger string    `json:"passenger"`
	BusID     string    `json:"bus_id"`
	Route     string    `json:"route"`
	Row       int       `json:"row"`
	Seat      int       `json:"seat"`
	SeatLabel string    `json:"seat_label"`
	CreatedAt time.Time `json:"created_at"`
	QRPayload string    `json:"qr_payload,omitempty"`
}

func newReservationView(r model.Reservation, withQR bool) reservationView {
	v := reservationView{
		ID:        r.ID,
		Passenger: r.Name,
		BusID:     r.BusID,
		Route:     r.Route,
		Row:       r.Row,
		Seat:      r.Seat,
		SeatLabel: r.SeatLabel(),
		CreatedAt: r.CreatedAt,
	}
	if withQR {
		v.QRPayload = r.ID
	}
	return v
}

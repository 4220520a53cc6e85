package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// MySQLStore persists the snapshot in the reservations table.  A save
// replaces the table contents inside one transaction; the commit is the
// atomic point.  The table's unique (bus_id, seat_row, seat_col) key
// rejects a snapshot that would double-book a seat.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a MySQLStore bound to the given database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// Load returns every persisted reservation.
func (s *MySQLStore) Load(ctx context.Context) (map[string]model.Reservation, error) {
	const q = `SELECT id, name, bus_id, route, seat_row, seat_col, created_at FROM reservations`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	defer rows.Close()
	out := make(map[string]model.Reservation)
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.Name, &r.BusID, &r.Route, &r.Row, &r.Seat, &r.CreatedAt); err != nil {
			return map[string]model.Reservation{}, malformed(err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading reservations: %w", err)
	}
	return out, nil
}

// Save replaces the table contents with the given snapshot.  Rows are
// inserted in a single multi-row statement.  Passing an empty snapshot
// leaves the table empty.
func (s *MySQLStore) Save(ctx context.Context, reservations map[string]model.Reservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations`); err != nil {
		return fmt.Errorf("clearing reservations: %w", err)
	}
	if len(reservations) > 0 {
		query, args := bulkInsert(reservations)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting reservations: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reservations: %w", err)
	}
	committed = true
	return nil
}

func bulkInsert(reservations map[string]model.Reservation) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`INSERT INTO reservations (id, name, bus_id, route, seat_row, seat_col, created_at) VALUES `)
	args := make([]interface{}, 0, len(reservations)*7)
	for i, r := range sortedByCreation(reservations) {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.ID, r.Name, r.BusID, r.Route, r.Row, r.Seat, r.CreatedAt.UTC())
	}
	return b.String(), args
}

// sortedByCreation orders a snapshot by creation time, then id, so
// statements are deterministic.
func sortedByCreation(reservations map[string]model.Reservation) []model.Reservation {
	out := make([]model.Reservation, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Reservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

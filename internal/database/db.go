// Package database opens the MySQL connection pool and prepares the
// reservations table used by the MySQL ledger store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, user, pass, host, port, name string) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = name
	// DATETIME columns scan into time.Time, always in UTC.
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql at %s: %w", cfg.Addr, err)
	}
	return db, nil
}

// reservationsSchema stores one row per live reservation.  The unique key
// on the seat coordinates backs the one-reservation-per-seat rule at the
// storage level too.
const reservationsSchema = `CREATE TABLE IF NOT EXISTS reservations (
	id         VARCHAR(128) NOT NULL,
	name       VARCHAR(255) NOT NULL,
	bus_id     VARCHAR(64)  NOT NULL,
	route      VARCHAR(255) NOT NULL DEFAULT '',
	seat_row   INT          NOT NULL,
	seat_col   INT          NOT NULL,
	created_at DATETIME(6)  NOT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_reservations_seat (bus_id, seat_row, seat_col)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the reservations table when it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, reservationsSchema); err != nil {
		return fmt.Errorf("create reservations table: %w", err)
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLogName is the file, inside the consumer's directory, that
// receives one line per event.
const AuditLogName = "reservations.log"

const maxBackoff = 30 * time.Second

// AuditConsumer drains EventsQueue and appends each event to
// <dir>/reservations.log.  Malformed messages are rejected without
// requeue so they cannot loop.
type AuditConsumer struct {
	url string
	dir string
	log *slog.Logger

	mu sync.Mutex // serializes file appends
}

// NewAuditConsumer returns a consumer writing into dir.
func NewAuditConsumer(url, dir string, log *slog.Logger) *AuditConsumer {
	if log == nil {
		log = slog.Default()
	}
	return &AuditConsumer{url: url, dir: dir, log: log}
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// whenever the broker or the delivery channel goes away.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(a.url)
		if err != nil {
			a.log.Warn("audit-consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn("audit-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.log.Warn("audit-consumer: set QoS failed", "err", err)
	}
	if err := declareEventsQueue(ch); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := a.Handle(d.Body); err != nil {
			a.log.Warn("audit-consumer: handle message failed", "err", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends its audit line.
func (a *AuditConsumer) Handle(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line, err := FormatAuditLine(ev)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", a.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(a.dir, AuditLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single newline-terminated line.
func FormatAuditLine(ev ReservationEvent) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", ev.OccurredAt)
	switch ev.Type {
	case EventReservationCreated:
		fmt.Fprintf(&b, "Reservation created | reservation_id=%s | bus=%s | route=%q | seat=%s | passenger=%q | price=%d",
			ev.ReservationID, ev.BusID, ev.Route, ev.Seat, ev.Passenger, ev.Price)
	case EventReservationCancelled:
		fmt.Fprintf(&b, "Reservation cancelled | reservation_id=%s | bus=%s | route=%q | seat=%s | passenger=%q",
			ev.ReservationID, ev.BusID, ev.Route, ev.Seat, ev.Passenger)
	case EventReservationsCleared:
		fmt.Fprintf(&b, "Reservations cleared | count=%d", ev.Count)
	default:
		return "", fmt.Errorf("unknown event type %q", ev.Type)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

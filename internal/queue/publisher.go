package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/semaphore"
)

// dialTimeout caps the TCP connect and AMQP handshake when the caller's
// context carries no earlier deadline.
const dialTimeout = 5 * time.Second

// Publisher sends ReservationEvents to EventsQueue.  The connection is
// opened lazily and dropped after any failure so the next Publish
// redials.  Messages are persistent and the queue is durable.  Publish
// never waits on the broker past the deadline of its context.
type Publisher struct {
	url string
	log *slog.Logger

	sem  *semaphore.Weighted // guards conn and ch
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a publisher for the broker at url.  No connection
// is made until the first Publish.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log, sem: semaphore.NewWeighted(1)}
}

// Publish delivers ev.  Errors are logged and returned so the caller can
// choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	defer p.sem.Release(1)

	ch, err := p.channel(ctx)
	if err != nil {
		p.log.Warn("rabbitmq: connect failed", "err", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		MessageId:    ev.ReservationID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", EventsQueue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq: publish failed", "type", ev.Type, "err", err)
		p.reset()
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Close releases the broker connection, if any.
func (p *Publisher) Close() error {
	_ = p.sem.Acquire(context.Background(), 1)
	defer p.sem.Release(1)
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns the cached channel or dials a new one.  The dial is
// bounded by ctx's deadline.  Callers hold sem.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareEventsQueue(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func declareEventsQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(
		EventsQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

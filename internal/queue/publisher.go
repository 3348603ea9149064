package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends audit events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev AuditEvent) error
}

// NopPublisher drops every event; used when auditing is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuditEvent) error { return nil }

var (
	// ErrAuditDropped is returned when the outgoing buffer is full.
	ErrAuditDropped = errors.New("audit buffer full, event dropped")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("audit publisher closed")
)

// AMQPPublisher publishes persistent JSON messages to AuditQueueName.
// Publish only enqueues; a single goroutine owns the broker connection and
// sends in the background, so a slow or absent broker never delays the
// caller.  After a failed connect, events are dropped until retryDelay has
// passed.
type AMQPPublisher struct {
	url            string
	logger         *slog.Logger
	dialTimeout    time.Duration
	publishTimeout time.Duration
	retryDelay     time.Duration

	mu     sync.Mutex // guards closed and sends on events
	closed bool
	events chan AuditEvent
	done   chan struct{}

	// owned by run
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

// NewAMQPPublisher starts the sending goroutine.  Call Close to flush and
// stop it.
func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	return newAMQPPublisher(url, logger, 2*time.Second, 5*time.Second, 256)
}

func newAMQPPublisher(url string, logger *slog.Logger, dialTimeout, retryDelay time.Duration, buffer int) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &AMQPPublisher{
		url:            url,
		logger:         logger,
		dialTimeout:    dialTimeout,
		publishTimeout: 2 * time.Second,
		retryDelay:     retryDelay,
		events:         make(chan AuditEvent, buffer),
		done:           make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish implements Publisher.  It never waits on the broker: the event
// is queued, or dropped with ErrAuditDropped when the buffer is full.
func (p *AMQPPublisher) Publish(_ context.Context, ev AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrAuditDropped
	}
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	for ev := range p.events {
		if err := p.send(ev); err != nil {
			p.logger.Warn("audit publish failed", "type", ev.Type, "resource_id", ev.ResourceID, "error", err)
		}
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("close broker connection", "error", err)
		}
	}
}

func (p *AMQPPublisher) send(ev AuditEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if time.Now().Before(p.retryAt) {
		return errors.New("broker unavailable, waiting to reconnect")
	}
	ch, err := p.channel()
	if err != nil {
		p.retryAt = time.Now().Add(p.retryDelay)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, "", AuditQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		_ = ch.Close()
		p.ch = nil
		return err
	}
	return nil
}

// channel (re)opens the connection and channel.  The dial deadline also
// bounds the AMQP handshake.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.DialConfig(p.url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(p.dialTimeout),
		})
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// idempotent; durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(AuditQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// Close stops accepting events, waits for the queued ones to be sent or
// dropped and releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

// Package amqpsink publishes boardauth audit events to a durable RabbitMQ
// queue, one persistent JSON message per event.
package amqpsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MrEthical07/boardauth"
)

// DefaultQueue is used when Dial is given an empty queue name.
const DefaultQueue = "auth.audit"

const publishTimeout = 5 * time.Second

// Publisher is the subset of *amqp.Channel the sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sink implements boardauth.AuditSink. Emit runs on the audit dispatcher
// goroutine, so a slow broker delays audit delivery, never a request.
type Sink struct {
	pub    Publisher
	queue  string
	logger *slog.Logger
	failed atomic.Uint64

	conn *amqp.Connection
	ch   *amqp.Channel
}

// New wraps an existing publisher. The queue must already exist.
func New(pub Publisher, queue string, logger *slog.Logger) *Sink {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{pub: pub, queue: queue, logger: logger.With("component", "audit_amqp")}
}

// Dial connects to url, opens a channel and declares queue as durable.
func Dial(url, queue string, logger *slog.Logger) (*Sink, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqpsink: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqpsink: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqpsink: declare %s: %w", queue, err)
	}

	s := New(ch, queue, logger)
	s.conn, s.ch = conn, ch
	return s, nil
}

// Emit publishes event to the default exchange with the queue name as the
// routing key. Failures are logged and counted.
func (s *Sink) Emit(ctx context.Context, event boardauth.AuditEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.fail("marshal", event, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err = s.pub.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Timestamp,
		Type:         event.EventType,
		MessageId:    event.RequestID,
		Body:         body,
	})
	if err != nil {
		s.fail("publish", event, err)
	}
}

func (s *Sink) fail(stage string, event boardauth.AuditEvent, err error) {
	s.failed.Add(1)
	s.logger.Warn("audit publish failed", "stage", stage, "event_type", event.EventType, "error", err)
}

// Failed returns the number of events that could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// Close releases the channel and connection opened by Dial. Sinks built
// with New own nothing and return nil.
func (s *Sink) Close() error {
	var err error
	if s.ch != nil {
		err = s.ch.Close()
	}
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-pos/utils"
)

// Routing keys on the events exchange.
const (
	KeyOrderCreated       = "order.created"
	KeyOrderStatusChanged = "order.status_changed"
	KeyKOTCreated         = "kot.created"
	KeyKOTStatusChanged   = "kot.status_changed"
)

const publishTimeout = 10 * time.Second

// Event is the envelope of every message on the events exchange.
type Event struct {
	Type       string      `json:"type"`
	TenantID   uint        `json:"tenant_id"`
	OutletID   uint        `json:"outlet_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// SyncJob asks a worker to pull orders for one platform integration.
type SyncJob struct {
	IntegrationID uint      `json:"integration_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// EventPublisher emits domain events. Failures are the caller's to log;
// a lost event never rolls back the change that caused it.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// JobQueue accepts background jobs.
type JobQueue interface {
	EnqueueSync(ctx context.Context, job SyncJob) error
}

type Publisher struct {
	conn *Connection
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return p.publish(ctx, EventsExchange, event.Type, event)
}

func (p *Publisher) EnqueueSync(ctx context.Context, job SyncJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	// Default exchange routes by queue name.
	return p.publish(ctx, "", SyncJobQueue, job)
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"exchange":    exchange,
		"routing_key": key,
		"size":        len(body),
	}).Debug("message published")
	return nil
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

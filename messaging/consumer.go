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

// MessageHandler processes one delivery body.
type MessageHandler func(ctx context.Context, body []byte) error

const handleTimeout = 2 * time.Minute

type Consumer struct {
	conn     *Connection
	queue    string
	tag      string
	prefetch int
}

func NewConsumer(conn *Connection, queue, tag string, prefetch int) *Consumer {
	return &Consumer{conn: conn, queue: queue, tag: tag, prefetch: prefetch}
}

// Run consumes until ctx is cancelled. A failed message is dropped, not requeued:
// the next poll picks the work up again.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		utils.ErrorLogger.Warnf("consumer %s interrupted: %v", c.tag, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	ch, err := c.conn.NewChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	utils.InfoLogger.WithFields(logrus.Fields{"queue": c.queue, "consumer": c.tag}).Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler MessageHandler) {
	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	start := time.Now()
	fields := logrus.Fields{"queue": c.queue, "delivery_tag": d.DeliveryTag}
	if err := handler(hctx, d.Body); err != nil {
		utils.ErrorLogger.WithFields(fields).Errorf("message failed after %v: %v", time.Since(start), err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			utils.ErrorLogger.WithFields(fields).Errorf("nack: %v", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		utils.ErrorLogger.WithFields(fields).Errorf("ack: %v", err)
	}
}

// SyncJobHandler adapts a typed sync-job function to a MessageHandler.
func SyncJobHandler(run func(ctx context.Context, job SyncJob) error) MessageHandler {
	return func(ctx context.Context, body []byte) error {
		var job SyncJob
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode sync job: %w", err)
		}
		if job.IntegrationID == 0 {
			return fmt.Errorf("sync job without integration id")
		}
		return run(ctx, job)
	}
}

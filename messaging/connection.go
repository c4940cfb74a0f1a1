package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yeremiapane/restaurant-pos/utils"
)

const (
	EventsExchange = "pos.events"
	SyncJobQueue   = "platform.sync"
	maxDialRetries = 5
	maxRetryWait   = 30 * time.Second
)

// ErrNotConnected is returned while the broker link is down. A reconnect is
// already running in the background when callers see it.
var ErrNotConnected = errors.New("rabbitmq is not connected")

// Connection wraps a RabbitMQ connection and the channel used for publishing.
type Connection struct {
	url       string
	retryWait time.Duration

	mu           sync.Mutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	reconnecting bool
	done         chan struct{}
}

// Dial connects to the broker, retrying with a linear backoff, and declares the topology.
func Dial(ctx context.Context, url string) (*Connection, error) {
	c := newConnection(url)
	var err error
	for i := 0; i < maxDialRetries; i++ {
		var conn *amqp.Connection
		var ch *amqp.Channel
		if conn, ch, err = open(c.url); err == nil {
			c.conn, c.channel = conn, ch
			return c, nil
		}
		if i < maxDialRetries-1 {
			wait := time.Duration(i+1) * c.retryWait
			utils.ErrorLogger.Warnf("rabbitmq connect failed, retrying in %v: %v", wait, err)
			if !c.sleep(ctx, wait) {
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", maxDialRetries, err)
}

func newConnection(url string) *Connection {
	return &Connection{url: url, retryWait: 2 * time.Second, done: make(chan struct{})}
}

func open(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", EventsExchange, err)
	}
	if _, err := ch.QueueDeclare(SyncJobQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", SyncJobQueue, err)
	}
	return nil
}

// Channel returns the publishing channel. When the link dropped it fails fast
// with ErrNotConnected and leaves the reconnect to a background loop.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthyLocked() {
		return c.channel, nil
	}
	select {
	case <-c.done:
		return nil, amqp.ErrClosed
	default:
	}
	if !c.reconnecting {
		c.reconnecting = true
		c.closeLocked()
		go c.reconnect()
	}
	return nil, ErrNotConnected
}

func (c *Connection) healthyLocked() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

func (c *Connection) reconnect() {
	wait := c.retryWait
	for attempt := 1; ; attempt++ {
		conn, ch, err := open(c.url)
		if err == nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			select {
			case <-c.done:
				ch.Close()
				conn.Close()
			default:
				c.conn, c.channel = conn, ch
				utils.InfoLogger.Infof("rabbitmq reconnected after %d attempts", attempt)
			}
			c.reconnecting = false
			return
		}
		utils.ErrorLogger.Warnf("rabbitmq reconnect attempt %d failed, retrying in %v: %v", attempt, wait, err)
		if !c.sleep(context.Background(), wait) {
			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
			return
		}
		if wait *= 2; wait > maxRetryWait {
			wait = maxRetryWait
		}
	}
}

// sleep waits for d and reports false when ctx ends or the connection is closed first.
func (c *Connection) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

// NewChannel opens a dedicated channel, used by consumers.
func (c *Connection) NewChannel() (*amqp.Channel, error) {
	if _, err := c.Channel(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn.Channel()
}

// Close stops any reconnect loop and closes the link.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && err != amqp.ErrClosed {
			return err
		}
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one assessment event
type EventHandler func(ctx context.Context, ev *events.Event) error

// Consumer hands events from the queue to a pool of workers
type Consumer struct {
	conn       *Connection
	handler    EventHandler
	workers    int
	prefetch   int
	timeout    time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int           // concurrent workers
	Prefetch int           // unacked messages per channel
	Timeout  time.Duration // per-event handler deadline
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  3,
		Prefetch: 1,
		Timeout:  30 * time.Second,
	}
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	def := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		timeout:  cfg.Timeout,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.conn.Queue(),
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting event consumer", "queue", c.conn.Queue(), "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	slog.Debug("worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage decodes and handles a single delivery. Malformed messages
// are dropped; failed events are requeued once and then dropped.
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	start := time.Now()

	var ev events.Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		slog.Error("failed to unmarshal event", "worker_id", workerID, "error", err)
		_ = msg.Reject(false)
		return
	}
	if err := ev.Validate(); err != nil {
		slog.Error("discarding invalid event", "worker_id", workerID, "error", err)
		_ = msg.Reject(false)
		return
	}

	eventCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.handler(eventCtx, &ev)
	duration := time.Since(start)

	if err != nil {
		requeue := !msg.Redelivered && !errors.Is(err, context.Canceled)
		slog.Error("event handling failed",
			"worker_id", workerID,
			"event_id", ev.ID,
			"session_id", ev.SessionID,
			"requeue", requeue,
			"error", err,
			"duration", duration,
		)
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			slog.Error("failed to nack message", "event_id", ev.ID, "error", nackErr)
		}
		return
	}

	slog.Info("event handled",
		"worker_id", workerID,
		"event_id", ev.ID,
		"type", ev.Type,
		"duration", duration,
	)

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message", "event_id", ev.ID, "error", err)
	}
}

// Stop cancels the workers and waits for them to finish
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}

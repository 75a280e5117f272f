package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/gapcheck/internal/events"
)

// Producer publishes assessment events to the events queue
type Producer struct {
	conn *Connection
}

var _ events.Publisher = (*Producer)(nil)

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// Publish sends ev to the events queue
func (p *Producer) Publish(ctx context.Context, ev *events.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	if err := p.conn.PublishJSON(ctx, p.conn.Queue(), ev.ID.String(), ev); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Info("published event",
		"event_id", ev.ID,
		"type", ev.Type,
		"session_id", ev.SessionID,
		"score", ev.Score,
	)

	return nil
}

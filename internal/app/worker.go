package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/gapcheck/internal/archive"
	"github.com/felixgeelhaar/gapcheck/internal/config"
	"github.com/felixgeelhaar/gapcheck/internal/events"
	"github.com/felixgeelhaar/gapcheck/internal/queue"
)

// RunWorker consumes assessment events and archives their reports until ctx
// is cancelled. Without an enabled archive, events are only logged.
func RunWorker(ctx context.Context, cfg *config.LocalConfig) error {
	if cfg.Events.AMQPURL == "" {
		return &config.ConfigurationError{Field: "events.amqp_url", Reason: "required by the worker"}
	}

	handler := logEvent
	if cfg.Archive.Enabled {
		archiveCfg, err := ArchiveConfig(cfg.Archive)
		if err != nil {
			return err
		}
		store, err := archive.New(ctx, archiveCfg)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		handler = store.Handle
	}

	conn, err := queue.NewConnection(cfg.Events.AMQPURL, cfg.Events.Queue)
	if err != nil {
		return fmt.Errorf("connect events broker: %w", err)
	}
	defer conn.Close()

	consumerCfg := queue.DefaultConsumerConfig()
	consumerCfg.Workers = cfg.Events.Workers
	consumer := queue.NewConsumer(conn, handler, consumerCfg)
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	slog.Info("worker running", "queue", conn.Queue(), "archive", cfg.Archive.Enabled)
	<-ctx.Done()
	consumer.Stop()
	return nil
}

func logEvent(_ context.Context, ev *events.Event) error {
	slog.Info("assessment completed",
		"session_id", ev.SessionID,
		"catalog", ev.Catalog,
		"score", ev.Score,
		"band", ev.Band,
		"gaps", ev.GapCount,
	)
	return nil
}

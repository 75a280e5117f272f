package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/app"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume assessment events and archive reports",
	Long: `Consume assessment.completed events from the broker. When the archive is
enabled every report is written to the configured bucket; otherwise events
are logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = app.RunWorker(ctx, cfg)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

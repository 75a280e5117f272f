package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/app"
	"github.com/felixgeelhaar/gapcheck/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer the questionnaire in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := configDir(cmd)
		if err != nil {
			return err
		}

		// the terminal belongs to the UI; logs go to a file
		logPath := filepath.Join(dir, "logs", "gapcheck.log")
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: logLevel(cfg.Daemon.LogLevel)})))

		application, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer application.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		id, err := tui.Run(cmd.Context(), application.Service, sessionID)
		if err != nil {
			return err
		}
		if id != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s saved. Resume with: gapcheck run --session %s\n", id, id)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("session", "", "Resume an existing session")
}

func logLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

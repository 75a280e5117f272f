package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/app"
	mcpserver "github.com/felixgeelhaar/gapcheck/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assessment tools over MCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := newMCPServer(application)
		if addr, _ := cmd.Flags().GetString("http"); addr != "" {
			return srv.ServeHTTP(ctx, addr)
		}
		return srv.ServeStdio(ctx)
	},
}

func init() {
	mcpCmd.Flags().String("http", "", "Serve over HTTP on this address instead of stdio")
}

func newMCPServer(application *app.App) *mcpserver.Server {
	return mcpserver.NewServer(mcpserver.Config{
		Sessions: application.Service,
		Version:  Version,
	})
}

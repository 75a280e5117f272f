package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gapcheck",
	Short: "Compliance gap self-assessment",
	Long: `gapcheck walks you through a compliance questionnaire one section at a
time and produces a gap analysis report with a score and recommendations.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", "", "Configuration directory (default ~/.gapcheck)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gapcheck %s\n", Version)
	},
}

// configDir returns the --config-dir flag or ~/.gapcheck
func configDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("config-dir"); dir != "" {
		return dir, nil
	}
	return config.Dir()
}

// loadConfig loads configuration from the directory chosen by configDir
func loadConfig(cmd *cobra.Command) (*config.LocalConfig, error) {
	dir, err := configDir(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

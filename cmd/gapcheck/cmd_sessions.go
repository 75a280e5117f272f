package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/app"
	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/render"
	"github.com/felixgeelhaar/gapcheck/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		sessions, err := application.Service.List(cmd.Context())
		if err != nil {
			return err
		}
		return printSessions(cmd.OutOrStdout(), sessions)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its saved reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.Service.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Generate the gap analysis report for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := render.ParseFormat(formatName)
		if err != nil {
			return err
		}
		preview, _ := cmd.Flags().GetBool("preview")

		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		var report *assessment.Report
		if preview {
			report, err = application.Service.Preview(cmd.Context(), args[0])
		} else {
			report, err = application.Service.Report(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}

		body, err := render.Report(*report, format)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(body)
		return err
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd)

	reportCmd.Flags().StringP("format", "f", "markdown", "Output format: json, markdown or text")
	reportCmd.Flags().Bool("preview", false, "Score without recording the report or completing the session")
}

func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg)
}

func printSessions(out io.Writer, sessions []*session.Session) error {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPHASE\tSECTION\tANSWERED\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.Status, s.Phase, s.CurrentSectionIndex+1, s.Answers.Len(),
			s.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

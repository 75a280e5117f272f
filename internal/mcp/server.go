package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/render"
	"github.com/felixgeelhaar/gapcheck/internal/session"
	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
)

// Server exposes the assessment workflow as MCP tools
type Server struct {
	mcpServer *server.Server
	sessions  session.SessionService
}

// Config contains configuration for the MCP server
type Config struct {
	Sessions session.SessionService
	Version  string
}

// NewServer creates a new MCP server for gapcheck
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{sessions: cfg.Sessions}

	s.mcpServer = server.New(server.Info{
		Name:    "gapcheck",
		Version: cfg.Version,
	}, server.WithInstructions(`
gapcheck runs a compliance gap self-assessment one section at a time.

Available tools:
- assessment_start: Create a session (or restart one) and show the first section
- assessment_section: Show a section with its saved answers
- assessment_submit: Save answers for a section and navigate (next, prev, report)
- assessment_report: Score the session and list its gaps
- assessment_status: Show where a session stands
- assessment_reset: Clear all answers and return to the intro

Answers are one of: fully_implemented, partially_implemented, not_implemented.
Unanswered questions count as not_implemented.
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("assessment_start").
		Description("Start an assessment session and return the first section").
		Handler(s.handleStart)

	s.mcpServer.Tool("assessment_section").
		Description("Show a section of the questionnaire with the saved answers.").
		Handler(s.handleSection)

	s.mcpServer.Tool("assessment_submit").
		Description("Save answers for a section, then move to the next or previous section or to the report.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("assessment_report").
		Description("Generate the gap analysis report for a session.").
		Handler(s.handleReport)

	s.mcpServer.Tool("assessment_status").
		Description("Get the current phase, section and progress of a session.").
		Handler(s.handleStatus)

	s.mcpServer.Tool("assessment_reset").
		Description("Clear all answers of a session and return it to the intro.").
		Handler(s.handleReset)
}

// Input/Output types for tools

type StartInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"description=Existing session to restart; a new session is created when empty"`
}

type SectionInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from assessment_start"`
	Index     int    `json:"index" jsonschema:"description=Zero-based section index"`
}

type SubmitInput struct {
	SessionID string            `json:"session_id" jsonschema:"description=Session ID from assessment_start"`
	Index     int               `json:"index" jsonschema:"description=Zero-based index of the section being answered"`
	Answers   map[string]string `json:"answers,omitempty" jsonschema:"description=Question ID -> fully_implemented | partially_implemented | not_implemented"`
	Action    string            `json:"action" jsonschema:"description=Where to go after saving,enum=next,enum=prev,enum=report"`
}

type ReportInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from assessment_start"`
	Format    string `json:"format,omitempty" jsonschema:"description=Output format (default: markdown),enum=markdown,enum=json,enum=text"`
	Preview   bool   `json:"preview,omitempty" jsonschema:"description=Score without recording a report or completing the session"`
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from assessment_start"`
}

type SectionOutput struct {
	SessionID string               `json:"session_id"`
	Section   *session.SectionView `json:"section"`
	Message   string               `json:"message"`
}

type RejectedAnswer struct {
	QuestionID string `json:"question_id"`
	Token      string `json:"token"`
	Reason     string `json:"reason"`
}

type SubmitOutput struct {
	Outcome  string               `json:"outcome"`
	Merged   []string             `json:"merged"`
	Rejected []RejectedAnswer     `json:"rejected,omitempty"`
	Section  *session.SectionView `json:"section,omitempty"`
	Report   *assessment.Report   `json:"report,omitempty"`
}

type ReportOutput struct {
	Score   int    `json:"score"`
	Band    string `json:"band"`
	Gaps    int    `json:"gaps"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

type StatusOutput struct {
	SessionID      string `json:"session_id"`
	Catalog        string `json:"catalog"`
	Status         string `json:"status"`
	Phase          string `json:"phase"`
	CurrentSection int    `json:"current_section"`
	TotalSections  int    `json:"total_sections"`
	Answered       int    `json:"answered"`
	Questions      int    `json:"questions"`
}

type ResetOutput struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Tool handlers

func (s *Server) handleStart(ctx context.Context, input StartInput) (SectionOutput, error) {
	id := input.SessionID
	if id == "" {
		sess, err := s.sessions.Create(ctx)
		if err != nil {
			return SectionOutput{}, fmt.Errorf("failed to create session: %w", err)
		}
		id = sess.ID
	}

	view, err := s.sessions.Begin(ctx, id)
	if err != nil {
		return SectionOutput{}, toolError(err)
	}

	return SectionOutput{
		SessionID: id,
		Section:   view,
		Message:   fmt.Sprintf("Assessment started with %d sections.", view.Total),
	}, nil
}

func (s *Server) handleSection(ctx context.Context, input SectionInput) (SectionOutput, error) {
	view, err := s.sessions.Section(ctx, input.SessionID, input.Index)
	if err != nil {
		return SectionOutput{}, toolError(err)
	}
	return SectionOutput{
		SessionID: input.SessionID,
		Section:   view,
		Message:   fmt.Sprintf("Section %d of %d (%d%% through the assessment).", view.Index+1, view.Total, view.Progress),
	}, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	res, err := s.sessions.Submit(ctx, input.SessionID, input.Index, input.Answers, assessment.Action(input.Action))
	if err != nil {
		return SubmitOutput{}, toolError(err)
	}

	out := SubmitOutput{
		Outcome: res.Outcome.String(),
		Merged:  res.Merged,
		Section: res.Section,
		Report:  res.Report,
	}
	for _, rej := range res.Rejected {
		out.Rejected = append(out.Rejected, RejectedAnswer{
			QuestionID: rej.QuestionID,
			Token:      rej.Token,
			Reason:     rej.Reason(),
		})
	}
	return out, nil
}

func (s *Server) handleReport(ctx context.Context, input ReportInput) (ReportOutput, error) {
	format := render.FormatMarkdown
	if input.Format != "" {
		f, err := render.ParseFormat(input.Format)
		if err != nil {
			return ReportOutput{}, err
		}
		format = f
	}

	var (
		report *assessment.Report
		err    error
	)
	if input.Preview {
		report, err = s.sessions.Preview(ctx, input.SessionID)
	} else {
		report, err = s.sessions.Report(ctx, input.SessionID)
	}
	if err != nil {
		return ReportOutput{}, toolError(err)
	}

	body, err := render.Report(*report, format)
	if err != nil {
		return ReportOutput{}, err
	}

	return ReportOutput{
		Score:   report.Score,
		Band:    string(report.Band),
		Gaps:    len(report.Gaps),
		Format:  string(format),
		Content: string(body),
	}, nil
}

func (s *Server) handleStatus(ctx context.Context, input SessionInput) (StatusOutput, error) {
	sess, err := s.sessions.Get(ctx, input.SessionID)
	if err != nil {
		return StatusOutput{}, toolError(err)
	}

	cat := s.sessions.Catalog()
	return StatusOutput{
		SessionID:      sess.ID,
		Catalog:        sess.Catalog,
		Status:         string(sess.Status),
		Phase:          string(sess.Phase),
		CurrentSection: sess.CurrentSectionIndex,
		TotalSections:  cat.SectionCount(),
		Answered:       sess.Answers.Len(),
		Questions:      cat.QuestionCount(),
	}, nil
}

func (s *Server) handleReset(ctx context.Context, input SessionInput) (ResetOutput, error) {
	sess, err := s.sessions.Reset(ctx, input.SessionID)
	if err != nil {
		return ResetOutput{}, toolError(err)
	}
	return ResetOutput{
		SessionID: sess.ID,
		Message:   "Answers cleared. Call assessment_start to begin again.",
	}, nil
}

// toolError rewrites service errors into messages an agent can act on
func toolError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return fmt.Errorf("session not found; call assessment_start first: %w", err)
	case errors.Is(err, session.ErrOutOfRange):
		return fmt.Errorf("no such section: %w", err)
	default:
		return err
	}
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}

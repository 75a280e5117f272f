package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/config"
	"github.com/felixgeelhaar/gapcheck/internal/render"
	"github.com/felixgeelhaar/gapcheck/internal/session"
)

// Server represents the gapcheck daemon HTTP server
type Server struct {
	cfg       *config.LocalConfig
	server    *http.Server
	router    *http.ServeMux
	handler   http.Handler
	version   string
	startedAt time.Time

	sessions session.SessionService
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config   *config.LocalConfig
	Sessions session.SessionService
	Version  string
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("daemon: config is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("daemon: session service is required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		cfg:       cfg.Config,
		router:    http.NewServeMux(),
		version:   cfg.Version,
		startedAt: time.Now(),
		sessions:  cfg.Sessions,
	}

	s.setupRoutes()

	s.handler = chain(s.router,
		recoveryMiddleware,
		requestIDMiddleware,
		loggingMiddleware,
		corsMiddleware(cfg.Config.Daemon.CORSOrigins),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	s.router.HandleFunc("GET /v1/catalog", s.handleCatalog)

	// Sessions
	s.router.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.router.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.router.HandleFunc("POST /v1/sessions/{id}/start", s.handleStart)
	s.router.HandleFunc("POST /v1/sessions/{id}/reset", s.handleReset)

	// Sections
	s.router.HandleFunc("GET /v1/sessions/{id}/sections/{index}", s.handleGetSection)
	s.router.HandleFunc("POST /v1/sessions/{id}/sections/{index}", s.handleSubmitSection)

	// Reports
	s.router.HandleFunc("GET /v1/sessions/{id}/report", s.handlePreviewReport)
	s.router.HandleFunc("POST /v1/sessions/{id}/report", s.handleFinalizeReport)
	s.router.HandleFunc("GET /v1/sessions/{id}/reports", s.handleListReports)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	cat := s.sessions.Catalog()
	slog.Info("starting gapcheck daemon",
		"addr", s.server.Addr,
		"catalog", cat.Name(),
		"storage", s.cfg.Storage.Backend,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")
	return s.server.Shutdown(ctx)
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cat := s.sessions.Catalog()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":         "running",
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"catalog":        cat.Name(),
		"sections":       cat.SectionCount(),
		"questions":      cat.QuestionCount(),
		"storage":        s.cfg.Storage.Backend,
		"events":         s.cfg.Events.Enabled,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.sessions.Catalog()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"name":        cat.Name(),
		"description": cat.Description(),
		"sections":    cat.Sections(),
		"questions":   cat.QuestionCount(),
	})
}

// Session handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.serviceError(w, "failed to create session", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.serviceError(w, "failed to list sessions", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to get session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.serviceError(w, "failed to delete session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"deleted": true,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.Begin(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to start session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to reset session", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

// Section handlers

// handleGetSection displays a section. An index that does not name a
// section sends the client back to the session entry point.
func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.redirectToSession(w, r, id)
		return
	}

	view, err := s.sessions.Section(r.Context(), id, index)
	if err != nil {
		if errors.Is(err, session.ErrOutOfRange) {
			s.redirectToSession(w, r, id)
			return
		}
		s.serviceError(w, "failed to load section", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

// submitRequest is the body of a section submission
type submitRequest struct {
	Answers answerTokens `json:"answers"`
	Action  string       `json:"action"`
}

// answerTokens maps question ids to answer tokens. Values that are not JSON
// strings keep their raw text so they are rejected per question.
type answerTokens map[string]string

func (a *answerTokens) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tokens := make(answerTokens, len(raw))
	for id, value := range raw {
		var token string
		if err := json.Unmarshal(value, &token); err != nil {
			token = string(bytes.TrimSpace(value))
		}
		tokens[id] = token
	}
	*a = tokens
	return nil
}

// rejectedEntry is one answer that was not merged
type rejectedEntry struct {
	QuestionID string `json:"question_id"`
	Token      string `json:"token"`
	Reason     string `json:"reason"`
}

// submitResponse is the outcome of a section submission
type submitResponse struct {
	Outcome  assessment.Outcome   `json:"outcome"`
	Merged   []string             `json:"merged"`
	Rejected []rejectedEntry      `json:"rejected"`
	Section  *session.SectionView `json:"section,omitempty"`
	Report   *assessment.Report   `json:"report,omitempty"`
}

func (s *Server) handleSubmitSection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "section index must be an integer", err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := s.sessions.Submit(r.Context(), id, index, req.Answers, assessment.Action(req.Action))
	if err != nil {
		s.serviceError(w, "failed to submit section", err)
		return
	}

	resp := submitResponse{
		Outcome:  res.Outcome,
		Merged:   res.Merged,
		Rejected: make([]rejectedEntry, 0, len(res.Rejected)),
		Section:  res.Section,
		Report:   res.Report,
	}
	if resp.Merged == nil {
		resp.Merged = []string{}
	}
	for _, rej := range res.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedEntry{
			QuestionID: rej.QuestionID,
			Token:      rej.Token,
			Reason:     rej.Reason(),
		})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// Report handlers

func (s *Server) handlePreviewReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.sessions.Preview(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to build report", err)
		return
	}
	s.writeReport(w, r, http.StatusOK, *report)
}

func (s *Server) handleFinalizeReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.sessions.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to build report", err)
		return
	}
	s.writeReport(w, r, http.StatusOK, *report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	records, err := s.sessions.Reports(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to list reports", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"reports": records,
		"count":   len(records),
	})
}

// writeReport renders report in the format named by the format query
// parameter
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, status int, report assessment.Report) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "unsupported report format", err)
		return
	}

	body, err := render.Report(report, format)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to render report", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}

func (s *Server) redirectToSession(w http.ResponseWriter, r *http.Request, id string) {
	http.Redirect(w, r, "/v1/sessions/"+id, http.StatusSeeOther)
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// serviceError maps session service errors to HTTP statuses
func (s *Server) serviceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
	case errors.Is(err, session.ErrOutOfRange):
		s.jsonError(w, http.StatusNotFound, "section not found", err)
	default:
		s.jsonError(w, http.StatusInternalServerError, message, err)
	}
}

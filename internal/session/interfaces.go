package session

import (
	"context"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/catalog"
)

// SessionService defines the session operations used by the daemon
// handlers, the MCP tools and the terminal UI
type SessionService interface {
	Catalog() *catalog.Catalog

	// Create opens a new session on the intro page
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)

	// Begin clears answers and enters the first section
	Begin(ctx context.Context, id string) (*SectionView, error)

	// Section displays section index with saved answers
	Section(ctx context.Context, id string, index int) (*SectionView, error)

	// Submit merges a section's answers and applies action
	Submit(ctx context.Context, id string, index int, answers map[string]string, action assessment.Action) (*SubmitResult, error)

	// Report scores the session, saves a snapshot and emits an event
	Report(ctx context.Context, id string) (*assessment.Report, error)
	// Preview scores the session without side effects
	Preview(ctx context.Context, id string) (*assessment.Report, error)
	Reports(ctx context.Context, id string) ([]*ReportRecord, error)

	// Reset clears answers and returns to the intro page
	Reset(ctx context.Context, id string) (*Session, error)
}

// Ensure Service implements SessionService
var _ SessionService = (*Service)(nil)

// SessionStore defines the persistence interface for sessions.
// The JSON file store, SQLite store and Postgres store implement this.
type SessionStore interface {
	Save(session *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
	List() ([]string, error)
	ListAll() ([]*Session, error)
	Exists(id string) bool
}

// ReportStore persists report snapshots per session
type ReportStore interface {
	SaveReport(record *ReportRecord) error
	GetReport(sessionID, reportID string) (*ReportRecord, error)
	ListReports(sessionID string) ([]*ReportRecord, error)
}

// Backend is a complete storage backend for the service
type Backend interface {
	SessionStore
	ReportStore
	Close() error
}

// Ensure Store (JSON) implements Backend
var _ Backend = (*Store)(nil)

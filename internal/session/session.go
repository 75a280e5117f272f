package session

import (
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/google/uuid"
)

// Session is one user's pass through the questionnaire. The embedded
// SessionState is what the assessment engine reads and mutates.
type Session struct {
	ID      string `json:"id"`
	Catalog string `json:"catalog"`

	assessment.SessionState

	Status Status `json:"status"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Status represents the session state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// NewSession creates a session positioned on the intro page
func NewSession(catalogName string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		Catalog:      catalogName,
		SessionState: *assessment.NewSessionState(),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// State returns the engine state backing the session
func (s *Session) State() *assessment.SessionState {
	if s.Answers == nil {
		s.Answers = assessment.NewAnswerStore()
	}
	return &s.SessionState
}

// Touch bumps UpdatedAt and reopens a completed session
func (s *Session) Touch() {
	s.Status = StatusActive
	s.CompletedAt = nil
	s.UpdatedAt = time.Now()
}

// Complete marks the session as completed
func (s *Session) Complete() {
	now := time.Now()
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// ReportRecord is a saved report snapshot for a session
type ReportRecord struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Report    assessment.Report `json:"report"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewReportRecord wraps r for persistence
func NewReportRecord(sessionID string, r assessment.Report) *ReportRecord {
	return &ReportRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Report:    r,
		CreatedAt: time.Now(),
	}
}

// QuestionView is a question together with its current answer
type QuestionView struct {
	ID     string                 `json:"id"`
	Text   string                 `json:"text"`
	Answer assessment.AnswerState `json:"answer"`
}

// SectionView is everything needed to display one section page
type SectionView struct {
	SessionID   string         `json:"session_id"`
	Index       int            `json:"index"`
	Total       int            `json:"total"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Progress    int            `json:"progress"`
	Questions   []QuestionView `json:"questions"`
	IsFirst     bool           `json:"is_first"`
	IsLast      bool           `json:"is_last"`
}

package events

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/google/uuid"
)

// Event types
const (
	TypeAssessmentCompleted = "assessment.completed"
)

var (
	ErrInvalidEvent = errors.New("invalid event")
)

// Event is a domain event emitted when something happens to a session
type Event struct {
	ID               uuid.UUID          `json:"id"`
	Type             string             `json:"type"`
	SessionID        string             `json:"session_id"`
	Catalog          string             `json:"catalog"`
	Score            int                `json:"score"`
	Band             assessment.Band    `json:"band"`
	ImplementedCount int                `json:"implemented_count"`
	TotalQuestions   int                `json:"total_questions"`
	GapCount         int                `json:"gap_count"`
	Report           *assessment.Report `json:"report,omitempty"`
	OccurredAt       time.Time          `json:"occurred_at"`
}

// NewAssessmentCompleted builds the event published when a report is produced
func NewAssessmentCompleted(sessionID string, r assessment.Report) *Event {
	report := r
	return &Event{
		ID:               uuid.New(),
		Type:             TypeAssessmentCompleted,
		SessionID:        sessionID,
		Catalog:          r.Catalog,
		Score:            r.Score,
		Band:             r.Band,
		ImplementedCount: r.ImplementedCount,
		TotalQuestions:   r.TotalQuestions,
		GapCount:         len(r.Gaps),
		Report:           &report,
		OccurredAt:       time.Now(),
	}
}

// Validate checks the fields every consumer relies on
func (e *Event) Validate() error {
	if e == nil {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return errors.Join(ErrInvalidEvent, errors.New("missing type"))
	}
	if e.SessionID == "" {
		return errors.Join(ErrInvalidEvent, errors.New("missing session id"))
	}
	return nil
}

// Publisher delivers events to interested parties
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// PublisherFunc adapts a function to the Publisher interface
type PublisherFunc func(ctx context.Context, e *Event) error

// Publish calls f(ctx, e)
func (f PublisherFunc) Publish(ctx context.Context, e *Event) error {
	return f(ctx, e)
}

// Nop discards every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, *Event) error { return nil }

var (
	_ Publisher = Nop{}
	_ Publisher = PublisherFunc(nil)
)

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/catalog"
	"github.com/felixgeelhaar/gapcheck/internal/events"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrOutOfRange      = errors.New("section index out of range")
)

// Service runs questionnaire sessions against one catalog
type Service struct {
	store     Backend
	engine    *assessment.Engine
	publisher events.Publisher
	locks     keyedMutex
}

// NewService creates a new session service
func NewService(store Backend, engine *assessment.Engine) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		publisher: events.Nop{},
	}
}

// SetPublisher sets where assessment events are sent
func (s *Service) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

// Catalog returns the catalog sessions are assessed against
func (s *Service) Catalog() *catalog.Catalog {
	return s.engine.Catalog()
}

// SubmitResult is the outcome of a section submission. Exactly one of
// Section and Report is set unless the outcome was rejected.
type SubmitResult struct {
	*assessment.SubmitResult
	Section *SectionView       `json:"section,omitempty"`
	Report  *assessment.Report `json:"report,omitempty"`
}

// Create opens a new session on the intro page
func (s *Service) Create(ctx context.Context) (*Session, error) {
	session := NewSession(s.engine.Catalog().Name())

	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("session created", "session_id", session.ID, "catalog", session.Catalog)
	return session, nil
}

// Get retrieves a session by ID
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.load(id)
}

// Delete removes a session and its saved reports
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// List returns all sessions, newest first
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.store.ListAll()
}

// Begin clears the session's answers and enters the first section
func (s *Service) Begin(ctx context.Context, id string) (*SectionView, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}

	s.engine.Begin(session.State())
	session.Touch()

	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.sectionView(session, 0), nil
}

// Section positions the session on section index and returns its view.
// An index outside the catalog returns ErrOutOfRange and leaves the
// session unchanged.
func (s *Service) Section(ctx context.Context, id string, index int) (*SectionView, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}

	out := s.engine.Enter(session.State(), index)
	if out.Kind == assessment.Rejected {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	session.UpdatedAt = time.Now()

	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.sectionView(session, out.Index), nil
}

// Submit merges the answers posted from section index and applies action.
// Malformed entries are reported in the result without failing the call.
// A finalize action produces and records the report.
func (s *Service) Submit(ctx context.Context, id string, index int, answers map[string]string, action assessment.Action) (*SubmitResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}

	res := &SubmitResult{SubmitResult: s.engine.SubmitSection(session.State(), index, answers, action)}
	if res.Outcome.Kind == assessment.Rejected {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}

	for _, rej := range res.Rejected {
		slog.Warn("answer rejected",
			"session_id", id,
			"question_id", rej.QuestionID,
			"reason", rej.Reason())
	}

	switch res.Outcome.Kind {
	case assessment.GoToReport:
		report, err := s.finalize(ctx, session)
		if err != nil {
			return nil, err
		}
		res.Report = report
	default:
		session.Touch()
		if err := s.store.Save(session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		res.Section = s.sectionView(session, res.Outcome.Index)
	}

	return res, nil
}

// Report scores the session, saves a snapshot and publishes an
// assessment.completed event
func (s *Service) Report(ctx context.Context, id string) (*assessment.Report, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, session)
}

// Preview scores the session without recording a snapshot or completing it
func (s *Service) Preview(ctx context.Context, id string) (*assessment.Report, error) {
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	report := assessment.Generate(s.engine.Catalog(), session.State().Answers)
	return &report, nil
}

// Reports returns the saved report snapshots for a session
func (s *Service) Reports(ctx context.Context, id string) ([]*ReportRecord, error) {
	if !s.store.Exists(id) {
		return nil, ErrSessionNotFound
	}
	return s.store.ListReports(id)
}

// Reset clears the session's answers and returns it to the intro page
func (s *Service) Reset(ctx context.Context, id string) (*Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}

	s.engine.Reset(session.State())
	session.Touch()

	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// finalize must be called with the session lock held
func (s *Service) finalize(ctx context.Context, session *Session) (*assessment.Report, error) {
	report := s.engine.ViewReport(session.State())

	// the snapshot goes first so a failed write leaves the session active
	if err := s.store.SaveReport(NewReportRecord(session.ID, report)); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	session.Complete()
	if err := s.store.Save(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("assessment completed",
		"session_id", session.ID,
		"score", report.Score,
		"band", report.Band,
		"gaps", len(report.Gaps))

	if err := s.publisher.Publish(ctx, events.NewAssessmentCompleted(session.ID, report)); err != nil {
		slog.Warn("failed to publish assessment event", "session_id", session.ID, "error", err)
	}

	return &report, nil
}

func (s *Service) load(id string) (*Session, error) {
	session, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *Service) sectionView(session *Session, index int) *SectionView {
	cat := s.engine.Catalog()
	sec, _ := cat.SectionAt(index)
	total := cat.SectionCount()

	view := &SectionView{
		SessionID:   session.ID,
		Index:       index,
		Total:       total,
		Title:       sec.Title,
		Description: sec.Description,
		Progress:    assessment.Progress(index, total),
		Questions:   make([]QuestionView, 0, len(sec.Questions)),
		IsFirst:     index == 0,
		IsLast:      index == total-1,
	}
	for _, q := range sec.Questions {
		view.Questions = append(view.Questions, QuestionView{
			ID:     q.ID,
			Text:   q.Text,
			Answer: session.Answers.Get(q.ID),
		})
	}
	return view
}

// keyedMutex serializes work per session id
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the lock for key and returns its release function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

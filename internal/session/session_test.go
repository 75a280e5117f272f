package session

import (
	"encoding/json"
	"testing"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
)

func TestNewSession(t *testing.T) {
	s := NewSession("ISO/IEC 42001")

	if s.ID == "" {
		t.Error("NewSession() should generate an ID")
	}
	if s.Catalog != "ISO/IEC 42001" {
		t.Errorf("Catalog = %q; want %q", s.Catalog, "ISO/IEC 42001")
	}
	if s.Status != StatusActive {
		t.Errorf("Status = %q; want %q", s.Status, StatusActive)
	}
	if s.Phase != assessment.PhaseIntro {
		t.Errorf("Phase = %q; want %q", s.Phase, assessment.PhaseIntro)
	}
	if s.Answers == nil || s.Answers.Len() != 0 {
		t.Errorf("Answers = %v; want empty store", s.Answers)
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestNewSession_UniqueIDs(t *testing.T) {
	a := NewSession("c")
	b := NewSession("c")
	if a.ID == b.ID {
		t.Errorf("two sessions share ID %q", a.ID)
	}
}

func TestSession_CompleteAndTouch(t *testing.T) {
	s := NewSession("c")

	s.Complete()
	if s.Status != StatusCompleted {
		t.Errorf("Status = %q; want %q", s.Status, StatusCompleted)
	}
	if s.CompletedAt == nil {
		t.Fatal("CompletedAt should be set")
	}

	s.Touch()
	if s.Status != StatusActive {
		t.Errorf("Status after Touch = %q; want %q", s.Status, StatusActive)
	}
	if s.CompletedAt != nil {
		t.Error("CompletedAt should be cleared by Touch")
	}
}

func TestSession_StateAllocatesAnswers(t *testing.T) {
	s := &Session{}
	st := s.State()
	if st.Answers == nil {
		t.Fatal("State().Answers = nil")
	}
	if s.Answers != st.Answers {
		t.Error("State() should point at the session's own answers")
	}
}

func TestSession_JSON(t *testing.T) {
	s := NewSession("c")
	s.Phase = assessment.PhaseSection
	s.CurrentSectionIndex = 2
	s.Answers.MergeUpdates(map[string]assessment.AnswerState{"Q1": assessment.FullyImplemented})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	json.Unmarshal(data, &fields)
	for _, key := range []string{"id", "catalog", "phase", "current_section", "answers", "status"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSON missing %q: %s", key, data)
		}
	}

	var loaded Session
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if loaded.CurrentSectionIndex != 2 {
		t.Errorf("CurrentSectionIndex = %d; want 2", loaded.CurrentSectionIndex)
	}
	if got := loaded.Answers.Get("Q1"); got != assessment.FullyImplemented {
		t.Errorf("Answers.Get(Q1) = %q; want %q", got, assessment.FullyImplemented)
	}
}

package assessment

import (
	"encoding/json"
	"fmt"
)

// AnswerState is the implementation level recorded for a question. The
// string value is the token used at every boundary (forms, JSON, storage).
type AnswerState string

const (
	NotImplemented       AnswerState = "not_implemented"
	PartiallyImplemented AnswerState = "partially_implemented"
	FullyImplemented     AnswerState = "fully_implemented"
)

// AnswerStates lists the recognized states in display order
var AnswerStates = []AnswerState{NotImplemented, PartiallyImplemented, FullyImplemented}

// ParseAnswerState converts a boundary token into an AnswerState
func ParseAnswerState(token string) (AnswerState, error) {
	switch s := AnswerState(token); s {
	case NotImplemented, PartiallyImplemented, FullyImplemented:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrMalformedAnswer, token)
	}
}

// Valid reports whether s is one of the recognized states
func (s AnswerState) Valid() bool {
	_, err := ParseAnswerState(string(s))
	return err == nil
}

// Label returns a human readable name
func (s AnswerState) Label() string {
	switch s {
	case NotImplemented:
		return "Not Implemented"
	case PartiallyImplemented:
		return "Partially Implemented"
	case FullyImplemented:
		return "Fully Implemented"
	default:
		return string(s)
	}
}

// AnswerReader is the read side of an answer store
type AnswerReader interface {
	Get(questionID string) AnswerState
}

// AnswerStore maps question ids to answer states. It knows nothing about
// sections or catalogs and performs no locking; callers serialize access
// per session. A nil *AnswerStore reads as empty and ignores writes.
type AnswerStore struct {
	answers map[string]AnswerState
}

// NewAnswerStore creates an empty store
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[string]AnswerState)}
}

// AnswerStoreFrom creates a store holding a copy of answers
func AnswerStoreFrom(answers map[string]AnswerState) *AnswerStore {
	s := NewAnswerStore()
	s.MergeUpdates(answers)
	return s
}

// Get returns the stored state, or NotImplemented if the question was never answered
func (s *AnswerStore) Get(questionID string) AnswerState {
	if s == nil {
		return NotImplemented
	}
	if v, ok := s.answers[questionID]; ok {
		return v
	}
	return NotImplemented
}

// MergeUpdates inserts or overwrites the given entries. Keys not present in
// updates are left untouched.
func (s *AnswerStore) MergeUpdates(updates map[string]AnswerState) {
	if s == nil {
		return
	}
	if s.answers == nil {
		s.answers = make(map[string]AnswerState, len(updates))
	}
	for id, state := range updates {
		s.answers[id] = state
	}
}

// Reset clears all entries
func (s *AnswerStore) Reset() {
	if s == nil {
		return
	}
	s.answers = make(map[string]AnswerState)
}

// Len returns the number of recorded answers
func (s *AnswerStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.answers)
}

// Snapshot returns a copy of the recorded answers
func (s *AnswerStore) Snapshot() map[string]AnswerState {
	out := make(map[string]AnswerState, s.Len())
	if s == nil {
		return out
	}
	for id, state := range s.answers {
		out[id] = state
	}
	return out
}

// MarshalJSON encodes the store as a flat {id: token} object
func (s *AnswerStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON replaces the store's contents with a flat {id: token} object
func (s *AnswerStore) UnmarshalJSON(data []byte) error {
	var answers map[string]AnswerState
	if err := json.Unmarshal(data, &answers); err != nil {
		return err
	}
	s.Reset()
	s.MergeUpdates(answers)
	return nil
}

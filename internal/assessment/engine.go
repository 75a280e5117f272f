package assessment

import (
	"errors"
	"sort"

	"github.com/felixgeelhaar/gapcheck/internal/catalog"
)

// SessionState is the per-session state the presentation layer owns and
// passes to the engine on every call.
type SessionState struct {
	Phase               Phase        `json:"phase"`
	CurrentSectionIndex int          `json:"current_section"`
	Answers             *AnswerStore `json:"answers"`
}

// NewSessionState returns a state positioned on the intro page
func NewSessionState() *SessionState {
	return &SessionState{
		Phase:   PhaseIntro,
		Answers: NewAnswerStore(),
	}
}

func (st *SessionState) answers() *AnswerStore {
	if st.Answers == nil {
		st.Answers = NewAnswerStore()
	}
	return st.Answers
}

// SubmitResult reports what a section submission did
type SubmitResult struct {
	Outcome  Outcome        `json:"outcome"`
	Merged   []string       `json:"merged"`
	Rejected []*AnswerError `json:"rejected,omitempty"`
}

// Err joins the per-entry rejections, or returns nil when every entry merged
func (r *SubmitResult) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, e := range r.Rejected {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Engine exposes the questionnaire operations over a fixed catalog. It holds
// no session state of its own.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates an engine for cat
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{catalog: cat}
}

// Catalog returns the engine's catalog
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// SectionCount returns the number of navigable sections
func (e *Engine) SectionCount() int {
	return e.catalog.SectionCount()
}

// Begin clears the answers and positions the state on the first section
func (e *Engine) Begin(st *SessionState) {
	st.answers().Reset()
	st.CurrentSectionIndex = 0
	st.Phase = PhaseSection
}

// Reset clears the answers and returns the state to the intro page
func (e *Engine) Reset(st *SessionState) {
	st.answers().Reset()
	st.CurrentSectionIndex = 0
	st.Phase = PhaseIntro
}

// Enter handles a direct request to display section index. A Rejected
// outcome leaves the state untouched; the caller sends the user back to the
// entry point.
func (e *Engine) Enter(st *SessionState, index int) Outcome {
	out := CheckIndex(index, e.SectionCount())
	if out.Kind == GoToSection {
		st.CurrentSectionIndex = out.Index
		st.Phase = PhaseSection
	}
	return out
}

// SubmitSection merges the answers submitted on section index and then
// applies action. Only catalog question ids with a recognized token are
// merged; every other entry is reported in Rejected without touching the
// store. A submission for an out-of-range index merges nothing and is
// Rejected.
func (e *Engine) SubmitSection(st *SessionState, index int, form map[string]string, action Action) *SubmitResult {
	res := &SubmitResult{Merged: []string{}}

	if CheckIndex(index, e.SectionCount()).Kind == Rejected {
		res.Outcome = Outcome{Kind: Rejected}
		return res
	}

	updates := make(map[string]AnswerState, len(form))
	for _, id := range sortedKeys(form) {
		token := form[id]
		if !e.catalog.Has(id) {
			res.Rejected = append(res.Rejected, &AnswerError{QuestionID: id, Token: token, Err: ErrUnknownQuestion})
			continue
		}
		state, err := ParseAnswerState(token)
		if err != nil {
			res.Rejected = append(res.Rejected, &AnswerError{QuestionID: id, Token: token, Err: ErrMalformedAnswer})
			continue
		}
		updates[id] = state
		res.Merged = append(res.Merged, id)
	}
	st.answers().MergeUpdates(updates)

	res.Outcome = Navigate(index, e.SectionCount(), action)
	switch res.Outcome.Kind {
	case GoToSection:
		st.CurrentSectionIndex = res.Outcome.Index
		st.Phase = PhaseSection
	case GoToReport:
		st.CurrentSectionIndex = index
		st.Phase = PhaseReport
	}
	return res
}

// ViewReport scores the state's answers against the catalog
func (e *Engine) ViewReport(st *SessionState) Report {
	st.Phase = PhaseReport
	return Generate(e.catalog, st.answers())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package assessment

import "fmt"

// Action is a navigation request from a section page
type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "prev"
	ActionFinalize Action = "report"
)

// ParseAction converts a form token into an Action
func ParseAction(token string) (Action, error) {
	switch a := Action(token); a {
	case ActionNext, ActionPrevious, ActionFinalize:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, token)
	}
}

// OutcomeKind classifies a navigation decision
type OutcomeKind string

const (
	GoToSection OutcomeKind = "section"
	GoToReport  OutcomeKind = "report"
	Rejected    OutcomeKind = "rejected"
)

// Outcome is the result of a navigation decision. Index is only meaningful
// for GoToSection.
type Outcome struct {
	Kind  OutcomeKind `json:"kind"`
	Index int         `json:"index"`
}

// String implements fmt.Stringer
func (o Outcome) String() string {
	if o.Kind == GoToSection {
		return fmt.Sprintf("section(%d)", o.Index)
	}
	return string(o.Kind)
}

// CheckIndex validates a direct request to display section index. Indexes
// outside [0, totalSections) are Rejected.
func CheckIndex(index, totalSections int) Outcome {
	if index < 0 || index >= totalSections {
		return Outcome{Kind: Rejected}
	}
	return Outcome{Kind: GoToSection, Index: index}
}

// Navigate decides where an action taken on section currentIndex leads.
// Next on the last section and Previous on the first are no-ops that keep
// the index. It never looks at answers.
func Navigate(currentIndex, totalSections int, action Action) Outcome {
	if out := CheckIndex(currentIndex, totalSections); out.Kind == Rejected {
		return out
	}

	switch action {
	case ActionNext:
		if currentIndex+1 < totalSections {
			return Outcome{Kind: GoToSection, Index: currentIndex + 1}
		}
		return Outcome{Kind: GoToSection, Index: currentIndex}
	case ActionPrevious:
		if currentIndex-1 >= 0 {
			return Outcome{Kind: GoToSection, Index: currentIndex - 1}
		}
		return Outcome{Kind: GoToSection, Index: currentIndex}
	case ActionFinalize:
		return Outcome{Kind: GoToReport}
	default:
		// unrecognized actions redisplay the current section
		return Outcome{Kind: GoToSection, Index: currentIndex}
	}
}

// Phase is the coarse position of a session in the questionnaire
type Phase string

const (
	PhaseIntro   Phase = "intro"
	PhaseSection Phase = "section"
	PhaseReport  Phase = "report"
)

// Progress is the display percentage for section index out of total:
// (index+1)/total*100, truncated and clamped to 0..100.
func Progress(index, total int) int {
	if total <= 0 {
		return 0
	}
	p := (index + 1) * 100 / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

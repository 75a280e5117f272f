package assessment

import (
	"math"

	"github.com/felixgeelhaar/gapcheck/internal/catalog"
)

// Band is the summary classification of a score
type Band string

const (
	BandExcellent Band = "excellent"
	BandStrong    Band = "strong"
	BandModerate  Band = "moderate"
	BandNeedsWork Band = "needs_work"
)

// BandFor selects the band for a score. First match wins.
func BandFor(score int) Band {
	switch {
	case score == 100:
		return BandExcellent
	case score >= 75:
		return BandStrong
	case score >= 50:
		return BandModerate
	default:
		return BandNeedsWork
	}
}

// Narrative returns the fixed summary sentence for the band
func (b Band) Narrative() string {
	switch b {
	case BandExcellent:
		return "Excellent! You are fully aligned with all assessed requirements."
	case BandStrong:
		return "Great start! You have a solid foundation. Focus on the gaps below."
	case BandModerate:
		return "Good progress, but there are several key areas to address."
	default:
		return "You have significant gaps. Use the report below to prioritize actions."
	}
}

// GapItem is a question that is not fully implemented
type GapItem struct {
	QuestionID     string      `json:"question_id"`
	Text           string      `json:"text"`
	Recommendation string      `json:"recommendation"`
	Status         AnswerState `json:"status"`
}

// Report is the derived result of an assessment. It is never stored as the
// source of truth; it is recomputed from answers on demand.
type Report struct {
	Catalog          string    `json:"catalog"`
	Score            int       `json:"score"`
	ImplementedCount int       `json:"implemented_count"`
	TotalQuestions   int       `json:"total_questions"`
	Gaps             []GapItem `json:"gaps"`
	Band             Band      `json:"summary_band"`
	Summary          string    `json:"summary_text"`
}

// Generate walks the catalog in order and scores the answers. Answers for
// ids the catalog does not contain are ignored.
func Generate(cat *catalog.Catalog, answers AnswerReader) Report {
	r := Report{Gaps: []GapItem{}}
	if cat == nil {
		r.Band = BandFor(0)
		r.Summary = r.Band.Narrative()
		return r
	}
	r.Catalog = cat.Name()

	for _, q := range cat.AllQuestions() {
		r.TotalQuestions++

		state := NotImplemented
		if answers != nil {
			state = answers.Get(q.ID)
		}

		if state == FullyImplemented {
			r.ImplementedCount++
			continue
		}
		if !state.Valid() {
			state = NotImplemented
		}
		r.Gaps = append(r.Gaps, GapItem{
			QuestionID:     q.ID,
			Text:           q.Text,
			Recommendation: q.Recommendation,
			Status:         state,
		})
	}

	r.Score = Score(r.ImplementedCount, r.TotalQuestions)
	r.Band = BandFor(r.Score)
	r.Summary = r.Band.Narrative()
	return r
}

// Score returns round(implemented/total*100), or 0 when total is 0. Halves
// round to even.
func Score(implemented, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.RoundToEven(float64(implemented) / float64(total) * 100))
}

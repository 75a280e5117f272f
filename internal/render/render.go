// Package render formats assessment reports for people and machines.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
)

// Format is an output format for a report
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat maps a format name to a Format. The empty string selects JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension used when a report is archived
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// Report renders r in format f
func Report(r assessment.Report, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(r)
	case FormatMarkdown:
		return []byte(Markdown(r)), nil
	case FormatText:
		return []byte(Text(r)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// JSON renders the report as indented JSON
func JSON(r assessment.Report) ([]byte, error) {
	if r.Gaps == nil {
		r.Gaps = []assessment.GapItem{}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders the report as a Markdown document
func Markdown(r assessment.Report) string {
	var sb strings.Builder

	title := "Gap Analysis Report"
	if r.Catalog != "" {
		title += ": " + r.Catalog
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("**Score**: %d%% (%s)\n\n", r.Score, bandLabel(r.Band)))
	sb.WriteString(fmt.Sprintf("%d of %d requirements fully implemented.\n\n", r.ImplementedCount, r.TotalQuestions))
	sb.WriteString(fmt.Sprintf("> %s\n\n", r.Summary))

	if len(r.Gaps) == 0 {
		sb.WriteString("No gaps found.\n")
		return sb.String()
	}

	sb.WriteString("## Gaps\n\n")
	sb.WriteString("| ID | Requirement | Status | Recommendation |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, g := range r.Gaps {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			cell(g.QuestionID), cell(g.Text), g.Status.Label(), cell(g.Recommendation)))
	}
	return sb.String()
}

// Text renders the report for a terminal
func Text(r assessment.Report) string {
	var sb strings.Builder

	if r.Catalog != "" {
		sb.WriteString(fmt.Sprintf("%s\n", r.Catalog))
	}
	sb.WriteString(fmt.Sprintf("Score: %d%% (%s)\n", r.Score, bandLabel(r.Band)))
	sb.WriteString(fmt.Sprintf("Implemented: %d/%d\n", r.ImplementedCount, r.TotalQuestions))
	sb.WriteString(fmt.Sprintf("%s\n", r.Summary))

	if len(r.Gaps) == 0 {
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\nGaps (%d):\n", len(r.Gaps)))
	for i, g := range r.Gaps {
		sb.WriteString(fmt.Sprintf("%2d. [%s] %s\n", i+1, g.QuestionID, g.Text))
		sb.WriteString(fmt.Sprintf("    Status: %s\n", g.Status.Label()))
		if g.Recommendation != "" {
			sb.WriteString(fmt.Sprintf("    Recommendation: %s\n", g.Recommendation))
		}
	}
	return sb.String()
}

func bandLabel(b assessment.Band) string {
	switch b {
	case assessment.BandExcellent:
		return "Excellent"
	case assessment.BandStrong:
		return "Strong"
	case assessment.BandModerate:
		return "Moderate"
	case assessment.BandNeedsWork:
		return "Needs work"
	default:
		return string(b)
	}
}

// cell escapes text for a Markdown table cell
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Package tui is the terminal questionnaire: an intro page, one page per
// catalog section and a report page.
package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/render"
	"github.com/felixgeelhaar/gapcheck/internal/session"
)

type page int

const (
	pageLoading page = iota
	pageIntro
	pageSection
	pageReport
)

// answerCycle is the order left/right step through
var answerCycle = []assessment.AnswerState{
	assessment.NotImplemented,
	assessment.PartiallyImplemented,
	assessment.FullyImplemented,
}

// Messages produced by service commands
type (
	sessionMsg struct{ session *session.Session }
	sectionMsg struct {
		view     *session.SectionView
		rejected int
	}
	reportMsg struct{ report *assessment.Report }
	resetMsg  struct{}
	errMsg    struct{ err error }
)

// Model is the root Bubble Tea model
type Model struct {
	ctx       context.Context
	sessions  session.SessionService
	sessionID string

	page    page
	section *session.SectionView
	answers map[string]assessment.AnswerState
	cursor  int
	report  *assessment.Report
	notice  string
	err     error

	keys keyMap
	help help.Model

	width  int
	height int
}

// New creates a model bound to sessionID, or to a fresh session when
// sessionID is empty
func New(ctx context.Context, sessions session.SessionService, sessionID string) Model {
	m := Model{
		ctx:       ctx,
		sessions:  sessions,
		sessionID: sessionID,
		page:      pageLoading,
		keys:      defaultKeyMap(),
		help:      help.New(),
	}
	m.syncKeys()
	return m
}

// SessionID returns the session the model works on
func (m Model) SessionID() string {
	return m.sessionID
}

func (m Model) Init() tea.Cmd {
	return m.loadSession()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionMsg:
		m.sessionID = msg.session.ID
		m.page = pageIntro
		return m, nil

	case sectionMsg:
		m.showSection(msg.view)
		m.notice = ""
		if msg.rejected > 0 {
			m.notice = fmt.Sprintf("%d answer(s) were not recognized and kept their previous value", msg.rejected)
		}
		return m, nil

	case reportMsg:
		m.report = msg.report
		m.page = pageReport
		m.err = nil
		return m, nil

	case resetMsg:
		m.section = nil
		m.report = nil
		m.notice = ""
		m.page = pageIntro
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	m.syncKeys()
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Start):
		return m, m.begin()
	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, k.Down):
		if m.cursor < len(m.section.Questions)-1 {
			m.cursor++
		}
	case key.Matches(msg, k.Left):
		m.step(-1)
	case key.Matches(msg, k.Right):
		m.step(1)
	case key.Matches(msg, k.Fully):
		m.set(assessment.FullyImplemented)
	case key.Matches(msg, k.Partial):
		m.set(assessment.PartiallyImplemented)
	case key.Matches(msg, k.Not):
		m.set(assessment.NotImplemented)
	case key.Matches(msg, k.Next):
		return m, m.submit(assessment.ActionNext)
	case key.Matches(msg, k.Previous):
		return m, m.submit(assessment.ActionPrevious)
	case key.Matches(msg, k.Report):
		return m, m.submit(assessment.ActionFinalize)
	case key.Matches(msg, k.Back):
		if m.section != nil {
			return m, m.enter(m.section.Index)
		}
	case key.Matches(msg, k.Reset):
		return m, m.reset()
	}
	return m, nil
}

// syncKeys enables the bindings that apply to the current page
func (m *Model) syncKeys() {
	var bounds sectionBounds
	if m.section != nil {
		bounds = sectionBounds{first: m.section.IsFirst, last: m.section.IsLast}
	}
	m.keys.forPage(m.page, bounds)
}

// showSection replaces the editable answers with the saved ones
func (m *Model) showSection(view *session.SectionView) {
	m.section = view
	m.page = pageSection
	m.cursor = 0
	m.err = nil
	m.answers = make(map[string]assessment.AnswerState, len(view.Questions))
	for _, q := range view.Questions {
		m.answers[q.ID] = q.Answer
	}
}

func (m *Model) set(state assessment.AnswerState) {
	if len(m.section.Questions) == 0 {
		return
	}
	m.answers[m.section.Questions[m.cursor].ID] = state
}

func (m *Model) step(delta int) {
	if len(m.section.Questions) == 0 {
		return
	}
	id := m.section.Questions[m.cursor].ID
	pos := 0
	for i, s := range answerCycle {
		if s == m.answers[id] {
			pos = i
		}
	}
	pos = (pos + delta + len(answerCycle)) % len(answerCycle)
	m.answers[id] = answerCycle[pos]
}

// Commands

func (m Model) loadSession() tea.Cmd {
	ctx, svc, id := m.ctx, m.sessions, m.sessionID
	return func() tea.Msg {
		var (
			sess *session.Session
			err  error
		)
		if id == "" {
			sess, err = svc.Create(ctx)
		} else {
			sess, err = svc.Get(ctx, id)
		}
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg{sess}
	}
}

func (m Model) begin() tea.Cmd {
	ctx, svc, id := m.ctx, m.sessions, m.sessionID
	return func() tea.Msg {
		view, err := svc.Begin(ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return sectionMsg{view: view}
	}
}

func (m Model) enter(index int) tea.Cmd {
	ctx, svc, id := m.ctx, m.sessions, m.sessionID
	return func() tea.Msg {
		view, err := svc.Section(ctx, id, index)
		if err != nil {
			return errMsg{err}
		}
		return sectionMsg{view: view}
	}
}

func (m Model) submit(action assessment.Action) tea.Cmd {
	ctx, svc, id := m.ctx, m.sessions, m.sessionID
	index := m.section.Index
	answers := make(map[string]string, len(m.answers))
	for qid, state := range m.answers {
		answers[qid] = string(state)
	}
	return func() tea.Msg {
		res, err := svc.Submit(ctx, id, index, answers, action)
		if err != nil {
			return errMsg{err}
		}
		if res.Report != nil {
			return reportMsg{res.Report}
		}
		return sectionMsg{view: res.Section, rejected: len(res.Rejected)}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, svc, id := m.ctx, m.sessions, m.sessionID
	return func() tea.Msg {
		if _, err := svc.Reset(ctx, id); err != nil {
			return errMsg{err}
		}
		return resetMsg{}
	}
}

// View

func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m Model) render() string {
	var body string
	switch m.page {
	case pageLoading:
		body = hintStyle.Render("Loading…")
	case pageIntro:
		body = m.renderIntro()
	case pageSection:
		body = m.renderSection()
	case pageReport:
		body = m.renderReport()
	}

	if m.err != nil {
		body += "\n\n" + errorStyle.Render("Error: "+m.err.Error())
	}

	m.syncKeys()
	body += "\n\n" + m.help.View(m.keys)
	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(body)
	}
	return body
}

func (m Model) renderIntro() string {
	cat := m.sessions.Catalog()

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(cat.Name()) + "\n\n")
	if cat.Description() != "" {
		sb.WriteString(bodyStyle.Render(cat.Description()) + "\n\n")
	}
	sb.WriteString(subtitleStyle.Render(fmt.Sprintf("%d sections, %d questions", cat.SectionCount(), cat.QuestionCount())))
	return sb.String()
}

func (m Model) renderSection() string {
	view := m.section

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Section %d of %d: %s", view.Index+1, view.Total, view.Title)) + "\n")
	sb.WriteString(progressBar(view.Progress, 30) + "\n\n")
	if view.Description != "" {
		sb.WriteString(subtitleStyle.Render(view.Description) + "\n\n")
	}

	for i, q := range view.Questions {
		marker := "  "
		text := bodyStyle.Render(q.Text)
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
			text = cursorStyle.Render(q.Text)
		}
		state := m.answers[q.ID]
		label := answerStyle(state == assessment.FullyImplemented, state == assessment.PartiallyImplemented).
			Render("[" + state.Label() + "]")
		sb.WriteString(fmt.Sprintf("%s%s %s\n", marker, subtitleStyle.Render(q.ID), text))
		sb.WriteString("    " + label + "\n")
	}

	if m.notice != "" {
		sb.WriteString("\n" + errorStyle.Render(m.notice))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderReport() string {
	r := m.report
	score := answerStyle(r.Score == 100, r.Score >= 50).Render(fmt.Sprintf("%d%%", r.Score))

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Gap Analysis Report") + "  " + score + "\n\n")
	sb.WriteString(cardStyle.Render(strings.TrimRight(render.Text(*r), "\n")))
	return sb.String()
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	return progressFilled.Render(strings.Repeat("█", filled)) +
		progressEmpty.Render(strings.Repeat("░", width-filled)) +
		subtitleStyle.Render(fmt.Sprintf(" %d%%", percent))
}

// Run starts the questionnaire on sessionID, or a fresh session when it is
// empty, and returns the session id used
func Run(ctx context.Context, sessions session.SessionService, sessionID string) (string, error) {
	p := tea.NewProgram(New(ctx, sessions, sessionID))
	final, err := p.Run()
	if err != nil {
		return sessionID, fmt.Errorf("run terminal ui: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.SessionID(), nil
	}
	return sessionID, nil
}

// Package tui is the terminal front end: one slider row per question, an
// assessment panel rendered as markdown, and a status line.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/session"
	"github.com/timvw/persona-survey/internal/survey"
)

const (
	sliderWidth   = 21
	questionLines = 2
	keyHints      = "↑↓=select  ←→=adjust  a=assess  f=finish  pgup/pgdn=scroll  q=quit"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusWarn
	statusError
)

// messages
type assessmentMsg struct {
	narrative model.Narrative
}

type finishMsg struct {
	result *survey.Result
	err    error
}

// TUI runs the interactive survey form for a single session.
type TUI struct {
	Service *survey.Service
	Session *session.Session
	Theme   Theme
	Logger  *logger.Logger
}

type tuiModel struct {
	svc  *survey.Service
	sess *session.Session
	ctx  context.Context
	log  *logger.Logger

	items  []model.Question
	snap   session.Snapshot
	cursor int

	// in-flight work; the session is not touched from Update while finishing
	assessing bool
	finishing bool
	spinner   spinner.Model

	narrativeText string
	narrative     viewport.Model
	renderer      *glamour.TermRenderer

	theme  Theme
	st     styles
	width  int
	height int

	message string
	status  statusKind

	totalInputTokens  int64
	totalOutputTokens int64
}

func (t *TUI) Run(ctx context.Context) error {
	m := newModel(ctx, t.Service, t.Session, t.Theme, t.Logger)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newModel(ctx context.Context, svc *survey.Service, sess *session.Session, theme Theme, logg *logger.Logger) *tuiModel {
	if theme.Name == "" {
		theme = DarkTheme()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = newStyles(theme).title

	m := &tuiModel{
		svc:       svc,
		sess:      sess,
		ctx:       ctx,
		log:       logg,
		items:     svc.Questions().Items(),
		spinner:   sp,
		narrative: viewport.New(80, 10),
		theme:     theme,
		st:        newStyles(theme),
	}
	m.renderer = newRenderer(theme, 76)
	m.refresh()
	return m
}

func newRenderer(theme Theme, wrap int) *glamour.TermRenderer {
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(theme.Glamour),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m *tuiModel) Init() tea.Cmd {
	return nil
}

// refresh copies the session state for rendering.
func (m *tuiModel) refresh() {
	m.sess.Lock()
	m.snap = m.sess.Snapshot()
	m.sess.Unlock()
}

func (m *tuiModel) setStatus(kind statusKind, msg string) {
	m.status = kind
	m.message = msg
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if !m.assessing && !m.finishing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case assessmentMsg:
		m.assessing = false
		n := msg.narrative
		m.sess.Lock()
		m.sess.CompleteAssessment(&n)
		m.sess.Unlock()
		m.refresh()
		m.totalInputTokens += n.Usage.InputTokens
		m.totalOutputTokens += n.Usage.OutputTokens
		m.setNarrative(n.Text)
		if n.Fallback {
			m.setStatus(statusWarn, n.Text)
		} else {
			m.setStatus(statusInfo, "Assessment ready. Press f to finish and submit.")
		}
		return m, nil

	case finishMsg:
		m.finishing = false
		m.refresh()
		if msg.err != nil {
			if errors.Is(msg.err, session.ErrNotReady) {
				m.setStatus(statusWarn, msg.err.Error())
			} else {
				m.log.Error("finish failed", "error", msg.err)
				m.setStatus(statusError, fmt.Sprintf("Could not save your results: %v", msg.err))
			}
			return m, nil
		}
		res := msg.result
		text := res.Message
		if len(res.Warnings) > 0 {
			text += " (" + strings.Join(res.Warnings, "; ") + ")"
		}
		kind := statusInfo
		if !res.EmailSent {
			kind = statusWarn
		}
		m.setStatus(kind, text)
		m.setNarrative("")
		m.cursor = 0
		return m, nil
	}

	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	if m.finishing {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "left", "h":
		m.adjust(false)
	case "right", "l":
		m.adjust(true)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.narrative, cmd = m.narrative.Update(msg)
		return m, cmd
	case "a":
		return m, m.startAssessment()
	case "f":
		return m, m.startFinish()
	}
	return m, nil
}

func (m *tuiModel) selected() (model.Question, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return model.Question{}, false
	}
	return m.items[m.cursor], true
}

func (m *tuiModel) adjust(up bool) {
	q, ok := m.selected()
	if !ok {
		return
	}
	prev := m.snap.State

	step := m.sess.Decrement
	if up {
		step = m.sess.Increment
	}
	m.sess.Lock()
	_, err := step(q.ID)
	m.sess.Unlock()
	m.refresh()

	switch {
	case errors.Is(err, session.ErrBusy):
		m.setStatus(statusWarn, "Please wait for the assessment to finish before changing answers.")
	case err != nil:
		m.setStatus(statusError, err.Error())
	case prev == session.StateAssessmentReady && m.snap.State == session.StateRatingsEntered:
		m.setStatus(statusInfo, "Answers changed. Press a to refresh your assessment.")
	}
}

func (m *tuiModel) startAssessment() tea.Cmd {
	m.sess.Lock()
	ratings, err := m.sess.BeginAssessment()
	m.sess.Unlock()
	m.refresh()
	if err != nil {
		m.setStatus(statusWarn, err.Error())
		return nil
	}

	m.assessing = true
	m.setStatus(statusInfo, "Assessing your personality...")
	svc, ctx := m.svc, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return assessmentMsg{narrative: svc.Narrate(ctx, ratings)}
	})
}

func (m *tuiModel) startFinish() tea.Cmd {
	m.sess.Lock()
	err := m.sess.CanFinish()
	m.sess.Unlock()
	if err != nil {
		m.setStatus(statusWarn, err.Error())
		return nil
	}

	m.finishing = true
	m.setStatus(statusInfo, "Saving and sending your results...")
	svc, ctx, sess := m.svc, m.ctx, m.sess
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := svc.Finish(ctx, sess)
		return finishMsg{result: res, err: err}
	})
}

// narrativeHeight is the number of lines given to the assessment panel.
func (m *tuiModel) narrativeHeight() int {
	if m.narrativeText == "" {
		return 1
	}
	h := m.height / 2
	if h < 3 {
		h = 3
	}
	return h
}

func (m *tuiModel) resize() {
	m.narrative.Width = m.width
	m.narrative.Height = m.narrativeHeight()
	m.renderer = newRenderer(m.theme, m.width-4)
	m.renderNarrative()
}

func (m *tuiModel) setNarrative(text string) {
	m.narrativeText = text
	m.narrative.Height = m.narrativeHeight()
	m.renderNarrative()
}

func (m *tuiModel) renderNarrative() {
	if m.narrativeText == "" {
		m.narrative.SetContent("")
		return
	}
	out := m.narrativeText
	if m.renderer != nil {
		if r, err := m.renderer.Render(m.narrativeText); err == nil {
			out = r
		}
	}
	m.narrative.SetContent(out)
	m.narrative.GotoTop()
}

func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.st.title.Render("Personality Survey"))
	b.WriteString("  ")
	b.WriteString(m.st.dim.Render(keyHints))
	if m.totalInputTokens > 0 || m.totalOutputTokens > 0 {
		b.WriteString("  ")
		b.WriteString(m.st.dim.Render(fmt.Sprintf("tokens: %s in / %s out",
			formatTokens(m.totalInputTokens), formatTokens(m.totalOutputTokens))))
	}
	b.WriteString("\n")
	b.WriteString(m.st.rule.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString("  No questions loaded.\n")
	}

	// Scroll window that keeps the cursor visible.
	listHeight := m.height - m.narrativeHeight() - 6
	maxVisible := listHeight / questionLines
	if maxVisible < 1 {
		maxVisible = 1
	}
	if maxVisible > len(m.items) {
		maxVisible = len(m.items)
	}
	start := 0
	if m.cursor >= maxVisible {
		start = m.cursor - maxVisible + 1
	}
	end := start + maxVisible

	for i := start; i < end && i < len(m.items); i++ {
		b.WriteString(m.renderQuestion(i))
	}
	if start > 0 || end < len(m.items) {
		b.WriteString(m.st.dim.Render(fmt.Sprintf("  showing %d-%d of %d", start+1, end, len(m.items))))
		b.WriteString("\n")
	}

	b.WriteString(m.st.rule.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	if m.narrativeText == "" {
		b.WriteString(m.st.dim.Render("  Press a to get your personality assessment."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.narrative.View())
		b.WriteString("\n")
	}

	b.WriteString(m.viewStatus())
	return b.String()
}

func (m *tuiModel) renderQuestion(i int) string {
	q := m.items[i]
	v := m.snap.Ratings[q.ID]

	cursor := "  "
	statement := m.st.text.Render(truncate(q.Statement, m.width-4))
	if i == m.cursor {
		cursor = m.st.title.Render("> ")
		statement = m.st.selected.Render(truncate(q.Statement, m.width-4))
	}

	var b strings.Builder
	b.WriteString(cursor)
	b.WriteString(statement)
	b.WriteString("\n    ")
	b.WriteString(m.st.dim.Render(q.MinAnchor))
	b.WriteString(" ")
	b.WriteString(m.renderSlider(q, v))
	b.WriteString(" ")
	b.WriteString(m.st.dim.Render(q.MaxAnchor))
	b.WriteString("  ")
	b.WriteString(m.st.value.Render(fmt.Sprintf("%d", v)))
	b.WriteString("\n")
	return b.String()
}

func (m *tuiModel) renderSlider(q model.Question, v int) string {
	pos := sliderPosition(q, v, sliderWidth)
	return m.st.filled.Render(strings.Repeat("━", pos)) +
		m.st.knob.Render("●") +
		m.st.track.Render(strings.Repeat("─", sliderWidth-1-pos))
}

func (m *tuiModel) viewStatus() string {
	var line string
	switch m.status {
	case statusWarn:
		line = m.st.warn.Render(m.message)
	case statusError:
		line = m.st.err.Render(m.message)
	default:
		line = m.st.info.Render(m.message)
	}
	if m.assessing || m.finishing {
		line = m.spinner.View() + " " + line
	}
	return "  " + line + "\n"
}

// sliderPosition maps v within q's bounds onto [0, width-1].
func sliderPosition(q model.Question, v, width int) int {
	if width < 1 || q.Max <= q.Min {
		return 0
	}
	v = q.Clamp(v)
	return (v - q.Min) * (width - 1) / (q.Max - q.Min)
}

// truncate cuts a string to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// formatTokens formats a token count for display (e.g., "12.3k").
func formatTokens(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 10000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	case n < 1000000:
		return fmt.Sprintf("%.0fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

package terminal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tova-go/internal/engine"
	"tova-go/internal/metrics"
	"tova-go/internal/models"
	"tova-go/internal/sink"
)

// Controller is the part of engine.Session the screens drive.
type Controller interface {
	Begin() error
	Stop() error
	Pause() error
	Resume() error
	Press()
	Status() engine.Status
}

type (
	stimulusMsg struct {
		trial   models.Trial
		visible bool
	}
	phaseMsg       struct{ phase engine.Phase }
	pauseMsg       struct{ paused bool }
	completedMsg   struct{ outcome engine.Outcome }
	submissionMsg  struct{ state sink.State }
	beginResultMsg struct{ err error }
	actionErrMsg   struct{ err error }
	tickMsg        time.Time
)

type view int

const (
	viewBriefing view = iota
	viewRunning
	viewCompleted
)

const (
	fieldWidth  = 23
	fieldHeight = 11
	refreshRate = 250 * time.Millisecond
)

// Model is the bubbletea model of one test session.
type Model struct {
	ctrl        Controller
	participant models.Participant
	cfg         engine.Config
	styles      Styles
	now         func() time.Time

	view       view
	starting   bool
	stimulus   *models.Trial
	paused     bool
	status     engine.Status
	outcome    *engine.Outcome
	submission sink.State
	err        error
}

func NewModel(ctrl Controller, participant models.Participant, cfg engine.Config) Model {
	return Model{
		ctrl:        ctrl,
		participant: participant,
		cfg:         cfg,
		styles:      DefaultStyles(),
		now:         time.Now,
		status:      ctrl.Status(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case beginResultMsg:
		m.starting = false
		m.err = msg.err

	case phaseMsg:
		switch msg.phase {
		case engine.PhaseRunning:
			m.view = viewRunning
			m.err = nil
			m.status = m.ctrl.Status()
			return m, tick()
		case engine.PhaseCompleted:
			m.view = viewCompleted
			m.stimulus = nil
		}

	case pauseMsg:
		m.paused = msg.paused
		if msg.paused {
			m.stimulus = nil
		}

	case stimulusMsg:
		if msg.visible {
			trial := msg.trial
			m.stimulus = &trial
		} else {
			m.stimulus = nil
		}

	case completedMsg:
		o := msg.outcome
		m.outcome = &o
		m.view = viewCompleted
		m.stimulus = nil
		m.paused = false

	case submissionMsg:
		m.submission = msg.state

	case actionErrMsg:
		m.err = msg.err

	case tickMsg:
		if m.view == viewRunning {
			m.status = m.ctrl.Status()
			return m, tick()
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case viewBriefing:
		switch msg.String() {
		case "enter":
			if m.starting {
				return m, nil
			}
			m.starting = true
			m.err = nil
			return m, beginCmd(m.ctrl)
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case viewRunning:
		if msg.Type == tea.KeySpace {
			m.ctrl.Press()
			return m, nil
		}
		switch msg.String() {
		case "p":
			if m.paused {
				return m, actionCmd(m.ctrl.Resume)
			}
			return m, actionCmd(m.ctrl.Pause)
		case "q", "esc", "ctrl+c":
			return m, actionCmd(m.ctrl.Stop)
		}

	case viewCompleted:
		switch msg.String() {
		case "q", "enter", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

// Session calls block until the engine's loop has run them, so they run
// as commands, off the UI goroutine.
func beginCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return beginResultMsg{err: ctrl.Begin()}
	}
}

func actionCmd(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil && !errors.Is(err, engine.ErrInvalidTransition) {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) View() string {
	switch m.view {
	case viewRunning:
		return m.runningView()
	case viewCompleted:
		return m.completedView()
	default:
		return m.briefingView()
	}
}

func (m Model) briefingView() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Attention Test"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Hello %s.\n\n", m.participant.DisplayName())
	b.WriteString("A square will flash briefly, either near the TOP or near the BOTTOM of the box.\n")
	b.WriteString("Press SPACE as quickly as you can when it appears at the TOP.\n")
	b.WriteString("Do nothing when it appears at the BOTTOM.\n\n")
	fmt.Fprintf(&b, "The test takes about %s. Keep your eyes on the cross in the middle.\n", formatClock(m.cfg.SessionDuration()))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("Cannot start: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.starting {
		b.WriteString(m.styles.Help.Render("Starting..."))
	} else {
		b.WriteString(m.styles.Help.Render("enter start • q quit"))
	}
	return b.String()
}

func (m Model) runningView() string {
	var b strings.Builder
	remaining := m.status.Remaining(m.cfg.SessionDuration(), m.now())
	fmt.Fprintf(&b, "Trial %d/%d   %s left\n", m.status.TrialsPresented, m.status.TrialCount, formatClock(remaining))
	b.WriteString(m.styles.Field.Render(m.field()))
	b.WriteString("\n")
	if m.paused {
		b.WriteString(m.styles.Warning.Render("Paused. Press p to resume."))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(m.styles.Error.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render("space respond • p pause • q stop"))
	return b.String()
}

// field draws the stimulus area: a fixation cross in the middle and, while
// a stimulus is visible, a square above it for a target or below it for a
// non-target.
func (m Model) field() string {
	rows := make([]string, fieldHeight)
	blank := strings.Repeat(" ", fieldWidth)
	for i := range rows {
		rows[i] = blank
	}
	center := fieldHeight / 2
	rows[center] = centered("+", fieldWidth)

	if m.stimulus != nil {
		top := 1
		if !m.stimulus.IsTarget {
			top = fieldHeight - 4
		}
		block := centered(strings.Repeat("█", 7), fieldWidth)
		for i := 0; i < 3; i++ {
			rows[top+i] = m.styles.Stimulus.Render(block)
		}
	}
	return strings.Join(rows, "\n")
}

func (m Model) completedView() string {
	var b strings.Builder
	if m.outcome == nil {
		b.WriteString(m.styles.Title.Render("Test complete"))
		return b.String()
	}

	o := m.outcome
	switch {
	case o.Reason == engine.ReasonError:
		b.WriteString(m.styles.Title.Render("Test ended by an error"))
		if o.Err != nil {
			b.WriteString("\n")
			b.WriteString(m.styles.Error.Render(o.Err.Error()))
		}
	case o.Reason.Early():
		b.WriteString(m.styles.Title.Render("Test ended early"))
	default:
		b.WriteString(m.styles.Title.Render("Test complete"))
	}
	b.WriteString("\n")

	r := o.Result
	fmt.Fprintf(&b, "Attentiveness    %s\n", m.banded(r.Attentiveness))
	fmt.Fprintf(&b, "Impulse control  %s\n", m.banded(r.ImpulseControl))
	fmt.Fprintf(&b, "Consistency      %s\n\n", m.banded(r.Consistency))
	fmt.Fprintf(&b, "%-27s%d\n", "Omission errors", r.OmissionErrors)
	fmt.Fprintf(&b, "%-27s%d\n", "Commission errors", r.CommissionErrors)
	fmt.Fprintf(&b, "%-27s%.0f ms\n", "Mean reaction time", r.MeanReactionTimeMs)
	fmt.Fprintf(&b, "%-27s%.0f ms\n", "Reaction time variability", r.ReactionTimeVariabilityMs)
	fmt.Fprintf(&b, "%-27s%s\n\n", "Duration", formatClock(time.Duration(r.RealizedDurationMs)*time.Millisecond))

	switch m.submission {
	case sink.StateSubmitted:
		b.WriteString(m.styles.Good.Render("Your results have been saved."))
	case sink.StateDuplicate:
		b.WriteString(m.styles.Warning.Render("A result for this payment code was already on record."))
	case sink.StatePending:
		b.WriteString(m.styles.Warning.Render("Your results could not be sent yet. They are kept and will be retried."))
	case sink.StateUnsaved:
		b.WriteString(m.styles.Warning.Render("Your results could not be sent or saved. Keep this window open while they are retried."))
	default:
		b.WriteString("Saving your results...")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("q exit"))
	return b.String()
}

func (m Model) banded(score int) string {
	text := fmt.Sprintf("%3d%%", score)
	switch metrics.Band(score) {
	case metrics.BandGood:
		return m.styles.Good.Render(text)
	case metrics.BandFair:
		return m.styles.Fair.Render(text)
	default:
		return m.styles.Poor.Render(text)
	}
}

func centered(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

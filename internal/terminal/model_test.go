package terminal

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tova-go/internal/engine"
	"tova-go/internal/models"
	"tova-go/internal/sink"
)

type fakeController struct {
	beginErr error
	begins   int
	stops    int
	pauses   int
	resumes  int
	presses  int
	status   engine.Status
}

func (f *fakeController) Begin() error { f.begins++; return f.beginErr }
func (f *fakeController) Stop() error { f.stops++; return nil }
func (f *fakeController) Pause() error { f.pauses++; return nil }
func (f *fakeController) Resume() error { f.resumes++; return nil }
func (f *fakeController) Press() { f.presses++ }
func (f *fakeController) Status() engine.Status { return f.status }

func newTestModel() (Model, *fakeController) {
	ctrl := &fakeController{status: engine.Status{Phase: engine.PhaseBriefed, TrialCount: 10}}
	cfg := engine.DefaultConfig()
	cfg.TrialCount = 10
	m := NewModel(ctrl, models.Participant{Name: "Dewi"}, cfg)
	m.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return m, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBriefingStartsSession(t *testing.T) {
	m, ctrl := newTestModel()
	assert.Contains(t, m.View(), "Hello Dewi.")
	assert.Contains(t, m.View(), "00:22")

	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Starting...")

	// a second enter while starting does nothing
	_, again := update(t, m, key("enter"))
	assert.Nil(t, again)

	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, ctrl.begins)

	m, tickCmd := update(t, m, phaseMsg{phase: engine.PhaseRunning})
	assert.NotNil(t, tickCmd)
	assert.Equal(t, viewRunning, m.view)
	assert.Contains(t, m.View(), "Trial 0/10")
}

func TestBriefingShowsDisplayError(t *testing.T) {
	m, ctrl := newTestModel()
	ctrl.beginErr = errors.Join(engine.ErrDisplayUnavailable, ErrNoTerminal)

	m, cmd := update(t, m, key("enter"))
	m, _ = update(t, m, cmd())
	assert.Equal(t, viewBriefing, m.view)
	assert.Contains(t, m.View(), "Cannot start")
	assert.Contains(t, m.View(), "must be a terminal")
}

func runningModel(t *testing.T) (Model, *fakeController) {
	m, ctrl := newTestModel()
	ctrl.status.Phase = engine.PhaseRunning
	m, _ = update(t, m, phaseMsg{phase: engine.PhaseRunning})
	return m, ctrl
}

func lineIndex(view, needle string) int {
	for i, line := range strings.Split(view, "\n") {
		if strings.Contains(line, needle) {
			return i
		}
	}
	return -1
}

func TestStimulusPosition(t *testing.T) {
	m, _ := runningModel(t)
	assert.NotContains(t, m.View(), "█")

	m, _ = update(t, m, stimulusMsg{trial: models.Trial{Sequence: 1, IsTarget: true}, visible: true})
	view := m.View()
	assert.Less(t, lineIndex(view, "█"), lineIndex(view, "+"), "targets appear above the fixation cross")

	m, _ = update(t, m, stimulusMsg{})
	assert.NotContains(t, m.View(), "█")

	m, _ = update(t, m, stimulusMsg{trial: models.Trial{Sequence: 2}, visible: true})
	view = m.View()
	assert.Greater(t, lineIndex(view, "█"), lineIndex(view, "+"), "non-targets appear below it")
}

func TestRunningKeys(t *testing.T) {
	m, ctrl := runningModel(t)

	m, cmd := update(t, m, key("space"))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, ctrl.presses)

	m, cmd = update(t, m, key("p"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, 1, ctrl.pauses)

	m, _ = update(t, m, pauseMsg{paused: true})
	assert.Contains(t, m.View(), "Paused")

	m, cmd = update(t, m, key("p"))
	cmd()
	assert.Equal(t, 1, ctrl.resumes)

	_, cmd = update(t, m, key("q"))
	cmd()
	assert.Equal(t, 1, ctrl.stops)
}

func TestTickRefreshesStatus(t *testing.T) {
	m, ctrl := runningModel(t)
	ctrl.status.TrialsPresented = 4
	ctrl.status.Elapsed = 8 * time.Second
	ctrl.status.PublishedAt = m.now()

	m, cmd := update(t, m, tickMsg(m.now()))
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Trial 4/10")
	assert.Contains(t, m.View(), "00:14 left")
}

func TestCompletedView(t *testing.T) {
	m, _ := runningModel(t)
	m, _ = update(t, m, completedMsg{outcome: engine.Outcome{
		Reason: engine.ReasonStopped,
		Result: models.ScoreResult{
			OmissionErrors: 3, CommissionErrors: 1, MeanReactionTimeMs: 250,
			RealizedDurationMs: 65000, Attentiveness: 25, ImpulseControl: 83, Consistency: 0,
		},
	}})
	view := m.View()
	assert.Contains(t, view, "Test ended early")
	assert.Contains(t, view, "250 ms")
	assert.Contains(t, view, "01:05")
	assert.Contains(t, view, "Saving your results")

	m, _ = update(t, m, submissionMsg{state: sink.StatePending})
	assert.Contains(t, m.View(), "will be retried")

	m, _ = update(t, m, submissionMsg{state: sink.StateSubmitted})
	assert.Contains(t, m.View(), "have been saved")

	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestScreenReady(t *testing.T) {
	s := NewScreen()
	s.isTerminal = func() bool { return false }
	assert.ErrorIs(t, s.Ready(), ErrNoTerminal)

	s.isTerminal = func() bool { return true }
	assert.ErrorIs(t, s.Ready(), ErrNotAttached)

	// without a program events are dropped
	s.Show(models.Trial{Sequence: 1})
	s.SubmissionChanged("x", sink.StateSubmitted)
}

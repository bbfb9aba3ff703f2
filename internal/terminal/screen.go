package terminal

import (
	"errors"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"tova-go/internal/engine"
	"tova-go/internal/models"
	"tova-go/internal/sink"
)

var (
	ErrNoTerminal  = errors.New("stdin and stdout must be a terminal")
	ErrNotAttached = errors.New("terminal program not running")
)

// Screen connects a session to a running bubbletea program. It is the
// session's Display and Observer, and receives submission states.
type Screen struct {
	engine.NopObserver

	mu         sync.RWMutex
	program    *tea.Program
	isTerminal func() bool
}

func NewScreen() *Screen {
	return &Screen{
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
}

// Attach routes all further events to p.
func (s *Screen) Attach(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

func (s *Screen) Ready() error {
	if !s.isTerminal() {
		return ErrNoTerminal
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.program == nil {
		return ErrNotAttached
	}
	return nil
}

func (s *Screen) Show(t models.Trial) { s.send(stimulusMsg{trial: t, visible: true}) }
func (s *Screen) Hide() { s.send(stimulusMsg{}) }

func (s *Screen) PhaseChanged(_, to engine.Phase) { s.send(phaseMsg{phase: to}) }
func (s *Screen) PauseChanged(paused bool) { s.send(pauseMsg{paused: paused}) }
func (s *Screen) Completed(o engine.Outcome) { s.send(completedMsg{outcome: o}) }

// SubmissionChanged fits sink.Submitter.OnState.
func (s *Screen) SubmissionChanged(_ string, st sink.State) {
	s.send(submissionMsg{state: st})
}

func (s *Screen) send(msg tea.Msg) {
	s.mu.RLock()
	p := s.program
	s.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

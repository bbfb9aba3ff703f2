package engine

import (
	"time"

	"tova-go/internal/clock"
	"tova-go/internal/models"
)

// Display is the surface a stimulus is drawn on.
type Display interface {
	// Ready reports whether stimuli can be shown at all.
	Ready() error
	Show(models.Trial)
	Hide()
}

// Presenter shows each trial for a fixed exposure and then hides it. At
// most one stimulus is visible at any time.
type Presenter struct {
	sched    clock.Scheduler
	display  Display
	exposure time.Duration

	hideTimer clock.Timer
	visible   bool
}

func NewPresenter(sched clock.Scheduler, display Display, exposure time.Duration) *Presenter {
	return &Presenter{sched: sched, display: display, exposure: exposure}
}

// Present shows trial, hiding any stimulus that is still up.
func (p *Presenter) Present(trial models.Trial) {
	p.hide()
	p.display.Show(trial)
	p.visible = true
	p.hideTimer = p.sched.AfterFunc(p.exposure, p.hide)
}

// Visible reports whether a stimulus is currently shown.
func (p *Presenter) Visible() bool {
	return p.visible
}

// Stop cancels the pending hide and clears the display.
func (p *Presenter) Stop() {
	p.hide()
}

func (p *Presenter) hide() {
	if p.hideTimer != nil {
		p.hideTimer.Stop()
		p.hideTimer = nil
	}
	if p.visible {
		p.display.Hide()
		p.visible = false
	}
}

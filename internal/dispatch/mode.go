package dispatch

import (
	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

// ModeController arbitrates between listening, dictation and search capture.
// It is the only owner of the current mode; the state machine requests
// transitions through it.
type ModeController struct {
	events ports.EventSink

	mode       domain.Mode
	prefixWait bool
	generation uint64

	captureAction string
	toggledCycle  bool
}

func NewModeController(events ports.EventSink) *ModeController {
	return &ModeController{events: events, mode: domain.ModeListening}
}

// Mode returns the current mode. Listening is reported as PrefixWait while a
// prefix hold is in progress.
func (c *ModeController) Mode() domain.Mode {
	if c.mode == domain.ModeListening && c.prefixWait {
		return domain.ModePrefixWait
	}
	return c.mode
}

// Listening reports whether speech is interpreted as commands.
func (c *ModeController) Listening() bool {
	return c.mode == domain.ModeListening
}

// Constrained reports whether the recognizer should use the command grammar.
func (c *ModeController) Constrained() bool {
	return c.mode == domain.ModeListening
}

// Generation changes every time the recognizer grammar has to change.
func (c *ModeController) Generation() uint64 {
	return c.generation
}

// BeginCycle opens a new poll cycle for toggle arbitration.
func (c *ModeController) BeginCycle() {
	c.toggledCycle = false
}

// Toggle flips between listening and dictation. Only the first toggle of a
// poll cycle is honoured, whichever channel raised it; later ones in the same
// cycle are dropped and reported as false. A toggle during search capture
// cancels the capture.
func (c *ModeController) Toggle(source domain.ToggleSource) bool {
	if c.toggledCycle {
		return false
	}
	c.toggledCycle = true

	reason := domain.ReasonToggleMatched
	if source == domain.ToggleHotKey {
		reason = domain.ReasonHotKey
	}

	switch c.mode {
	case domain.ModeListening:
		c.set(domain.ModeDictation, source, reason)
	case domain.ModeSearchCapture:
		c.captureAction = ""
		c.set(domain.ModeListening, source, domain.ReasonCaptureCancelled)
	default:
		c.set(domain.ModeListening, source, reason)
	}
	return true
}

// ReturnToListening leaves dictation or capture without counting as a cycle toggle.
func (c *ModeController) ReturnToListening(source domain.ToggleSource, reason domain.Reason) bool {
	if c.mode == domain.ModeListening {
		return false
	}
	c.captureAction = ""
	c.set(domain.ModeListening, source, reason)
	return true
}

// EnterCapture starts a bounded search capture for an action template.
func (c *ModeController) EnterCapture(action string) {
	c.captureAction = action
	c.set(domain.ModeSearchCapture, domain.ToggleVoice, domain.ReasonCaptureStarted)
}

// FinishCapture ends a capture and returns its action template.
func (c *ModeController) FinishCapture() string {
	action := c.captureAction
	c.captureAction = ""
	if c.mode == domain.ModeSearchCapture {
		c.set(domain.ModeListening, domain.ToggleTimer, domain.ReasonCaptureConcluded)
	}
	return action
}

// SetPrefixWait marks the listening sub-state.
func (c *ModeController) SetPrefixWait(waiting bool) {
	c.prefixWait = waiting
}

func (c *ModeController) set(mode domain.Mode, source domain.ToggleSource, reason domain.Reason) {
	c.prefixWait = false
	if mode == c.mode {
		return
	}
	c.mode = mode
	c.generation++
	c.events.ModeChanged(mode, source, reason)
}

package dispatch

import (
	"strings"
	"time"

	"voxdispatch/internal/domain"
)

// Session is the mutable state of one decode pass. It is replaced wholesale
// on every reset.
type Session struct {
	ID                  string
	LastPartialText     string
	LastSpeechAt        time.Time
	PrefixHoldStartedAt time.Time
	Mode                domain.Mode
}

// echo tracks what has already been typed from the partials of the current
// utterance so progressive dictation only types the new tail.
type echo struct {
	baseline string
}

// Delta returns the text to type for a new partial and moves the baseline.
func (e *echo) Delta(current string) string {
	if current == "" {
		return ""
	}
	if e.baseline != "" && strings.HasPrefix(current, e.baseline) {
		delta := current[len(e.baseline):]
		e.baseline = current
		return delta
	}
	e.baseline = current
	return current
}

// Final returns the untyped remainder of a final hypothesis and clears the baseline.
func (e *echo) Final(text string) string {
	delta := text
	if e.baseline != "" && strings.HasPrefix(text, e.baseline) {
		delta = text[len(e.baseline):]
	}
	e.baseline = ""
	return delta
}

func (e *echo) Clear() {
	e.baseline = ""
}

// captureBuffer accumulates the text spoken during a search capture.
type captureBuffer struct {
	finals     []string
	lastSpoken string
}

func (b *captureBuffer) Add(h domain.Hypothesis) {
	text := strings.TrimSpace(h.Text)
	if text == "" {
		return
	}
	b.lastSpoken = text
	if h.Kind == domain.HypothesisFinal {
		b.finals = append(b.finals, text)
		b.lastSpoken = ""
	}
}

// Text joins finalized text and appends a trailing partial that no final has covered yet.
func (b *captureBuffer) Text() string {
	joined := strings.TrimSpace(strings.Join(b.finals, " "))
	if b.lastSpoken == "" {
		return joined
	}
	if joined == "" {
		return b.lastSpoken
	}
	return joined + " " + b.lastSpoken
}

func (b *captureBuffer) Clear() {
	b.finals = nil
	b.lastSpoken = ""
}

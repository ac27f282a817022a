package usecase

import "strings"

// hypothesisTracker drops partial hypotheses that repeat the previous one.
// Recognizers re-report the same partial on every chunk of silence; only
// changes are fed to the state machine.
type hypothesisTracker struct {
	lastPartial string
}

// Changed records text and reports whether it differs from the last partial.
func (t *hypothesisTracker) Changed(text string) bool {
	text = strings.TrimSpace(text)
	if text == t.lastPartial {
		return false
	}
	t.lastPartial = text
	return true
}

// Clear forgets the last partial, used after a final or a reset.
func (t *hypothesisTracker) Clear() {
	t.lastPartial = ""
}

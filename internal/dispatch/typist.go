package dispatch

import (
	"fmt"

	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

// typist forwards dictated text to the executor as literal keyboard input.
type typist struct {
	rules         ports.RulesEngine
	executor      ports.ActionExecutor
	events        ports.EventSink
	trailingSpace bool
}

func newTypist(rules ports.RulesEngine, executor ports.ActionExecutor, events ports.EventSink, trailingSpace bool) typist {
	return typist{rules: rules, executor: executor, events: events, trailingSpace: trailingSpace}
}

// Type applies substitution rules to a finished utterance and types it.
func (t typist) Type(text string) bool {
	transformed := text
	if t.rules != nil {
		var err error
		transformed, err = t.rules.Apply(text)
		if err != nil {
			t.events.SessionError(domain.ErrorCodeRules, fmt.Sprintf("rules failed for %q: %v", text, err))
			return false
		}
	}
	if t.trailingSpace {
		transformed += " "
	}
	return t.TypeRaw(transformed)
}

// TypeRaw types text unchanged.
func (t typist) TypeRaw(text string) bool {
	if text == "" {
		return false
	}
	if err := t.executor.TypeText(text); err != nil {
		t.events.SessionError(domain.ErrorCodeTyping, fmt.Sprintf("failed to type %q: %v", text, err))
		return false
	}
	return true
}

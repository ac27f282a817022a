package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"voxdispatch/internal/domain"
)

// DefaultTogglePhrase switches between listening and dictation.
const DefaultTogglePhrase = "type mode"

// Table maps normalized trigger phrases to action strings. It is immutable
// once built and always contains the toggle phrase.
type Table struct {
	actions map[string]string
	phrases []string
	toggle  string
}

// NewTable normalizes the raw phrase map and validates it. Two raw phrases
// that normalize to the same key, or a user phrase equal to the toggle
// phrase, are configuration errors.
func NewTable(raw map[string]string, togglePhrase string) (*Table, error) {
	toggle := Normalize(togglePhrase)
	if toggle == "" {
		toggle = DefaultTogglePhrase
	}

	actions := make(map[string]string, len(raw))
	origin := make(map[string]string, len(raw))

	keys := lo.Keys(raw)
	sort.Strings(keys)
	for _, key := range keys {
		phrase := Normalize(key)
		if phrase == "" {
			return nil, fmt.Errorf("%w: empty trigger phrase for action %q", domain.ErrConfig, raw[key])
		}
		if phrase == toggle {
			return nil, fmt.Errorf("%w: phrase %q is reserved for mode toggle", domain.ErrConfig, key)
		}
		if previous, exists := origin[phrase]; exists {
			return nil, fmt.Errorf("%w: phrases %q and %q both normalize to %q", domain.ErrConfig, previous, key, phrase)
		}
		origin[phrase] = key
		actions[phrase] = strings.TrimSpace(raw[key])
	}

	phrases := append(lo.Keys(actions), toggle)
	sort.Strings(phrases)

	return &Table{actions: actions, phrases: phrases, toggle: toggle}, nil
}

// Lookup returns the action mapped to an exact phrase.
func (t *Table) Lookup(text string) (string, bool) {
	action, ok := t.actions[text]
	return action, ok
}

// HasPrefix reports whether text is a strict prefix of at least one phrase.
func (t *Table) HasPrefix(text string) bool {
	if text == "" {
		return false
	}
	index := sort.SearchStrings(t.phrases, text)
	for ; index < len(t.phrases); index++ {
		phrase := t.phrases[index]
		if !strings.HasPrefix(phrase, text) {
			return false
		}
		if phrase != text {
			return true
		}
	}
	return false
}

// Phrases returns every known phrase, toggle included, in lexical order.
func (t *Table) Phrases() []string {
	out := make([]string, len(t.phrases))
	copy(out, t.phrases)
	return out
}

// TogglePhrase returns the reserved mode-toggle phrase.
func (t *Table) TogglePhrase() string {
	return t.toggle
}

// IsToggle reports whether text is the toggle phrase.
func (t *Table) IsToggle(text string) bool {
	return text == t.toggle
}

// Len returns the number of user commands.
func (t *Table) Len() int {
	return len(t.actions)
}

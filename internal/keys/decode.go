package keys

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"voxdispatch/internal/domain"
)

const esc = 0x1b

// Decode turns one raw-mode read into key events. Escape sequences for
// cursor and function keys are dropped; ESC followed by a printable key is
// reported as Alt+key.
func Decode(chunk []byte, now time.Time) []domain.KeyEvent {
	var events []domain.KeyEvent
	for len(chunk) > 0 {
		event, size := decodeOne(chunk)
		chunk = chunk[size:]
		if event.Code == domain.KeyNone {
			continue
		}
		event.Timestamp = now
		events = append(events, event)
	}
	return events
}

func decodeOne(chunk []byte) (domain.KeyEvent, int) {
	b := chunk[0]
	switch {
	case b == esc:
		if len(chunk) == 1 {
			return domain.KeyEvent{Code: domain.KeyEscape}, 1
		}
		if chunk[1] == '[' || chunk[1] == 'O' {
			return domain.KeyEvent{}, sequenceLength(chunk)
		}
		next, size := decodeOne(chunk[1:])
		if next.Code == domain.KeyNone || next.Code == domain.KeyEscape {
			return domain.KeyEvent{Code: domain.KeyEscape}, 1
		}
		next.Modifiers |= domain.ModAlt
		return next, size + 1
	case b == '\r' || b == '\n':
		return domain.KeyEvent{Code: domain.KeyEnter}, 1
	case b == '\t':
		return domain.KeyEvent{Code: domain.KeyTab}, 1
	case b == 0x7f || b == 0x08:
		return domain.KeyEvent{Code: domain.KeyBackspace}, 1
	case b == ' ':
		return domain.KeyEvent{Code: domain.KeySpace}, 1
	case b == 0:
		return domain.KeyEvent{Code: domain.KeySpace, Modifiers: domain.ModCtrl}, 1
	case b < 0x1b:
		return domain.KeyEvent{Code: domain.KeyRune, Rune: rune('a' + b - 1), Modifiers: domain.ModCtrl}, 1
	case b < 0x20:
		return domain.KeyEvent{}, 1
	}

	r, size := utf8.DecodeRune(chunk)
	if r == utf8.RuneError {
		return domain.KeyEvent{}, size
	}
	event := domain.KeyEvent{Code: domain.KeyRune, Rune: unicode.ToLower(r)}
	if unicode.IsUpper(r) {
		event.Modifiers = domain.ModShift
	}
	return event, size
}

// sequenceLength measures a CSI or SS3 sequence starting at chunk[0].
func sequenceLength(chunk []byte) int {
	for i := 2; i < len(chunk); i++ {
		if chunk[i] >= 0x40 && chunk[i] <= 0x7e {
			return i + 1
		}
	}
	return len(chunk)
}

// Binding is a parsed key chord such as "ctrl+t" or "alt+space".
type Binding struct {
	Code      domain.KeyCode
	Rune      rune
	Modifiers domain.KeyModifier
}

// ParseBinding parses modifiers joined with "+" in front of a key name or a
// single character.
func ParseBinding(chord string) (Binding, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	key := parts[len(parts)-1]
	var binding Binding
	for _, mod := range parts[:len(parts)-1] {
		switch mod {
		case "ctrl", "control":
			binding.Modifiers |= domain.ModCtrl
		case "alt", "meta":
			binding.Modifiers |= domain.ModAlt
		case "shift":
			binding.Modifiers |= domain.ModShift
		default:
			return Binding{}, fmt.Errorf("unknown modifier %q in key binding %q", mod, chord)
		}
	}

	switch key {
	case "esc", "escape":
		binding.Code = domain.KeyEscape
	case "enter", "return":
		binding.Code = domain.KeyEnter
	case "tab":
		binding.Code = domain.KeyTab
	case "space":
		binding.Code = domain.KeySpace
	case "backspace":
		binding.Code = domain.KeyBackspace
	default:
		if utf8.RuneCountInString(key) != 1 {
			return Binding{}, fmt.Errorf("unknown key %q in key binding %q", key, chord)
		}
		binding.Code = domain.KeyRune
		binding.Rune, _ = utf8.DecodeRuneInString(key)
	}
	return binding, nil
}

// Matches reports whether event is this chord.
func (b Binding) Matches(event domain.KeyEvent) bool {
	if event.Code != b.Code || event.Modifiers != b.Modifiers {
		return false
	}
	return b.Code != domain.KeyRune || event.Rune == b.Rune
}

package dispatch

import (
	"time"

	"voxdispatch/internal/domain"
)

const (
	DefaultSilenceWindow  = 800 * time.Millisecond
	DefaultPrefixWindow   = 500 * time.Millisecond
	DefaultDictationIdle  = 8 * time.Second
	DefaultCaptureWindow  = 5 * time.Second
	DefaultCooldownWindow = 1500 * time.Millisecond
)

// Timing holds every timing budget of the dispatcher.
type Timing struct {
	Silence       time.Duration
	Prefix        time.Duration
	DictationIdle time.Duration
	CaptureWindow time.Duration
	Cooldown      time.Duration
}

// DefaultTiming returns the canonical timing budgets.
func DefaultTiming() Timing {
	return Timing{
		Silence:       DefaultSilenceWindow,
		Prefix:        DefaultPrefixWindow,
		DictationIdle: DefaultDictationIdle,
		CaptureWindow: DefaultCaptureWindow,
		Cooldown:      DefaultCooldownWindow,
	}
}

func (t Timing) withDefaults() Timing {
	defaults := DefaultTiming()
	if t.Silence <= 0 {
		t.Silence = defaults.Silence
	}
	if t.Prefix <= 0 {
		t.Prefix = defaults.Prefix
	}
	if t.DictationIdle <= 0 {
		t.DictationIdle = defaults.DictationIdle
	}
	if t.CaptureWindow <= 0 {
		t.CaptureWindow = defaults.CaptureWindow
	}
	if t.Cooldown <= 0 {
		t.Cooldown = defaults.Cooldown
	}
	return t
}

// fireOrder is the order in which simultaneously expired timers are reported.
var fireOrder = []domain.TimerKind{
	domain.TimerCaptureWindow,
	domain.TimerDictationIdle,
	domain.TimerPrefix,
	domain.TimerSilence,
	domain.TimerCooldown,
}

// Governor owns one-shot deadlines for every timer kind. It never reads the
// clock itself; callers pass the current monotonic time.
type Governor struct {
	timing    Timing
	deadlines map[domain.TimerKind]time.Time
}

func NewGovernor(timing Timing) *Governor {
	return &Governor{
		timing:    timing.withDefaults(),
		deadlines: make(map[domain.TimerKind]time.Time, len(fireOrder)),
	}
}

// Arm starts or restarts the timer of the given kind at now.
func (g *Governor) Arm(kind domain.TimerKind, now time.Time) {
	g.deadlines[kind] = now.Add(g.window(kind))
}

// Disarm stops a timer. Disarming an idle timer is a no-op.
func (g *Governor) Disarm(kinds ...domain.TimerKind) {
	for _, kind := range kinds {
		delete(g.deadlines, kind)
	}
}

// Armed reports whether a timer is running.
func (g *Governor) Armed(kind domain.TimerKind) bool {
	_, ok := g.deadlines[kind]
	return ok
}

// Expired disarms and returns every timer whose deadline is not after now.
func (g *Governor) Expired(now time.Time) []domain.TimerKind {
	var fired []domain.TimerKind
	for _, kind := range fireOrder {
		deadline, ok := g.deadlines[kind]
		if !ok || now.Before(deadline) {
			continue
		}
		delete(g.deadlines, kind)
		fired = append(fired, kind)
	}
	return fired
}

func (g *Governor) window(kind domain.TimerKind) time.Duration {
	switch kind {
	case domain.TimerSilence:
		return g.timing.Silence
	case domain.TimerPrefix:
		return g.timing.Prefix
	case domain.TimerDictationIdle:
		return g.timing.DictationIdle
	case domain.TimerCaptureWindow:
		return g.timing.CaptureWindow
	case domain.TimerCooldown:
		return g.timing.Cooldown
	default:
		return 0
	}
}

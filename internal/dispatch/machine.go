package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxdispatch/internal/commands"
	"voxdispatch/internal/domain"
	"voxdispatch/internal/matcher"
	"voxdispatch/internal/ports"
)

// CapturePlaceholder marks the spot in an action where captured speech is inserted.
const CapturePlaceholder = "{capture}"

// Resetter discards the recognizer's in-progress decode state.
type Resetter interface {
	Reset()
}

// Config controls dispatch behaviour.
type Config struct {
	Timing        Timing
	Progressive   bool
	TrailingSpace bool
}

// Machine is the recognition dispatch state machine. It is single-threaded:
// every method must be called from the goroutine that owns the poll loop.
type Machine struct {
	table    *commands.Table
	matcher  *matcher.Matcher
	modes    *ModeController
	governor *Governor
	executor ports.ActionExecutor
	events   ports.EventSink
	typist   typist
	cfg      Config
	newID    func() string

	phrases []string
	decoder Resetter

	state   domain.DispatchState
	session Session

	lastCommitted string
	echo          echo
	capture       captureBuffer
	captureMatch  domain.MatchResult
}

func NewMachine(
	table *commands.Table,
	fuzzy *matcher.Matcher,
	modes *ModeController,
	executor ports.ActionExecutor,
	rules ports.RulesEngine,
	events ports.EventSink,
	cfg Config,
) *Machine {
	return &Machine{
		table:    table,
		matcher:  fuzzy,
		modes:    modes,
		governor: NewGovernor(cfg.Timing),
		executor: executor,
		events:   events,
		typist:   newTypist(rules, executor, events, cfg.TrailingSpace),
		cfg:      cfg,
		newID:    uuid.NewString,
		phrases:  table.Phrases(),
		state:    domain.StateIdle,
	}
}

// SetDecoder attaches the recognizer of the current pass.
func (m *Machine) SetDecoder(decoder Resetter) {
	m.decoder = decoder
}

func (m *Machine) State() domain.DispatchState {
	return m.state
}

func (m *Machine) Session() Session {
	return m.session
}

func (m *Machine) Governor() *Governor {
	return m.governor
}

// Begin starts a fresh decode pass in Awaiting.
func (m *Machine) Begin(now time.Time) {
	m.session = Session{ID: m.newID(), Mode: m.modes.Mode()}
	m.setState(domain.StateAwaiting, domain.ReasonPassStarted, "")
}

// Classify resolves normalized text against the command table: toggle and
// exact matches first, then fuzzy, then prefix.
func (m *Machine) Classify(text string, kind domain.HypothesisKind) domain.MatchResult {
	if text == "" {
		return domain.MatchResult{Kind: domain.MatchNone}
	}
	if m.table.IsToggle(text) {
		return domain.MatchResult{Phrase: text, Score: 1, Kind: domain.MatchExact}
	}
	if _, ok := m.table.Lookup(text); ok {
		return domain.MatchResult{Phrase: text, Score: 1, Kind: domain.MatchExact}
	}
	if result := m.matcher.BestMatch(text, kind, m.phrases); result.Found() {
		return result
	}
	if m.table.HasPrefix(text) {
		return domain.MatchResult{Kind: domain.MatchPrefix}
	}
	return domain.MatchResult{Kind: domain.MatchNone}
}

// HandleHypothesis feeds one recognizer observation into the machine.
func (m *Machine) HandleHypothesis(h domain.Hypothesis, now time.Time) {
	text := commands.Normalize(h.Text)
	if text == "" && h.Kind == domain.HypothesisPartial {
		return
	}
	if m.state == domain.StateIdle {
		m.Begin(now)
	}
	if text != "" {
		m.events.HypothesisObserved(m.session.ID, h)
	}

	switch m.modes.Mode() {
	case domain.ModeDictation:
		m.dictate(h, text, now)
	case domain.ModeSearchCapture:
		m.captureSpeech(h, text)
	default:
		m.listen(h, text, now)
	}
}

// Tick turns every expired timer into a timer event.
func (m *Machine) Tick(now time.Time) {
	for _, kind := range m.governor.Expired(now) {
		m.HandleTimer(kind, now)
	}
}

// HandleTimer applies the expiry of one timer.
func (m *Machine) HandleTimer(kind domain.TimerKind, now time.Time) {
	switch kind {
	case domain.TimerSilence, domain.TimerPrefix:
		if m.state != domain.StatePartialSeen && m.state != domain.StatePrefixHolding {
			return
		}
		reason := domain.ReasonSilence
		if kind == domain.TimerPrefix {
			reason = domain.ReasonPrefixExpired
		}
		m.Reset(reason, m.session.LastPartialText)
	case domain.TimerDictationIdle:
		if m.modes.Mode() != domain.ModeDictation {
			return
		}
		m.switchMode(now, func() bool {
			return m.modes.ReturnToListening(domain.ToggleTimer, domain.ReasonDictationIdle)
		})
		m.Reset(domain.ReasonDictationIdle, "")
	case domain.TimerCaptureWindow:
		m.concludeCapture(now)
	case domain.TimerCooldown:
		m.lastCommitted = ""
	}
}

// HotKeyToggle services the mode-toggle key. It reports false when a toggle
// was already serviced in the current poll cycle.
func (m *Machine) HotKeyToggle(now time.Time) bool {
	toggled := false
	m.switchMode(now, func() bool {
		toggled = m.modes.Toggle(domain.ToggleHotKey)
		return toggled
	})
	if toggled {
		m.Reset(domain.ReasonModeSwitch, "")
	}
	return toggled
}

// ExitKey leaves dictation or search capture. It reports false in listening mode.
func (m *Machine) ExitKey(now time.Time) bool {
	left := false
	m.switchMode(now, func() bool {
		left = m.modes.ReturnToListening(domain.ToggleHotKey, domain.ReasonExitKey)
		return left
	})
	if left {
		m.Reset(domain.ReasonExitKey, "")
	}
	return left
}

// Reset clears the session, discards decoder state and returns to Idle.
func (m *Machine) Reset(reason domain.Reason, text string) {
	m.governor.Disarm(domain.TimerSilence, domain.TimerPrefix)
	m.modes.SetPrefixWait(false)
	if m.decoder != nil {
		m.decoder.Reset()
	}
	id := m.session.ID
	m.session = Session{}
	m.state = domain.StateIdle
	m.events.PassStateChanged(id, domain.StateIdle, reason, text)
}

func (m *Machine) listen(h domain.Hypothesis, text string, now time.Time) {
	if text == "" {
		m.Reset(domain.ReasonEmptyFinal, "")
		return
	}
	if m.lastCommitted != "" && text == m.lastCommitted {
		if h.Kind == domain.HypothesisFinal {
			m.Reset(domain.ReasonFinalized, text)
		}
		return
	}
	if h.Kind == domain.HypothesisPartial {
		if text == m.session.LastPartialText {
			return
		}
		m.session.LastPartialText = text
		m.session.LastSpeechAt = now
		m.governor.Arm(domain.TimerSilence, now)
		m.setState(domain.StatePartialSeen, domain.ReasonPartialObserved, text)
	}

	result := m.Classify(text, h.Kind)
	switch result.Kind {
	case domain.MatchExact, domain.MatchFuzzy:
		m.commit(result, text, now)
	case domain.MatchPrefix:
		if h.Kind == domain.HypothesisFinal {
			m.Reset(domain.ReasonUnmatched, text)
			return
		}
		m.hold(text, now)
	default:
		m.Reset(domain.ReasonUnmatched, text)
	}
}

func (m *Machine) hold(text string, now time.Time) {
	if m.session.PrefixHoldStartedAt.IsZero() {
		m.session.PrefixHoldStartedAt = now
	}
	m.governor.Arm(domain.TimerPrefix, now)
	m.modes.SetPrefixWait(true)
	m.session.Mode = domain.ModePrefixWait
	m.setState(domain.StatePrefixHolding, domain.ReasonPrefixHold, text)
}

func (m *Machine) commit(result domain.MatchResult, text string, now time.Time) {
	m.lastCommitted = text
	m.governor.Arm(domain.TimerCooldown, now)

	if m.table.IsToggle(result.Phrase) {
		m.setState(domain.StateCommitted, domain.ReasonToggleMatched, text)
		m.switchMode(now, func() bool { return m.modes.Toggle(domain.ToggleVoice) })
		m.Reset(domain.ReasonToggleMatched, text)
		return
	}

	m.setState(domain.StateCommitted, domain.ReasonCommandMatched, text)
	action, _ := m.table.Lookup(result.Phrase)
	switch {
	case strings.Contains(action, CapturePlaceholder):
		m.captureMatch = result
		m.switchMode(now, func() bool {
			m.modes.EnterCapture(action)
			return true
		})
	case action != "":
		dispatch := domain.Dispatch{PassID: m.session.ID, Text: text, Action: action, Match: result, Mode: m.session.Mode}
		if started := m.session.PrefixHoldStartedAt; !started.IsZero() {
			dispatch.HeldFor = now.Sub(started)
		}
		m.run(dispatch)
	}
	m.Reset(domain.ReasonCommandMatched, text)
}

func (m *Machine) run(dispatch domain.Dispatch) {
	if err := m.executor.Run(dispatch.Action); err != nil {
		m.events.SessionError(domain.ErrorCodeActionSpawn,
			fmt.Sprintf("phrase %q (heard %q): %v", dispatch.Match.Phrase, dispatch.Text, err))
		return
	}
	m.events.ActionDispatched(dispatch)
}

func (m *Machine) dictate(h domain.Hypothesis, text string, now time.Time) {
	if text == "" {
		m.Reset(domain.ReasonEmptyFinal, "")
		return
	}
	if m.table.IsToggle(text) {
		m.setState(domain.StateCommitted, domain.ReasonToggleMatched, text)
		m.switchMode(now, func() bool { return m.modes.Toggle(domain.ToggleVoice) })
		m.Reset(domain.ReasonToggleMatched, text)
		return
	}

	raw := strings.TrimSpace(h.Text)
	if h.Kind == domain.HypothesisPartial {
		if text == m.session.LastPartialText {
			return
		}
		m.session.LastPartialText = text
		m.session.LastSpeechAt = now
		m.governor.Arm(domain.TimerDictationIdle, now)
		m.setState(domain.StatePartialSeen, domain.ReasonPartialObserved, text)
		if m.cfg.Progressive && !strings.HasPrefix(m.table.TogglePhrase(), text) {
			m.typist.TypeRaw(m.echo.Delta(raw))
		}
		return
	}

	m.governor.Arm(domain.TimerDictationIdle, now)
	if m.cfg.Progressive {
		m.typist.TypeRaw(m.echo.Final(raw))
	} else {
		m.typist.Type(raw)
	}
	m.Reset(domain.ReasonFinalized, text)
}

func (m *Machine) captureSpeech(h domain.Hypothesis, text string) {
	if text == "" {
		m.Reset(domain.ReasonEmptyFinal, "")
		return
	}
	if h.Kind == domain.HypothesisPartial {
		if text == m.session.LastPartialText {
			return
		}
		m.session.LastPartialText = text
		m.capture.Add(h)
		m.setState(domain.StatePartialSeen, domain.ReasonPartialObserved, text)
		return
	}
	m.capture.Add(h)
	m.Reset(domain.ReasonFinalized, text)
}

func (m *Machine) concludeCapture(now time.Time) {
	if m.modes.Mode() != domain.ModeSearchCapture {
		return
	}
	captured := m.capture.Text()
	var action string
	m.switchMode(now, func() bool {
		action = m.modes.FinishCapture()
		return true
	})

	if captured != "" && action != "" {
		m.run(domain.Dispatch{
			PassID: m.session.ID,
			Text:   captured,
			Action: strings.ReplaceAll(action, CapturePlaceholder, shellQuote(captured)),
			Match:  m.captureMatch,
			Mode:   domain.ModeSearchCapture,
		})
	}
	m.captureMatch = domain.MatchResult{}
	m.Reset(domain.ReasonCaptureConcluded, captured)
}

// switchMode runs a mode transition and re-arms mode timers when the mode
// actually changed.
func (m *Machine) switchMode(now time.Time, transition func() bool) {
	generation := m.modes.Generation()
	if !transition() || m.modes.Generation() == generation {
		return
	}

	m.governor.Disarm(domain.TimerDictationIdle, domain.TimerCaptureWindow)
	m.echo.Clear()
	switch m.modes.Mode() {
	case domain.ModeDictation:
		m.governor.Arm(domain.TimerDictationIdle, now)
	case domain.ModeSearchCapture:
		m.capture.Clear()
		m.governor.Arm(domain.TimerCaptureWindow, now)
	}
}

func (m *Machine) setState(state domain.DispatchState, reason domain.Reason, text string) {
	m.state = state
	m.events.PassStateChanged(m.session.ID, state, reason, text)
}

// shellQuote wraps text in single quotes for sh.
func shellQuote(text string) string {
	return "'" + strings.ReplaceAll(text, "'", `'\''`) + "'"
}

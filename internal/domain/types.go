package domain

import "time"

// HypothesisKind identifies whether a recognizer hypothesis is provisional or closed.
type HypothesisKind string

const (
	HypothesisPartial HypothesisKind = "partial"
	HypothesisFinal   HypothesisKind = "final"
)

// Hypothesis is one transcript observation from the recognizer.
type Hypothesis struct {
	Text string         `json:"text"`
	Kind HypothesisKind `json:"kind"`
}

// MatchKind orders how a hypothesis resolved against the command table.
type MatchKind string

const (
	MatchNone   MatchKind = "none"
	MatchPrefix MatchKind = "prefix"
	MatchFuzzy  MatchKind = "fuzzy"
	MatchExact  MatchKind = "exact"
)

// MatchResult is the outcome of resolving one hypothesis text.
type MatchResult struct {
	Phrase string    `json:"phrase"`
	Score  float64   `json:"score"`
	Kind   MatchKind `json:"kind"`
}

// Found reports whether the result selects a phrase to commit.
func (r MatchResult) Found() bool {
	return r.Kind == MatchExact || r.Kind == MatchFuzzy
}

// Mode is the top-level interpretation mode of recognized speech.
type Mode string

const (
	ModeListening     Mode = "listening"
	ModePrefixWait    Mode = "prefix_wait"
	ModeDictation     Mode = "dictation"
	ModeSearchCapture Mode = "search_capture"
)

// DispatchState models the lifecycle of a single decode pass.
type DispatchState string

const (
	StateIdle          DispatchState = "idle"
	StateAwaiting      DispatchState = "awaiting"
	StatePartialSeen   DispatchState = "partial_seen"
	StatePrefixHolding DispatchState = "prefix_holding"
	StateCommitted     DispatchState = "committed"
)

// Reason provides a structured reason for pass and mode transitions.
type Reason string

const (
	ReasonPassStarted      Reason = "pass_started"
	ReasonPartialObserved  Reason = "partial_observed"
	ReasonPrefixHold       Reason = "prefix_hold"
	ReasonCommandMatched   Reason = "command_matched"
	ReasonToggleMatched    Reason = "toggle_matched"
	ReasonUnmatched        Reason = "unmatched"
	ReasonSilence          Reason = "silence"
	ReasonPrefixExpired    Reason = "prefix_expired"
	ReasonEmptyFinal       Reason = "empty_final"
	ReasonFinalized        Reason = "finalized"
	ReasonDecodeFailed     Reason = "decode_failed"
	ReasonModeSwitch       Reason = "mode_switch"
	ReasonHotKey           Reason = "hot_key"
	ReasonExitKey          Reason = "exit_key"
	ReasonDictationIdle    Reason = "dictation_idle"
	ReasonCaptureStarted   Reason = "capture_started"
	ReasonCaptureConcluded Reason = "capture_concluded"
	ReasonCaptureCancelled Reason = "capture_cancelled"
)

// ToggleSource identifies which channel raised a mode toggle.
type ToggleSource string

const (
	ToggleVoice  ToggleSource = "voice"
	ToggleHotKey ToggleSource = "hot_key"
	ToggleTimer  ToggleSource = "timer"
)

// TimerKind names every timing budget owned by the governor.
type TimerKind string

const (
	TimerSilence       TimerKind = "silence"
	TimerPrefix        TimerKind = "prefix"
	TimerDictationIdle TimerKind = "dictation_idle"
	TimerCaptureWindow TimerKind = "capture_window"
	TimerCooldown      TimerKind = "cooldown"
)

// DecodeState is the recognizer's answer to one accepted chunk.
type DecodeState string

const (
	DecodeContinuing DecodeState = "continuing"
	DecodeFinalized  DecodeState = "finalized"
	DecodeFailed     DecodeState = "failed"
)

// KeyCode identifies the key of a terminal key event.
type KeyCode int

const (
	KeyNone KeyCode = iota
	KeyRune
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeySpace
)

// KeyModifier is a bitmask of modifier keys held during a key event.
type KeyModifier uint8

const (
	ModNone KeyModifier = 0

	ModShift KeyModifier = 1 << iota
	ModCtrl
	ModAlt
)

// Has reports whether m contains mod.
func (m KeyModifier) Has(mod KeyModifier) bool {
	return m&mod != 0
}

// KeyEvent is a discrete key press.
type KeyEvent struct {
	Code      KeyCode
	Rune      rune
	Modifiers KeyModifier
	Timestamp time.Time
}

// Dispatch records one committed action. Mode is the pass mode at commit
// time; HeldFor is how long a prefix hold lasted before the match, if any.
type Dispatch struct {
	PassID  string        `json:"passId"`
	Text    string        `json:"text"`
	Action  string        `json:"action"`
	Match   MatchResult   `json:"match"`
	Mode    Mode          `json:"mode"`
	HeldFor time.Duration `json:"heldFor"`
}

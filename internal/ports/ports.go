package ports

import (
	"context"
	"io"

	"voxdispatch/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcriber decodes PCM samples into partial and final hypotheses.
type Transcriber interface {
	Accept(samples []int16) (domain.DecodeState, error)
	Partial() string
	Result() string
	Reset()
	Close() error
}

// TranscriberFactory creates recognizers. A nil grammar means open vocabulary.
type TranscriberFactory interface {
	NewTranscriber(ctx context.Context, sampleRate int, grammar []string) (Transcriber, error)
}

// KeyEventSource delivers discrete key presses.
type KeyEventSource interface {
	Start(ctx context.Context) (<-chan domain.KeyEvent, error)
	Close() error
}

// ActionExecutor launches actions without observing their completion.
type ActionExecutor interface {
	Run(action string) error
	TypeText(text string) error
}

// RulesEngine transforms dictated text using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title string, message string) error
}

// PassRecorder persists the audio of a decode pass for diagnostics.
type PassRecorder interface {
	Open(passID string, sampleRate int) (io.WriteCloser, error)
}

// EventSink receives dispatcher state and events.
type EventSink interface {
	PassStateChanged(passID string, state domain.DispatchState, reason domain.Reason, text string)
	ModeChanged(mode domain.Mode, source domain.ToggleSource, reason domain.Reason)
	HypothesisObserved(passID string, hypothesis domain.Hypothesis)
	ActionDispatched(dispatch domain.Dispatch)
	SessionError(code domain.ErrorCode, detail string)
}

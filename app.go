package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

// App is the process-level event sink. It logs every dispatcher event and
// raises a desktop notification when the mode changes.
type App struct {
	log      *slog.Logger
	notifier ports.Notifier
}

func NewApp(log *slog.Logger, notifier ports.Notifier) *App {
	return &App{log: log, notifier: notifier}
}

// newLogger builds the handler selected by format ("text" or "json").
func newLogger(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PassStateChanged logs decode pass transitions. Routine transitions are debug.
func (a *App) PassStateChanged(passID string, state domain.DispatchState, reason domain.Reason, text string) {
	level := slog.LevelDebug
	if reason == domain.ReasonUnmatched && text != "" {
		level = slog.LevelInfo
	}
	a.log.Log(context.Background(), level, reasonMessage(reason),
		slog.String("pass", passID),
		slog.String("state", string(state)),
		slog.String("reason", string(reason)),
		slog.String("text", text),
	)
}

func (a *App) ModeChanged(mode domain.Mode, source domain.ToggleSource, reason domain.Reason) {
	a.log.Info("mode changed",
		slog.String("mode", string(mode)),
		slog.String("source", string(source)),
		slog.String("reason", string(reason)),
	)
	if err := a.notifier.Notify(modeTitle(mode), reasonMessage(reason)); err != nil {
		a.SessionError(domain.ErrorCodeNotify, err.Error())
	}
}

func (a *App) HypothesisObserved(passID string, hypothesis domain.Hypothesis) {
	a.log.Debug("hypothesis",
		slog.String("pass", passID),
		slog.String("kind", string(hypothesis.Kind)),
		slog.String("text", hypothesis.Text),
	)
}

func (a *App) ActionDispatched(dispatch domain.Dispatch) {
	a.log.Info("action dispatched",
		slog.String("pass", dispatch.PassID),
		slog.String("text", dispatch.Text),
		slog.String("phrase", dispatch.Match.Phrase),
		slog.String("match", string(dispatch.Match.Kind)),
		slog.Float64("score", dispatch.Match.Score),
		slog.String("action", dispatch.Action),
		slog.String("mode", string(dispatch.Mode)),
		slog.Int64("held_ms", dispatch.HeldFor.Milliseconds()),
	)
}

func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.log.Error(errorMessage(code, detail),
		slog.String("code", string(code)),
		slog.String("detail", detail),
	)
}

func modeTitle(mode domain.Mode) string {
	switch mode {
	case domain.ModeDictation:
		return "Dictation"
	case domain.ModeSearchCapture:
		return "Search capture"
	default:
		return "Listening for commands"
	}
}

func reasonMessage(reason domain.Reason) string {
	switch reason {
	case domain.ReasonPassStarted:
		return "Pass started"
	case domain.ReasonPartialObserved:
		return "Partial hypothesis"
	case domain.ReasonPrefixHold:
		return "Holding for a longer phrase"
	case domain.ReasonCommandMatched:
		return "Command matched"
	case domain.ReasonToggleMatched:
		return "Toggle phrase heard"
	case domain.ReasonUnmatched:
		return "No command matched"
	case domain.ReasonSilence:
		return "Silence; pass discarded"
	case domain.ReasonPrefixExpired:
		return "Prefix hold expired"
	case domain.ReasonEmptyFinal:
		return "Empty final hypothesis"
	case domain.ReasonFinalized:
		return "Utterance finalized"
	case domain.ReasonDecodeFailed:
		return "Decode failed; pass discarded"
	case domain.ReasonModeSwitch:
		return "Mode switched"
	case domain.ReasonHotKey:
		return "Toggle key pressed"
	case domain.ReasonExitKey:
		return "Exit key pressed"
	case domain.ReasonDictationIdle:
		return "Dictation idle; back to commands"
	case domain.ReasonCaptureStarted:
		return "Capturing search text"
	case domain.ReasonCaptureConcluded:
		return "Search capture finished"
	case domain.ReasonCaptureCancelled:
		return "Search capture cancelled"
	default:
		return string(reason)
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeConfig:
		return "Configuration error"
	case domain.ErrorCodeModelLoad:
		return "Recognizer unavailable"
	case domain.ErrorCodeAudioSource:
		return "Audio source issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeDecode:
		return "Decode error"
	case domain.ErrorCodeActionSpawn:
		return "Action failed to start"
	case domain.ErrorCodeTyping:
		return "Typing failed"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeKeys:
		return "Keyboard input issue"
	case domain.ErrorCodeNotify:
		return "Notification failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

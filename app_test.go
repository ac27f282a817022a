package main

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"voxdispatch/internal/domain"
)

func TestReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.Reason]string{
		domain.ReasonCommandMatched:   "Command matched",
		domain.ReasonPrefixExpired:    "Prefix hold expired",
		domain.ReasonDecodeFailed:     "Decode failed; pass discarded",
		domain.ReasonDictationIdle:    "Dictation idle; back to commands",
		domain.ReasonCaptureCancelled: "Search capture cancelled",
	}

	for reason, want := range cases {
		reason, want := reason, want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := reasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := reasonMessage("unknown"); got != "unknown" {
		t.Fatalf("expected raw reason fallback, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeConfig:      "Configuration error",
		domain.ErrorCodeModelLoad:   "Recognizer unavailable",
		domain.ErrorCodeAudioStream: "Audio streaming issue",
		domain.ErrorCodeActionSpawn: "Action failed to start",
		domain.ErrorCodeRules:       "Rules processing failed",
	}
	for code, want := range cases {
		code, want := code, want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestModeChangedNotifies(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	notifier := &fakeNotifier{}
	app := NewApp(newLogger(&out, "info", "text"), notifier)

	app.ModeChanged(domain.ModeDictation, domain.ToggleHotKey, domain.ReasonHotKey)

	if len(notifier.titles) != 1 || notifier.titles[0] != "Dictation" {
		t.Fatalf("unexpected notifications: %v", notifier.titles)
	}
	if !strings.Contains(out.String(), "mode=dictation") {
		t.Fatalf("expected mode in log, got %q", out.String())
	}
}

func TestNotifyFailureIsReported(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := NewApp(newLogger(&out, "info", "text"), &fakeNotifier{err: errors.New("no daemon")})

	app.ModeChanged(domain.ModeListening, domain.ToggleTimer, domain.ReasonDictationIdle)

	if !strings.Contains(out.String(), "code=notify") {
		t.Fatalf("expected notify error in log, got %q", out.String())
	}
}

func TestLoggerLevelAndFormat(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := NewApp(newLogger(&out, "info", "json"), &fakeNotifier{})
	app.HypothesisObserved("p1", domain.Hypothesis{Text: "open", Kind: domain.HypothesisPartial})
	if out.Len() != 0 {
		t.Fatalf("debug events must be filtered at info, got %q", out.String())
	}

	app.ActionDispatched(domain.Dispatch{
		PassID: "p1",
		Text:   "open browser",
		Action: "xdg-open https://example.com",
		Match:  domain.MatchResult{Phrase: "open browser", Score: 1, Kind: domain.MatchExact},
	})
	if !strings.Contains(out.String(), `"phrase":"open browser"`) {
		t.Fatalf("expected json output, got %q", out.String())
	}

	if parseLevel("WARN") != slog.LevelWarn || parseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unexpected level parsing")
	}
}

type fakeNotifier struct {
	titles []string
	err    error
}

func (f *fakeNotifier) Notify(title string, _ string) error {
	f.titles = append(f.titles, title)
	return f.err
}

package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxdispatch/internal/domain"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
	if p.cfg.DialTimeout != defaultDialTimeout {
		t.Fatalf("unexpected dial timeout: %s", p.cfg.DialTimeout)
	}
}

func TestProviderNewTranscriberRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: ""})
	_, err := p.NewTranscriber(context.Background(), 16000, nil)
	if !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("expected model load error, got %v", err)
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	listenURL, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"wss://api.deepgram.com/v1/listen",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
		"interim_results=true",
	} {
		if !strings.Contains(listenURL, want) {
			t.Fatalf("expected %q in url: %s", want, listenURL)
		}
	}
	if strings.Contains(listenURL, "keywords=") {
		t.Fatalf("open vocabulary must not send keywords: %s", listenURL)
	}
}

func TestBuildListenURLWithLanguageAndSmartFormat(t *testing.T) {
	t.Parallel()

	listenURL, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en-US", SmartFormat: true},
		8000,
		nil,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(listenURL, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", listenURL)
	}
	if !strings.Contains(listenURL, "language=en-US") || !strings.Contains(listenURL, "smart_format=true") {
		t.Fatalf("expected language and smart_format in url: %s", listenURL)
	}
	if !strings.Contains(listenURL, "sample_rate=8000") {
		t.Fatalf("expected sample rate in url: %s", listenURL)
	}
}

func TestBuildListenURLGrammarBoosts(t *testing.T) {
	t.Parallel()

	grammar := []string{"open browser", "lock screen", "open terminal"}

	nova2, err := buildListenURL(Config{Model: "nova-2"}, 16000, grammar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, _ := url.Parse(nova2)
	keywords := parsed.Query()["keywords"]
	if strings.Join(keywords, ",") != "open,browser,lock,screen,terminal" {
		t.Fatalf("unexpected keywords: %v", keywords)
	}

	nova3, err := buildListenURL(Config{Model: "nova-3"}, 16000, grammar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, _ = url.Parse(nova3)
	if terms := parsed.Query()["keyterm"]; len(terms) != 3 || terms[0] != "open browser" {
		t.Fatalf("unexpected key terms: %v", terms)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, 16000, nil)
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := deepgramResponse{}
	r1.Channel.Alternatives = append(r1.Channel.Alternatives, struct {
		Transcript string "json:\"transcript\""
	}{Transcript: " channel "})
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	if got := extractTranscript(deepgramResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestStreamTranscriberApply(t *testing.T) {
	t.Parallel()

	tr := &streamTranscriber{now: time.Now}
	tr.apply(streamEvent{text: "open"})
	if tr.Partial() != "open" || tr.Result() != "" {
		t.Fatalf("unexpected interim state: %q %q", tr.Partial(), tr.Result())
	}

	tr.apply(streamEvent{text: "open", isFinal: true})
	tr.apply(streamEvent{text: "browser"})
	if tr.Partial() != "open browser" || tr.finalized {
		t.Fatalf("unexpected state after segment final: %q finalized=%t", tr.Partial(), tr.finalized)
	}

	tr.apply(streamEvent{utteranceEnd: true})
	if !tr.finalized || tr.Result() != "open" {
		t.Fatalf("utterance end must finalize collected finals: %q", tr.Result())
	}
}

func TestStreamTranscriberDiscardsFlushedResults(t *testing.T) {
	t.Parallel()

	now := time.Unix(100, 0)
	tr := &streamTranscriber{now: func() time.Time { return now }}
	tr.discarding = true
	tr.discardDeadline = now.Add(finalizeGrace)

	tr.apply(streamEvent{text: "stale"})
	tr.apply(streamEvent{text: "stale", isFinal: true, fromFinalize: true})
	if tr.Partial() != "" || tr.discarding {
		t.Fatalf("flushed results must be dropped: %q discarding=%t", tr.Partial(), tr.discarding)
	}

	tr.discarding = true
	now = now.Add(2 * finalizeGrace)
	tr.apply(streamEvent{text: "fresh"})
	if tr.Partial() != "fresh" {
		t.Fatalf("discarding must end at the deadline, got %q", tr.Partial())
	}
}

func TestStreamTranscriberSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &streamTranscriber{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}

func TestStreamTranscriberAgainstServer(t *testing.T) {
	t.Parallel()

	server := newScriptedServer(t,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"open"}]}}`,
		`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"open browser"}]}}`,
	)

	p := NewProvider(Config{APIKey: "secret", APIBaseURL: server.URL})
	tr, err := p.NewTranscriber(context.Background(), 16000, []string{"open browser"})
	if err != nil {
		t.Fatalf("new transcriber failed: %v", err)
	}
	defer tr.Close()

	if state := acceptUntilFinal(t, tr.Accept); state != domain.DecodeFinalized {
		t.Fatalf("expected finalized, got %s", state)
	}
	if tr.Result() != "open browser" {
		t.Fatalf("unexpected result: %q", tr.Result())
	}

	tr.Reset()
	if tr.Result() != "" || tr.Partial() != "" {
		t.Fatalf("reset must clear hypotheses")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestStreamTranscriberProviderError(t *testing.T) {
	t.Parallel()

	server := newScriptedServer(t, `{"type":"Error","message":"bad audio"}`)

	p := NewProvider(Config{APIKey: "secret", APIBaseURL: server.URL})
	tr, err := p.NewTranscriber(context.Background(), 16000, nil)
	if err != nil {
		t.Fatalf("new transcriber failed: %v", err)
	}
	defer tr.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := tr.Accept([]int16{1, 2, 3})
		if err != nil {
			if state != domain.DecodeFailed || !errors.Is(err, domain.ErrDecode) {
				t.Fatalf("unexpected failure: %s %v", state, err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected provider error to surface")
}

func TestProviderDialGivesUpOnStalledHandshake(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	p := NewProvider(Config{APIKey: "secret", APIBaseURL: server.URL, DialTimeout: 100 * time.Millisecond})
	started := time.Now()
	_, err := p.NewTranscriber(context.Background(), 16000, nil)
	if !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("expected model load error, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("dial was not bounded: %s", elapsed)
	}
}

func acceptUntilFinal(t *testing.T, accept func([]int16) (domain.DecodeState, error)) domain.DecodeState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := accept([]int16{1, -1})
		if err != nil {
			t.Fatalf("accept failed: %v", err)
		}
		if state == domain.DecodeFinalized {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	return domain.DecodeContinuing
}

// newScriptedServer answers each binary audio frame with the next scripted
// response, and a Finalize request with a flushed empty final.
func newScriptedServer(t *testing.T, responses ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var reply string
			switch {
			case messageType == websocket.TextMessage && strings.Contains(string(payload), "Finalize"):
				reply = `{"type":"Results","is_final":true,"from_finalize":true,"channel":{"alternatives":[{"transcript":""}]}}`
			case messageType == websocket.TextMessage:
				return
			case len(responses) > 0:
				reply, responses = responses[0], responses[1:]
			default:
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

const (
	finalizeGrace      = time.Second
	defaultDialTimeout = 10 * time.Second
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// DialTimeout bounds the websocket handshake. A mode switch waits on it.
	DialTimeout time.Duration
}

// Provider implements ports.TranscriberFactory for Deepgram live streaming.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Provider{cfg: cfg}
}

// NewTranscriber opens a live stream. The grammar is sent as keyword boosts;
// Deepgram has no hard vocabulary constraint, the matcher does the rest.
func (p *Provider) NewTranscriber(ctx context.Context, sampleRate int, grammar []string) (ports.Transcriber, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY is not configured", domain.ErrModelLoad)
	}

	wsURL, err := buildListenURL(p.cfg, sampleRate, grammar)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelLoad, err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to Deepgram websocket: %v", domain.ErrModelLoad, err)
	}

	t := newStreamTranscriber(conn)
	go t.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()
	return t, nil
}

type streamEvent struct {
	text         string
	isFinal      bool
	speechFinal  bool
	fromFinalize bool
	utteranceEnd bool
}

// streamTranscriber adapts the asynchronous Deepgram stream to the
// synchronous Accept/Partial/Result contract. Accept never blocks on the
// provider; it drains whatever arrived since the previous call.
type streamTranscriber struct {
	conn   *websocket.Conn
	events chan streamEvent
	done   chan struct{}
	now    func() time.Time

	writeMu sync.Mutex
	buf     []byte

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closing   atomic.Bool

	interim   string
	finals    []string
	finalized bool

	discarding      bool
	discardDeadline time.Time
}

func newStreamTranscriber(conn *websocket.Conn) *streamTranscriber {
	return &streamTranscriber{
		conn:   conn,
		events: make(chan streamEvent, 64),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

func (t *streamTranscriber) Accept(samples []int16) (domain.DecodeState, error) {
	if err := t.waitErr(); err != nil {
		return domain.DecodeFailed, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	select {
	case <-t.done:
		return domain.DecodeFailed, fmt.Errorf("%w: stream closed by provider", domain.ErrDecode)
	default:
	}
	if len(samples) > 0 {
		if err := t.send(websocket.BinaryMessage, encodeSamples(&t.buf, samples)); err != nil {
			t.setErr(fmt.Errorf("failed to send audio: %w", err))
			return domain.DecodeFailed, fmt.Errorf("%w: %v", domain.ErrDecode, t.waitErr())
		}
	}

	t.drain()
	if t.finalized {
		return domain.DecodeFinalized, nil
	}
	return domain.DecodeContinuing, nil
}

func (t *streamTranscriber) Partial() string {
	return strings.TrimSpace(strings.Join(append(append([]string(nil), t.finals...), t.interim), " "))
}

func (t *streamTranscriber) Result() string {
	return strings.TrimSpace(strings.Join(t.finals, " "))
}

// Reset asks Deepgram to flush the audio it holds and ignores the flushed
// results, which belong to the discarded pass.
func (t *streamTranscriber) Reset() {
	t.interim = ""
	t.finals = nil
	t.finalized = false

	if err := t.send(websocket.TextMessage, []byte(`{"type":"Finalize"}`)); err != nil {
		t.setErr(fmt.Errorf("failed to finalize stream: %w", err))
		return
	}
	t.discarding = true
	t.discardDeadline = t.now().Add(finalizeGrace)
}

func (t *streamTranscriber) Close() error {
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		_ = t.send(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = t.conn.Close()
	})
	<-t.done
	return t.waitErr()
}

func (t *streamTranscriber) drain() {
	for {
		select {
		case event := <-t.events:
			t.apply(event)
		default:
			return
		}
	}
}

func (t *streamTranscriber) apply(event streamEvent) {
	if t.discarding {
		if event.fromFinalize {
			t.discarding = false
			return
		}
		if t.now().Before(t.discardDeadline) {
			return
		}
		t.discarding = false
	}
	if t.finalized {
		return
	}

	switch {
	case event.utteranceEnd:
		t.finalized = len(t.finals) > 0
	case event.isFinal:
		if event.text != "" {
			t.finals = append(t.finals, event.text)
		}
		t.interim = ""
		t.finalized = event.speechFinal || event.fromFinalize
	default:
		t.interim = event.text
	}
}

func (t *streamTranscriber) send(messageType int, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(messageType, payload)
}

func (t *streamTranscriber) waitErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *streamTranscriber) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *streamTranscriber) readLoop() {
	defer close(t.done)

	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closing.Load() && !errors.Is(err, net.ErrClosed) {
				t.setErr(fmt.Errorf("failed to read provider event: %w", err))
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		switch {
		case strings.EqualFold(response.Type, "Error"):
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			t.setErr(errors.New(message))
			return
		case strings.EqualFold(response.Type, "UtteranceEnd"):
			t.emit(streamEvent{utteranceEnd: true})
			continue
		case response.Type != "" && !strings.EqualFold(response.Type, "Results"):
			continue
		}

		t.emit(streamEvent{
			text:         extractTranscript(response),
			isFinal:      response.IsFinal,
			speechFinal:  response.SpeechFinal,
			fromFinalize: response.FromFinalize,
		})
	}
}

func (t *streamTranscriber) emit(event streamEvent) {
	select {
	case t.events <- event:
	default:
	}
}

type deepgramResponse struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func encodeSamples(buf *[]byte, samples []int16) []byte {
	out := (*buf)[:0]
	for _, sample := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(sample))
	}
	*buf = out
	return out
}

func buildListenURL(providerCfg Config, sampleRate int, grammar []string) (string, error) {
	base := providerCfg.APIBaseURL
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if sampleRate <= 0 {
		sampleRate = 16000
	}
	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	for _, term := range grammarTerms(providerCfg.Model, grammar) {
		if strings.HasPrefix(providerCfg.Model, "nova-3") {
			query.Add("keyterm", term)
		} else {
			query.Add("keywords", term)
		}
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

// grammarTerms turns command phrases into boost terms. nova-3 accepts whole
// phrases as key terms; older models only boost single words.
func grammarTerms(model string, grammar []string) []string {
	if strings.HasPrefix(model, "nova-3") {
		return lo.Uniq(lo.Compact(grammar))
	}
	words := lo.FlatMap(grammar, func(phrase string, _ int) []string {
		return strings.Fields(phrase)
	})
	return lo.Uniq(words)
}

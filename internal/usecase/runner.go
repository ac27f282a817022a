package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"voxdispatch/internal/audio"
	"voxdispatch/internal/dispatch"
	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

const (
	minRestartBackoff = 250 * time.Millisecond
	maxRestartBackoff = 5 * time.Second
)

// KeyMatcher recognizes a configured key chord.
type KeyMatcher interface {
	Matches(event domain.KeyEvent) bool
}

// Config controls the poll loop.
type Config struct {
	Audio     ports.AudioConfig
	ChunkSize int
	Poll      time.Duration
	// Grammar is handed to the transcriber while listening for commands.
	Grammar   []string
	ToggleKey KeyMatcher
	QuitKey   KeyMatcher
}

// Runner owns the recognizer, the audio source and the state machine. All
// dispatch state is touched from the goroutine running Run.
type Runner struct {
	audio        ports.AudioCapture
	transcribers ports.TranscriberFactory
	keys         ports.KeyEventSource
	recorder     ports.PassRecorder
	machine      *dispatch.Machine
	modes        *dispatch.ModeController
	events       ports.EventSink
	cfg          Config

	now   func() time.Time
	newID func() string

	current *pass
	retryAt time.Time
	backoff time.Duration
}

func NewRunner(
	audio ports.AudioCapture,
	transcribers ports.TranscriberFactory,
	keys ports.KeyEventSource,
	recorder ports.PassRecorder,
	machine *dispatch.Machine,
	modes *dispatch.ModeController,
	events ports.EventSink,
	cfg Config,
) *Runner {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 20 * time.Millisecond
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	return &Runner{
		audio:        audio,
		transcribers: transcribers,
		keys:         keys,
		recorder:     recorder,
		machine:      machine,
		modes:        modes,
		events:       events,
		cfg:          cfg,
		now:          time.Now,
		newID:        uuid.NewString,
		backoff:      minRestartBackoff,
	}
}

// Run blocks until ctx is cancelled or the quit key is pressed. Failing to start
// the first pass is fatal; later failures are retried with backoff.
func (r *Runner) Run(ctx context.Context) error {
	var keyEvents <-chan domain.KeyEvent
	if r.keys != nil {
		ch, err := r.keys.Start(ctx)
		if err != nil {
			r.events.SessionError(domain.ErrorCodeKeys, fmt.Sprintf("keyboard input unavailable: %v", err))
		} else {
			keyEvents = ch
			defer r.keys.Close()
		}
	}

	if err := r.startPass(ctx); err != nil {
		return err
	}
	defer r.stopPass()

	ticker := time.NewTicker(r.cfg.Poll)
	defer ticker.Stop()

	for {
		var chunks <-chan []byte
		if r.current != nil {
			chunks = r.current.chunks
		}

		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-keyEvents:
			if !ok {
				keyEvents = nil
				continue
			}
			if r.handleKey(event) {
				return nil
			}

		case chunk, ok := <-chunks:
			if !ok {
				r.audioEnded()
				continue
			}
			r.feed(chunk)

		case <-ticker.C:
			now := r.now()
			r.machine.Tick(now)
			if r.current == nil && !now.Before(r.retryAt) {
				r.restart(ctx)
			}
			r.modes.BeginCycle()
		}

		r.syncGrammar(ctx)
	}
}

func (r *Runner) handleKey(event domain.KeyEvent) bool {
	now := r.now()
	switch {
	case r.cfg.QuitKey != nil && r.cfg.QuitKey.Matches(event):
		return true
	case r.cfg.ToggleKey != nil && r.cfg.ToggleKey.Matches(event):
		r.machine.HotKeyToggle(now)
	case event.Code == domain.KeyEscape && event.Modifiers == domain.ModNone:
		r.machine.ExitKey(now)
	}
	return false
}

// feed decodes one chunk and routes the recognizer's answer to the machine.
func (r *Runner) feed(chunk []byte) {
	p := r.current
	p.record(chunk, r.events)

	p.samples = p.decoder.Decode(p.samples, chunk)
	state, err := p.transcriber.Accept(p.samples)
	now := r.now()
	if err != nil {
		r.events.SessionError(domain.ErrorCodeDecode, err.Error())
		if r.machine.State() != domain.StateIdle {
			r.machine.Reset(domain.ReasonDecodeFailed, "")
		}
		r.dropPass(now)
		return
	}

	switch state {
	case domain.DecodeFinalized:
		p.tracker.Clear()
		r.machine.HandleHypothesis(domain.Hypothesis{Text: p.transcriber.Result(), Kind: domain.HypothesisFinal}, now)
		if r.machine.State() != domain.StateIdle {
			r.machine.Reset(domain.ReasonFinalized, "")
		}
	default:
		partial := p.transcriber.Partial()
		if p.tracker.Changed(partial) {
			r.machine.HandleHypothesis(domain.Hypothesis{Text: partial, Kind: domain.HypothesisPartial}, now)
		}
	}
}

func (r *Runner) audioEnded() {
	r.events.SessionError(domain.ErrorCodeAudioSource, "audio source ended; restarting")
	if r.machine.State() != domain.StateIdle {
		r.machine.Reset(domain.ReasonDecodeFailed, "")
	}
	r.dropPass(r.now())
}

// dropPass tears down the current pass and schedules a restart.
func (r *Runner) dropPass(now time.Time) {
	r.stopPass()
	r.retryAt = now.Add(r.backoff)
	r.backoff = min(r.backoff*2, maxRestartBackoff)
}

func (r *Runner) restart(ctx context.Context) {
	if err := r.startPass(ctx); err != nil {
		r.events.SessionError(errorCode(err), err.Error())
		r.retryAt = r.now().Add(r.backoff)
		r.backoff = min(r.backoff*2, maxRestartBackoff)
		return
	}
	r.backoff = minRestartBackoff
}

// syncGrammar restarts the pass when a mode switch changed the grammar the
// transcriber must use.
func (r *Runner) syncGrammar(ctx context.Context) {
	if r.current == nil || r.current.generation == r.modes.Generation() {
		return
	}
	r.stopPass()
	if err := r.startPass(ctx); err != nil {
		r.events.SessionError(errorCode(err), err.Error())
		r.retryAt = r.now().Add(r.backoff)
	}
}

func (r *Runner) startPass(ctx context.Context) error {
	var grammar []string
	if r.modes.Constrained() {
		grammar = r.cfg.Grammar
	}

	passCtx, cancel := context.WithCancel(ctx)
	transcriber, err := r.transcribers.NewTranscriber(passCtx, r.cfg.Audio.SampleRate, grammar)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create transcriber: %w", err)
	}
	session, err := r.audio.Start(passCtx, r.cfg.Audio)
	if err != nil {
		_ = transcriber.Close()
		cancel()
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	p := &pass{
		id:          r.newID(),
		cancel:      cancel,
		audio:       session,
		transcriber: transcriber,
		generation:  r.modes.Generation(),
	}
	if r.recorder != nil {
		dump, err := r.recorder.Open(p.id, r.cfg.Audio.SampleRate)
		if err != nil {
			r.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio dump disabled for this pass: %v", err))
		} else {
			p.dump = dump
		}
	}

	chunks := make(chan []byte, 8)
	p.chunks = chunks
	p.pumpDone = make(chan struct{})
	go func() {
		defer close(p.pumpDone)
		pumpAudioChunks(passCtx, session, r.cfg.ChunkSize, r.events, chunks)
	}()

	r.current = p
	r.machine.SetDecoder(transcriber)
	return nil
}

func (r *Runner) stopPass() {
	if r.current == nil {
		return
	}
	p := r.current
	r.current = nil
	r.machine.SetDecoder(nil)

	// Stop before cancel: cancelling first would SIGKILL the recorder through
	// its command context and skip the graceful interrupt.
	if err := p.audio.Stop(); err != nil {
		r.events.SessionError(domain.ErrorCodeAudioSource, fmt.Sprintf("failed to stop audio capture cleanly: %v", err))
	}
	p.cancel()
	<-p.pumpDone
	_ = p.transcriber.Close()
	if p.dump != nil {
		_ = p.dump.Close()
	}
}

func errorCode(err error) domain.ErrorCode {
	if code := domain.CodeFor(err); code != "" {
		return code
	}
	return domain.ErrorCodeAudioSource
}

// pass is one transcriber plus the audio feeding it. A pass lives until the
// grammar changes or the source dies.
type pass struct {
	id          string
	cancel      context.CancelFunc
	audio       ports.AudioSession
	transcriber ports.Transcriber
	generation  uint64

	chunks   <-chan []byte
	pumpDone chan struct{}

	decoder audio.SampleDecoder
	samples []int16
	tracker hypothesisTracker

	dump io.WriteCloser
}

func (p *pass) record(chunk []byte, events ports.EventSink) {
	if p.dump == nil {
		return
	}
	if _, err := p.dump.Write(chunk); err != nil {
		events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio dump stopped: %v", err))
		_ = p.dump.Close()
		p.dump = nil
	}
}

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

const startupProbe = 250 * time.Millisecond

// Capture streams mono s16le microphone PCM from a recorder subprocess.
// Commands named "rec" or "sox" get sox arguments, anything else ffmpeg's.
type Capture struct {
	command string
}

func NewCapture(command string) *Capture {
	if command == "" {
		command = "ffmpeg"
	}
	return &Capture{command: command}
}

func (c *Capture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, c.command, recorderArgs(c.command, withAudioDefaults(cfg))...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create recorder stdout pipe: %v", domain.ErrAudioSource, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %v", domain.ErrAudioSource, c.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%w: recorder exited before capture started: %v: %s", domain.ErrAudioSource, err, trimmed(stderr.String()))
		}
		return nil, fmt.Errorf("%w: recorder exited before capture started", domain.ErrAudioSource)
	case <-time.After(startupProbe):
	}

	return &recorderSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func withAudioDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func recorderArgs(command string, cfg ports.AudioConfig) []string {
	switch strings.ToLower(filepath.Base(command)) {
	case "rec", "sox":
		args := []string{
			"-q",
			"-r", strconv.Itoa(cfg.SampleRate),
			"-c", strconv.Itoa(cfg.Channels),
			"-b", "16",
			"-e", "signed-integer",
			"-t", "raw",
			"-",
		}
		if strings.ToLower(filepath.Base(command)) == "sox" {
			args = append([]string{"-d"}, args...)
		}
		return args
	default:
		return []string{
			"-nostdin",
			"-hide_banner",
			"-loglevel", "warning",
			"-f", cfg.InputFormat,
			"-i", cfg.InputDevice,
			"-ac", strconv.Itoa(cfg.Channels),
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-f", "s16le",
			"-",
		}
	}
}

type recorderSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *recorderSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *recorderSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder, kills it if it lingers, and closes the pipe.
func (s *recorderSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	return strings.TrimSpace(input)
}

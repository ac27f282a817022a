package executor

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

const typeQueueSize = 64

// Shell launches actions through sh -c and types text with an external
// keystroke tool such as xdotool or wtype.
type Shell struct {
	shell    string
	typeArgv []string
	events   ports.EventSink

	// reaped receives the exit error of every detached action; nil in production.
	reaped chan<- error

	mu     sync.Mutex
	closed bool
	queue  chan string
	done   chan struct{}
}

// NewShell builds an executor. typeCommand is split on whitespace and the
// text to type is appended as its final argument. Typing failures happen on
// a background worker and are reported to events.
func NewShell(shell string, typeCommand string, events ports.EventSink) *Shell {
	if strings.TrimSpace(shell) == "" {
		shell = "/bin/sh"
	}
	s := &Shell{
		shell:    shell,
		typeArgv: strings.Fields(typeCommand),
		events:   events,
		queue:    make(chan string, typeQueueSize),
		done:     make(chan struct{}),
	}
	go s.typeLoop()
	return s
}

// Run starts action without waiting for it. The process is reaped in the
// background.
func (s *Shell) Run(action string) error {
	if strings.TrimSpace(action) == "" {
		return fmt.Errorf("%w: empty action", domain.ErrActionSpawn)
	}
	cmd := exec.Command(s.shell, "-c", action)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrActionSpawn, err)
	}
	go func() {
		err := cmd.Wait()
		if s.reaped != nil {
			s.reaped <- err
		}
	}()
	return nil
}

// TypeText queues text for the typing worker and returns at once. The worker
// types one entry at a time, so consecutive deltas keep their order.
func (s *Shell) TypeText(text string) error {
	if text == "" {
		return nil
	}
	if len(s.typeArgv) == 0 {
		return errors.New("no type command configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("executor is closed")
	}
	select {
	case s.queue <- text:
		return nil
	default:
		return fmt.Errorf("typing queue full; dropped %d bytes", len(text))
	}
}

// Close stops accepting text and waits for queued text to be typed.
func (s *Shell) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *Shell) typeLoop() {
	defer close(s.done)
	for text := range s.queue {
		if err := s.typeNow(text); err != nil && s.events != nil {
			s.events.SessionError(domain.ErrorCodeTyping, fmt.Sprintf("failed to type %q: %v", text, err))
		}
	}
}

func (s *Shell) typeNow(text string) error {
	argv := append(append([]string(nil), s.typeArgv[1:]...), text)
	output, err := exec.Command(s.typeArgv[0], argv...).CombinedOutput()
	if err != nil {
		if detail := strings.TrimSpace(string(output)); detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}

package keys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"voxdispatch/internal/domain"
)

// Terminal reads key presses from a terminal put into raw mode.
type Terminal struct {
	in  *os.File
	now func() time.Time

	mu       sync.Mutex
	restore  *term.State
	closed   bool
	closeErr error
}

func NewTerminal(in *os.File) *Terminal {
	return &Terminal{in: in, now: time.Now}
}

// Start switches the terminal to raw mode and streams decoded keys until the
// input ends or ctx is cancelled.
func (t *Terminal) Start(ctx context.Context) (<-chan domain.KeyEvent, error) {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("standard input is not a terminal")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	t.mu.Lock()
	t.restore = state
	t.mu.Unlock()

	out := make(chan domain.KeyEvent, 16)
	go pump(ctx, t.in, t.now, out)
	return out, nil
}

// Close restores the terminal mode. It is safe to call more than once.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return t.closeErr
	}
	t.closed = true
	if t.restore != nil {
		t.closeErr = term.Restore(int(t.in.Fd()), t.restore)
	}
	return t.closeErr
}

const readPoll = 100 * time.Millisecond

type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// pump decodes key presses until the input ends or ctx is cancelled. Readers
// with read deadlines are polled so cancellation is noticed within readPoll.
// A blocking stdin (the usual tty case) cannot be interrupted; there the
// goroutine exits on the next byte after cancellation, or with the process.
func pump(ctx context.Context, in io.Reader, now func() time.Time, out chan<- domain.KeyEvent) {
	defer close(out)

	poller, canPoll := in.(deadlineReader)
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		if canPoll && poller.SetReadDeadline(time.Now().Add(readPoll)) != nil {
			canPoll = false
		}
		n, err := in.Read(buf)
		for _, event := range Decode(buf[:n], now()) {
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if canPoll && errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return
		}
	}
}

// CRLFWriter translates bare "\n" into "\r\n" so log lines stay aligned while
// the terminal is in raw mode.
type CRLFWriter struct {
	W io.Writer
}

func (c CRLFWriter) Write(p []byte) (int, error) {
	converted := make([]byte, 0, len(p)+8)
	for i, b := range p {
		if b == '\n' && (i == 0 || p[i-1] != '\r') {
			converted = append(converted, '\r')
		}
		converted = append(converted, b)
	}
	if _, err := c.W.Write(converted); err != nil {
		return 0, err
	}
	return len(p), nil
}

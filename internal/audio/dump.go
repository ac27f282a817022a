package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// WAVRecorder writes the audio of every decode pass to <dir>/<pass>.wav.
type WAVRecorder struct {
	fs  afero.Fs
	dir string
}

func NewWAVRecorder(fs afero.Fs, dir string) *WAVRecorder {
	return &WAVRecorder{fs: fs, dir: dir}
}

// Open creates the dump file of one pass. Writes take raw s16le bytes.
func (r *WAVRecorder) Open(passID string, sampleRate int) (io.WriteCloser, error) {
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dump directory %q: %w", r.dir, err)
	}
	file, err := r.fs.Create(filepath.Join(r.dir, passID+".wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio dump: %w", err)
	}
	return &wavWriter{
		file:   file,
		format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		enc:    wav.NewEncoder(file, sampleRate, 16, 1, 1),
	}, nil
}

type wavWriter struct {
	file    afero.File
	format  *goaudio.Format
	enc     *wav.Encoder
	decoder SampleDecoder
	samples []int16
}

func (w *wavWriter) Write(p []byte) (int, error) {
	w.samples = w.decoder.Decode(w.samples, p)
	if len(w.samples) == 0 {
		return len(p), nil
	}
	data := make([]int, len(w.samples))
	for i, sample := range w.samples {
		data[i] = int(sample)
	}
	buf := &goaudio.IntBuffer{Format: w.format, Data: data, SourceBitDepth: 16}
	if err := w.enc.Write(buf); err != nil {
		return 0, fmt.Errorf("failed to write audio dump: %w", err)
	}
	return len(p), nil
}

func (w *wavWriter) Close() error {
	return errors.Join(w.enc.Close(), w.file.Close())
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"voxdispatch/internal/domain"
	"voxdispatch/internal/ports"
)

const defaultChunkSize = 4096

// pumpAudioChunks copies PCM from the capture session into out until the
// source ends or ctx is cancelled. out is closed on return so the poll loop
// notices a dead source.
func pumpAudioChunks(
	ctx context.Context,
	audio io.Reader,
	chunkSize int,
	events ports.EventSink,
	out chan<- []byte,
) {
	defer close(out)

	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			select {
			case out <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

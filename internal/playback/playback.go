// Package playback writes streamed PCM to an audio output device.
package playback

import (
	"context"
	"fmt"
	"iter"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
)

// Sink is an open output stream. Close stops the stream and releases the
// underlying device; it is called exactly once per successful Open.
type Sink interface {
	Write(p []byte) error
	Close() error
}

// Opener acquires an output device for the given PCM format.
type Opener interface {
	Open(f audio.Format) (Sink, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(f audio.Format) (Sink, error)

func (fn OpenerFunc) Open(f audio.Format) (Sink, error) { return fn(f) }

// Discard accepts and drops all audio. Used where no device exists.
var Discard Opener = OpenerFunc(func(audio.Format) (Sink, error) { return discardSink{}, nil })

type discardSink struct{}

func (discardSink) Write([]byte) error { return nil }
func (discardSink) Close() error       { return nil }

// Play drains chunks into a sink obtained from opener. The device is
// opened on the first non-empty chunk, so an empty stream never touches
// it, and the sink is closed exactly once on every exit path. onChunk, if
// set, sees each chunk after it was written to the device; its error stops
// playback and is returned unchanged.
func Play(ctx context.Context, opener Opener, f audio.Format, chunks iter.Seq2[[]byte, error], onChunk func([]byte) error) (n int, err error) {
	var sink Sink
	defer func() {
		if sink == nil {
			return
		}
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("playback: close: %w", cerr)
		}
	}()

	for chunk, cerr := range chunks {
		if cerr != nil {
			return n, cerr
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if len(chunk) == 0 {
			continue
		}
		if sink == nil {
			s, oerr := opener.Open(f)
			if oerr != nil {
				return n, fmt.Errorf("playback: open: %w", oerr)
			}
			sink = s
		}
		if werr := sink.Write(chunk); werr != nil {
			return n, fmt.Errorf("playback: write: %w", werr)
		}
		n++
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

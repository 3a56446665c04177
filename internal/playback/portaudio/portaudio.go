// Package portaudio plays PCM on the default output device. It needs cgo
// and libportaudio, so only the CLI imports it.
package portaudio

import (
	"encoding/binary"
	"fmt"
	"math"

	pa "github.com/gordonklaus/portaudio"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/playback"
)

// DefaultFramesPerBuffer is used when Output.FramesPerBuffer is zero.
const DefaultFramesPerBuffer = 1024

// Output opens the default output device. Each Open initializes
// PortAudio and the matching Close terminates it.
type Output struct {
	FramesPerBuffer int
}

func (o Output) Open(f audio.Format) (playback.Sink, error) {
	if f.Encoding != audio.EncodingFloat32 && f.Encoding != audio.EncodingLinear16 {
		return nil, fmt.Errorf("portaudio: unsupported encoding %q", f.Encoding)
	}
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("portaudio: incomplete format %+v", f)
	}
	frames := o.FramesPerBuffer
	if frames <= 0 {
		frames = DefaultFramesPerBuffer
	}

	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	buf := make([]float32, frames*f.Channels)
	stream, err := pa.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), frames, buf)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	return &sink{stream: stream, buf: buf, encoding: f.Encoding}, nil
}

type sink struct {
	stream   *pa.Stream
	buf      []float32
	encoding string

	filled  int    // samples already copied into buf
	partial []byte // trailing bytes of an incomplete sample
}

func (s *sink) Write(p []byte) error {
	if len(s.partial) > 0 {
		p = append(s.partial, p...)
		s.partial = nil
	}
	width := 4
	if s.encoding == audio.EncodingLinear16 {
		width = 2
	}
	for len(p) >= width {
		s.buf[s.filled] = s.decode(p[:width])
		s.filled++
		p = p[width:]
		if s.filled == len(s.buf) {
			if err := s.stream.Write(); err != nil {
				return err
			}
			s.filled = 0
		}
	}
	if len(p) > 0 {
		s.partial = append([]byte(nil), p...)
	}
	return nil
}

func (s *sink) decode(b []byte) float32 {
	if s.encoding == audio.EncodingLinear16 {
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// Close pads and flushes the final buffer, stops the stream and terminates
// PortAudio. All three steps run even when an earlier one fails.
func (s *sink) Close() error {
	var firstErr error
	if s.filled > 0 {
		clear(s.buf[s.filled:])
		if err := s.stream.Write(); err != nil {
			firstErr = err
		}
		s.filled = 0
	}
	if err := s.stream.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := pa.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

package cartesia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/playback"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	DefaultVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
	DefaultModel   = "sonic-english"
	SampleRate     = 44100
)

// API is the subset of Client used by Backend.
type API interface {
	GetVoice(ctx context.Context, id string) (tts.Voice, error)
	Stream(ctx context.Context, req StreamRequest) iter.Seq2[[]byte, error]
}

// Backend plays Cartesia speech as it streams in and also writes the
// received samples to the output: as one float32 WAV by default, or chunk
// by chunk as raw PCM when streamPCM is set.
type Backend struct {
	api       API
	device    playback.Opener
	voiceID   string
	model     string
	streamPCM bool
	log       *slog.Logger
}

// NewBackend wires api to device. An empty voiceID selects DefaultVoiceID.
func NewBackend(api API, device playback.Opener, voiceID string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if device == nil {
		device = playback.Discard
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	return &Backend{api: api, device: device, voiceID: voiceID, model: DefaultModel, log: logger}
}

// NewFactory returns a tts.Factory whose backends play through device.
func NewFactory(device playback.Opener, opts ...Option) tts.Factory {
	return func(cfg tts.BackendConfig) (tts.Backend, error) {
		if cfg.Credential == "" {
			return nil, tts.NewError(tts.ProviderCartesia, tts.ReasonAuth, fmt.Errorf("api key is required"))
		}
		b := NewBackend(NewClient(cfg.Credential, opts...), device, cfg.VoiceID, cfg.Logger)
		b.streamPCM = cfg.StreamPCM
		return b, nil
	}
}

func (b *Backend) Synthesize(ctx context.Context, text string, w io.Writer) error {
	if text == "" {
		return tts.NewError(tts.ProviderCartesia, tts.ReasonInvalidRequest, tts.ErrEmptyText)
	}

	voice, err := b.api.GetVoice(ctx, b.voiceID)
	if err != nil {
		return err
	}
	b.log.Debug("cartesia voice resolved", "voice_id", voice.ID, "name", voice.Name)

	raw := b.pcmFormat()
	chunks := b.api.Stream(ctx, StreamRequest{
		ModelID:    b.model,
		Transcript: text,
		VoiceID:    b.voiceID,
		OutputFormat: OutputFormat{
			Container:  audio.ContainerRaw,
			Encoding:   audio.EncodingFloat32,
			SampleRate: SampleRate,
		},
	})

	if b.streamPCM {
		n, err := playback.Play(ctx, b.device, raw, chunks, func(chunk []byte) error {
			if _, err := w.Write(chunk); err != nil {
				return sinkError(err)
			}
			return nil
		})
		if err != nil {
			return classify(err)
		}
		b.log.Debug("cartesia stream finished", "chunks", n)
		return nil
	}

	var pcm bytes.Buffer
	n, err := playback.Play(ctx, b.device, raw, chunks, func(chunk []byte) error {
		pcm.Write(chunk)
		return nil
	})
	if err != nil {
		return classify(err)
	}
	b.log.Debug("cartesia stream finished", "chunks", n, "bytes", pcm.Len())

	if pcm.Len() == 0 {
		return nil
	}
	if err := audio.WriteWAV(w, b.Format(), pcm.Bytes()); err != nil {
		return tts.NewError(tts.ProviderCartesia, tts.ReasonIO, err)
	}
	return nil
}

func (b *Backend) Format() audio.Format {
	f := b.pcmFormat()
	if !b.streamPCM {
		f.Container = audio.ContainerWAV
	}
	return f
}

func (b *Backend) pcmFormat() audio.Format {
	return audio.Format{
		Container:  audio.ContainerRaw,
		Encoding:   audio.EncodingFloat32,
		SampleRate: SampleRate,
		Channels:   1,
		BitDepth:   32,
	}
}

// sinkError tags a failed write to the caller's writer as I/O, keeping an
// already classified error as is.
func sinkError(err error) error {
	var e *tts.Error
	if errors.As(err, &e) {
		return err
	}
	return tts.NewError(tts.ProviderCartesia, tts.ReasonIO, err)
}

func classify(err error) error {
	var e *tts.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return tts.NewError(tts.ProviderCartesia, tts.ReasonTransport, err)
	}
	return tts.NewError(tts.ProviderCartesia, tts.ReasonPlayback, err)
}

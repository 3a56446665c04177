package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	// DefaultVoice is looked up by name in the voice library.
	DefaultVoice = "Paul J."
	// DefaultModel is the low-latency English model.
	DefaultModel = "eleven_turbo_v2"
	// OutputFormat is MP3 at 22.05 kHz, 32 kbps.
	OutputFormat = "mp3_22050_32"
)

// API abstracts the ElevenLabs endpoints used by Synthesizer so tests can
// substitute a fake.
type API interface {
	Synthesize(ctx context.Context, voiceID, outputFormat string, req SynthesizeRequest) (io.ReadCloser, error)
	ResolveVoice(ctx context.Context, nameOrID string) (string, error)
}

// Synthesizer is the elevenlabs tts.Backend.
type Synthesizer struct {
	api   API
	voice string
	model string
	log   *slog.Logger
}

// NewSynthesizer returns a backend using api with the default voice and model.
func NewSynthesizer(api API, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{api: api, voice: DefaultVoice, model: DefaultModel, log: logger}
}

// Factory builds a Synthesizer from a per-request credential.
func Factory(cfg tts.BackendConfig) (tts.Backend, error) {
	if cfg.Credential == "" {
		return nil, tts.NewError(tts.ProviderElevenLabs, tts.ReasonAuth, fmt.Errorf("api key is required"))
	}
	return NewSynthesizer(NewClient(cfg.Credential), cfg.Logger), nil
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string, w io.Writer) error {
	if text == "" {
		return tts.NewError(tts.ProviderElevenLabs, tts.ReasonInvalidRequest, tts.ErrEmptyText)
	}
	voiceID, err := s.api.ResolveVoice(ctx, s.voice)
	if err != nil {
		return err
	}
	s.log.Debug("elevenlabs voice resolved", "voice", s.voice, "voice_id", voiceID)

	body, err := s.api.Synthesize(ctx, voiceID, OutputFormat, SynthesizeRequest{Text: text, ModelID: s.model})
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("elevenlabs: copy audio: %w", err)
	}
	return nil
}

func (s *Synthesizer) Format() audio.Format {
	return audio.Format{
		Container:  audio.ContainerMP3,
		Encoding:   audio.EncodingMP3,
		SampleRate: 22050,
		Channels:   1,
	}
}

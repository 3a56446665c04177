// Package openai synthesizes speech with the OpenAI audio API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	Model          = "tts-1"
	Voice          = "fable"
	ResponseFormat = "mp3"

	defaultRequestTimeout = 60 * time.Second

	// tts-1 renders MP3 at 24 kHz.
	sampleRate = 24000
)

// Backend is the openai tts.Backend.
type Backend struct {
	client openai.Client
	log    *slog.Logger
}

// New returns a backend authenticating with apiKey. Extra request options
// are appended after the defaults, so they can override the base URL or
// HTTP client.
func New(apiKey string, logger *slog.Logger, opts ...option.RequestOption) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: defaultRequestTimeout}),
	}
	reqOpts = append(reqOpts, opts...)
	return &Backend{client: openai.NewClient(reqOpts...), log: logger}
}

// Factory builds a Backend from a per-request credential.
func Factory(cfg tts.BackendConfig) (tts.Backend, error) {
	if cfg.Credential == "" {
		return nil, tts.NewError(tts.ProviderOpenAI, tts.ReasonAuth, fmt.Errorf("api key is required"))
	}
	return New(cfg.Credential, cfg.Logger), nil
}

func (b *Backend) Synthesize(ctx context.Context, text string, w io.Writer) error {
	if text == "" {
		return tts.NewError(tts.ProviderOpenAI, tts.ReasonInvalidRequest, tts.ErrEmptyText)
	}

	resp, err := b.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(Model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(ResponseFormat),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return tts.NewError(tts.ProviderOpenAI, tts.ReasonForStatus(apiErr.StatusCode),
				fmt.Errorf("API error (status %d): %w", apiErr.StatusCode, err))
		}
		return tts.NewError(tts.ProviderOpenAI, tts.ReasonTransport, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("openai: copy audio: %w", err)
	}
	b.log.Debug("openai speech received", "bytes", n, "model", Model, "voice", Voice)
	return nil
}

func (b *Backend) Format() audio.Format {
	return audio.Format{
		Container:  audio.ContainerMP3,
		Encoding:   audio.EncodingMP3,
		SampleRate: sampleRate,
		Channels:   1,
	}
}

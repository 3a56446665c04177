// Package placeholder implements the "local" provider: a deterministic
// backend that never contacts a service. It is intended for CI and for
// wiring tests where no real TTS engine is available.
package placeholder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

// Payload is written for every request, whatever the text.
var Payload = []byte("Local TTS audio data")

// Backend writes Payload.
type Backend struct {
	log *slog.Logger
}

// New returns a placeholder backend.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{log: logger}
}

// Factory adapts New to tts.Factory.
func Factory(cfg tts.BackendConfig) (tts.Backend, error) {
	return New(cfg.Logger), nil
}

func (b *Backend) Synthesize(_ context.Context, text string, w io.Writer) error {
	b.log.Debug("placeholder synthesis", "text_length", len(text), "bytes", len(Payload))
	if _, err := w.Write(Payload); err != nil {
		return fmt.Errorf("placeholder: write: %w", err)
	}
	return nil
}

func (b *Backend) Format() audio.Format {
	return audio.Format{Container: audio.ContainerRaw, Encoding: audio.EncodingUnknown}
}

// Package providers registers every synthesis backend with a dispatcher.
package providers

import (
	"log/slog"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/cartesia"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/deepgram"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/elevenlabs"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/melotts"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/openai"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/placeholder"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/playback"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

// Options control how backends are built.
type Options struct {
	Logger *slog.Logger
	// Device receives streamed audio. Nil discards it.
	Device playback.Opener
}

// Factories returns a factory for every provider in tts.Providers.
func Factories(opts Options) map[tts.ProviderID]tts.Factory {
	device := opts.Device
	if device == nil {
		device = playback.Discard
	}
	return map[tts.ProviderID]tts.Factory{
		tts.ProviderOpenAI:     openai.Factory,
		tts.ProviderDeepgram:   deepgram.Factory,
		tts.ProviderElevenLabs: elevenlabs.Factory,
		tts.ProviderCartesia:   cartesia.NewFactory(device),
		tts.ProviderMeloTTS:    melotts.Factory,
		tts.ProviderLocal:      placeholder.Factory,
	}
}

// NewDispatcher builds a dispatcher over Factories(opts).
func NewDispatcher(opts Options, dopts ...tts.Option) *tts.Dispatcher {
	return tts.NewDispatcher(opts.Logger, Factories(opts), dopts...)
}

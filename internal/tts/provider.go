// Package tts routes synthesis requests to one of the supported
// text-to-speech providers and owns the output file lifecycle.
package tts

import (
	"context"
	"io"
	"log/slog"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
)

// ProviderID identifies a synthesis backend.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderDeepgram   ProviderID = "deepgram"
	ProviderElevenLabs ProviderID = "elevenlabs"
	ProviderCartesia   ProviderID = "cartesia"
	ProviderMeloTTS    ProviderID = "melotts"
	ProviderLocal      ProviderID = "local"
)

// Providers lists every recognised identifier in display order.
var Providers = []ProviderID{
	ProviderOpenAI,
	ProviderDeepgram,
	ProviderElevenLabs,
	ProviderCartesia,
	ProviderMeloTTS,
	ProviderLocal,
}

// ParseProvider matches value exactly against the known identifiers.
func ParseProvider(value string) (ProviderID, error) {
	for _, p := range Providers {
		if string(p) == value {
			return p, nil
		}
	}
	return "", &Error{Provider: ProviderID(value), Reason: ReasonUnsupportedProvider, Err: ErrUnsupportedProvider}
}

// Hosted reports whether the provider is a remote API that needs a credential.
func (p ProviderID) Hosted() bool {
	switch p {
	case ProviderOpenAI, ProviderDeepgram, ProviderElevenLabs, ProviderCartesia:
		return true
	}
	return false
}

func (p ProviderID) String() string { return string(p) }

// Backend synthesizes text with one provider. Implementations write the
// complete audio payload to w and describe it through Format.
type Backend interface {
	Synthesize(ctx context.Context, text string, w io.Writer) error
	Format() audio.Format
}

// BackendConfig carries the per-call parameters used to build a Backend.
type BackendConfig struct {
	Credential     string
	VoiceID        string
	LocalModelPath string
	// StreamPCM asks backends that receive PCM incrementally to write it
	// unwrapped as it arrives rather than as one finished container.
	StreamPCM bool
	Logger    *slog.Logger
}

// Factory builds a Backend for a single request.
type Factory func(cfg BackendConfig) (Backend, error)

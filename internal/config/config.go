package config

import (
	"fmt"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	// DefaultListenAddr is used when the adapter runner does not inject an explicit address.
	DefaultListenAddr     = "127.0.0.1:50051"
	DefaultProvider       = string(tts.ProviderLocal)
	DefaultLogLevel       = "info"
	DefaultCacheMaxSizeMB = 100
)

// Credentials are the per-provider API keys picked up from the environment.
type Credentials struct {
	OpenAI     string `env:"OPENAI_API_KEY"`
	Deepgram   string `env:"DEEPGRAM_API_KEY"`
	ElevenLabs string `env:"ELEVENLABS_API_KEY"`
	Cartesia   string `env:"CARTESIA_API_KEY"`
}

// Config captures bootstrap configuration extracted from environment variables
// or injected JSON payload (`NUPI_ADAPTER_CONFIG`).
type Config struct {
	ListenAddr     string
	Provider       string
	APIKey         string
	VoiceID        string
	LocalModelPath string
	LogLevel       string
	MetricsAddr    string

	// Synthesis cache (optional, 0 disables)
	CacheDir       string
	CacheMaxSizeMB int

	Credentials Credentials
}

// Credential returns the key used for provider. An explicit APIKey wins
// over the provider's environment variable.
func (c Config) Credential(provider tts.ProviderID) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch provider {
	case tts.ProviderOpenAI:
		return c.Credentials.OpenAI
	case tts.ProviderDeepgram:
		return c.Credentials.Deepgram
	case tts.ProviderElevenLabs:
		return c.Credentials.ElevenLabs
	case tts.ProviderCartesia:
		return c.Credentials.Cartesia
	}
	return ""
}

// Validate applies defaults and raises an error when required fields are missing.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	provider, err := tts.ParseProvider(c.Provider)
	if err != nil {
		return fmt.Errorf("config: provider %q: %w", c.Provider, err)
	}
	if provider.Hosted() && c.Credential(provider) == "" {
		return fmt.Errorf("config: api_key is required for provider %s (set in NUPI_ADAPTER_CONFIG or the provider's environment variable)", provider)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.CacheMaxSizeMB < 0 {
		return fmt.Errorf("config: cache_max_size_mb must not be negative, got %d", c.CacheMaxSizeMB)
	}
	return nil
}

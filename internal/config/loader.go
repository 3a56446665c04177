package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// credentialKeys are the environment variables consulted for provider keys.
var credentialKeys = []string{
	"OPENAI_API_KEY",
	"DEEPGRAM_API_KEY",
	"ELEVENLABS_API_KEY",
	"CARTESIA_API_KEY",
}

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the adapter configuration from environment variables and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Config{
		ListenAddr:     DefaultListenAddr,
		CacheMaxSizeMB: DefaultCacheMaxSizeMB,
	}

	creds, err := LoadCredentials(l.Lookup)
	if err != nil {
		return Config{}, err
	}
	cfg.Credentials = creds

	if raw, ok := l.Lookup("NUPI_ADAPTER_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "NUPI_ADAPTER_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "NUPI_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "NUPI_TTS_PROVIDER", &cfg.Provider)
	overrideString(l.Lookup, "NUPI_METRICS_ADDR", &cfg.MetricsAddr)

	if cfg.CacheDir == "" {
		if dataDir, ok := l.Lookup("NUPI_ADAPTER_DATA_DIR"); ok && dataDir != "" {
			cfg.CacheDir = filepath.Join(dataDir, "cache")
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadCredentials reads the provider API keys through lookup.
func LoadCredentials(lookup func(string) (string, bool)) (Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	environment := make(map[string]string, len(credentialKeys))
	for _, key := range credentialKeys {
		if v, ok := lookup(key); ok {
			environment[key] = strings.TrimSpace(v)
		}
	}
	var creds Credentials
	if err := env.ParseWithOptions(&creds, env.Options{Environment: environment}); err != nil {
		return Credentials{}, fmt.Errorf("config: read credentials: %w", err)
	}
	return creds, nil
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr     string `json:"listen_addr"`
		Provider       string `json:"provider"`
		APIKey         string `json:"api_key"`
		VoiceID        string `json:"voice_id"`
		LocalModelPath string `json:"local_model_path"`
		LogLevel       string `json:"log_level"`
		MetricsAddr    string `json:"metrics_addr"`
		CacheDir       string `json:"cache_dir"`
		CacheMaxSizeMB *int   `json:"cache_max_size_mb"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode NUPI_ADAPTER_CONFIG: %w", err)
	}
	assign(&cfg.ListenAddr, payload.ListenAddr)
	assign(&cfg.Provider, payload.Provider)
	assign(&cfg.APIKey, payload.APIKey)
	assign(&cfg.VoiceID, payload.VoiceID)
	assign(&cfg.LocalModelPath, payload.LocalModelPath)
	assign(&cfg.LogLevel, payload.LogLevel)
	assign(&cfg.MetricsAddr, payload.MetricsAddr)
	assign(&cfg.CacheDir, payload.CacheDir)
	if payload.CacheMaxSizeMB != nil {
		cfg.CacheMaxSizeMB = *payload.CacheMaxSizeMB
	}
	return nil
}

func assign(target *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*target = v
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

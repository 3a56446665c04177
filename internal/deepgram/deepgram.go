// Package deepgram synthesizes speech with the Deepgram Aura API.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	BaseURL        = "https://api.deepgram.com/v1"
	DefaultTimeout = 60 * time.Second

	DefaultModel = "aura-arcas-en"
	Encoding     = "linear16"
	Container    = "wav"

	// Deepgram's default rate for linear16.
	sampleRate = 24000
)

// SpeakOptions selects the voice model and output encoding.
type SpeakOptions struct {
	Model     string
	Encoding  string
	Container string
}

// Client calls the Deepgram speak endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	log        *slog.Logger
}

// NewClient returns a client authenticating with apiKey.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		apiKey:     apiKey,
		baseURL:    BaseURL,
		log:        logger,
	}
}

// Factory builds a Deepgram backend from a per-request credential.
func Factory(cfg tts.BackendConfig) (tts.Backend, error) {
	if cfg.Credential == "" {
		return nil, tts.NewError(tts.ProviderDeepgram, tts.ReasonAuth, fmt.Errorf("api key is required"))
	}
	return NewClient(cfg.Credential, cfg.Logger), nil
}

// Speak requests synthesized audio and returns the response body. The
// caller must close it.
func (c *Client) Speak(ctx context.Context, text string, opts SpeakOptions) (io.ReadCloser, error) {
	if text == "" {
		return nil, tts.NewError(tts.ProviderDeepgram, tts.ReasonInvalidRequest, tts.ErrEmptyText)
	}

	q := url.Values{}
	q.Set("model", opts.Model)
	if opts.Encoding != "" {
		q.Set("encoding", opts.Encoding)
	}
	if opts.Container != "" {
		q.Set("container", opts.Container)
	}
	endpoint := c.baseURL + "/speak?" + q.Encode()

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("deepgram: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("sending speak request to Deepgram", "model", opts.Model, "text_length", len(text))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, tts.NewError(tts.ProviderDeepgram, tts.ReasonTransport, fmt.Errorf("send request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, tts.StatusError(tts.ProviderDeepgram, resp)
	}
	return resp.Body, nil
}

// Synthesize implements tts.Backend with the fixed Aura voice and a
// 16-bit WAV container.
func (c *Client) Synthesize(ctx context.Context, text string, w io.Writer) error {
	body, err := c.Speak(ctx, text, SpeakOptions{Model: DefaultModel, Encoding: Encoding, Container: Container})
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("deepgram: copy audio: %w", err)
	}
	return nil
}

func (c *Client) Format() audio.Format {
	return audio.Format{
		Container:  audio.ContainerWAV,
		Encoding:   audio.EncodingLinear16,
		SampleRate: sampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

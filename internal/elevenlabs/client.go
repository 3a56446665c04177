package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	// BaseURL is the ElevenLabs API base URL.
	BaseURL = "https://api.elevenlabs.io/v1"

	// DefaultTimeout for HTTP requests (can be overridden per-request).
	DefaultTimeout = 30 * time.Second
)

// Client wraps HTTP calls to the ElevenLabs API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient constructs an ElevenLabs API client with the provided API key.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		apiKey:  apiKey,
		baseURL: BaseURL,
	}
}

// SynthesizeRequest describes a TTS synthesis request.
type SynthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Voice is one entry of the account's voice library.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Synthesize calls the non-streaming TTS endpoint and returns the encoded
// audio body in outputFormat (e.g. "mp3_22050_32"). The caller must close
// the reader.
func (c *Client) Synthesize(ctx context.Context, voiceID, outputFormat string, req SynthesizeRequest) (io.ReadCloser, error) {
	if voiceID == "" {
		return nil, tts.NewError(tts.ProviderElevenLabs, tts.ReasonInvalidRequest, fmt.Errorf("voice_id is required"))
	}
	if req.Text == "" {
		return nil, tts.NewError(tts.ProviderElevenLabs, tts.ReasonInvalidRequest, tts.ErrEmptyText)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, url.PathEscape(voiceID))
	if outputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(outputFormat)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, tts.NewError(tts.ProviderElevenLabs, tts.ReasonTransport, fmt.Errorf("http request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, tts.StatusError(tts.ProviderElevenLabs, resp)
	}
	return resp.Body, nil
}

// ListVoices returns the voices available to the account.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, tts.NewError(tts.ProviderElevenLabs, tts.ReasonTransport, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, tts.StatusError(tts.ProviderElevenLabs, resp)
	}

	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, tts.NewError(tts.ProviderElevenLabs, tts.ReasonMalformedResponse, fmt.Errorf("decode voices: %w", err))
	}
	return payload.Voices, nil
}

// ResolveVoice turns a display name such as "Paul J." into a voice ID by
// consulting the voice library. Values that match an ID, or match nothing,
// are returned unchanged and treated as IDs.
func (c *Client) ResolveVoice(ctx context.Context, nameOrID string) (string, error) {
	voices, err := c.ListVoices(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range voices {
		if v.VoiceID == nameOrID {
			return v.VoiceID, nil
		}
	}
	for _, v := range voices {
		if strings.EqualFold(strings.TrimSpace(v.Name), strings.TrimSpace(nameOrID)) {
			return v.VoiceID, nil
		}
	}
	return nameOrID, nil
}

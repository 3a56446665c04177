// Package cartesia streams speech from the Cartesia Sonic API to the local
// audio device and exposes the Cartesia voice catalog.
package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	BaseURL      = "https://api.cartesia.ai"
	WebSocketURL = "wss://api.cartesia.ai/tts/websocket"
	APIVersion   = "2024-06-10"

	DefaultTimeout = 30 * time.Second
)

// Client talks to the Cartesia REST and WebSocket endpoints.
type Client struct {
	httpClient *http.Client
	dialer     *websocket.Dialer
	apiKey     string
	baseURL    string
	wsURL      string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the REST base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithWebSocketURL overrides the streaming endpoint.
func WithWebSocketURL(u string) Option {
	return func(c *Client) { c.wsURL = u }
}

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient returns a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		dialer:     websocket.DefaultDialer,
		apiKey:     apiKey,
		baseURL:    BaseURL,
		wsURL:      WebSocketURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type voicePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

func (v voicePayload) voice() tts.Voice {
	return tts.Voice{ID: v.ID, Name: v.Name, Language: v.Language, Description: v.Description}
}

// ListVoices fetches the voice catalog in a single call. Both the bare
// array and the paginated {"data": [...]} response shapes are accepted;
// only the first page is returned.
func (c *Client) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	raw, err := c.get(ctx, "/voices")
	if err != nil {
		return nil, err
	}

	var list []voicePayload
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Data []voicePayload `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, tts.NewError(tts.ProviderCartesia, tts.ReasonMalformedResponse, fmt.Errorf("decode voices: %w", err))
		}
		list = page.Data
	} else if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, tts.NewError(tts.ProviderCartesia, tts.ReasonMalformedResponse, fmt.Errorf("decode voices: %w", err))
	}

	voices := make([]tts.Voice, 0, len(list))
	for _, v := range list {
		voices = append(voices, v.voice())
	}
	return voices, nil
}

// GetVoice fetches a single voice. Unknown IDs fail with tts.ErrInvalidVoice.
func (c *Client) GetVoice(ctx context.Context, id string) (tts.Voice, error) {
	raw, err := c.get(ctx, "/voices/"+url.PathEscape(id))
	if err != nil {
		var e *tts.Error
		if errors.As(err, &e) && e.Reason == tts.ReasonInvalidRequest {
			return tts.Voice{}, tts.NewError(tts.ProviderCartesia, tts.ReasonInvalidRequest, fmt.Errorf("%w %q: %v", tts.ErrInvalidVoice, id, e.Err))
		}
		return tts.Voice{}, err
	}
	var v voicePayload
	if err := json.Unmarshal(raw, &v); err != nil {
		return tts.Voice{}, tts.NewError(tts.ProviderCartesia, tts.ReasonMalformedResponse, fmt.Errorf("decode voice: %w", err))
	}
	return v.voice(), nil
}

// ListVoices fetches the Cartesia voice catalog with credential.
func ListVoices(ctx context.Context, credential string) ([]tts.Voice, error) {
	return NewClient(credential).ListVoices(ctx)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("cartesia: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, tts.NewError(tts.ProviderCartesia, tts.ReasonTransport, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, tts.StatusError(tts.ProviderCartesia, resp)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, tts.NewError(tts.ProviderCartesia, tts.ReasonTransport, fmt.Errorf("read body: %w", err))
	}
	return buf.Bytes(), nil
}

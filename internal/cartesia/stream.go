package cartesia

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

// OutputFormat is the raw audio encoding requested from Cartesia.
type OutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// StreamRequest is one transcript to synthesize over the WebSocket.
type StreamRequest struct {
	ModelID      string
	Transcript   string
	VoiceID      string
	OutputFormat OutputFormat
}

type wsVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type wsRequest struct {
	ContextID    string       `json:"context_id"`
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        wsVoice      `json:"voice"`
	OutputFormat OutputFormat `json:"output_format"`
}

type wsResponse struct {
	Type       string `json:"type"`
	Data       string `json:"data"`
	Done       bool   `json:"done"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	ContextID  string `json:"context_id"`
}

// Stream opens a WebSocket session when iterated and yields decoded audio
// chunks as they arrive. Iteration ends after the server reports done, on
// the first error, or when the consumer stops early; the connection is
// closed in every case.
func (c *Client) Stream(ctx context.Context, req StreamRequest) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		q := url.Values{}
		q.Set("api_key", c.apiKey)
		q.Set("cartesia_version", APIVersion)

		conn, resp, err := c.dialer.DialContext(ctx, c.wsURL+"?"+q.Encode(), nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			reason := tts.ReasonTransport
			if resp != nil {
				reason = tts.ReasonForStatus(resp.StatusCode)
			}
			yield(nil, tts.NewError(tts.ProviderCartesia, reason, fmt.Errorf("websocket connect: %w", err)))
			return
		}
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		msg := wsRequest{
			ContextID:    uuid.NewString(),
			ModelID:      req.ModelID,
			Transcript:   req.Transcript,
			Voice:        wsVoice{Mode: "id", ID: req.VoiceID},
			OutputFormat: req.OutputFormat,
		}
		if err := conn.WriteJSON(msg); err != nil {
			yield(nil, tts.NewError(tts.ProviderCartesia, tts.ReasonTransport, fmt.Errorf("send request: %w", err)))
			return
		}

		for {
			var frame wsResponse
			if err := conn.ReadJSON(&frame); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(nil, tts.NewError(tts.ProviderCartesia, tts.ReasonTransport, ctxErr))
					return
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				reason := tts.ReasonTransport
				var syntaxErr *json.SyntaxError
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
					reason = tts.ReasonMalformedResponse
				}
				yield(nil, tts.NewError(tts.ProviderCartesia, reason, fmt.Errorf("read frame: %w", err)))
				return
			}

			switch frame.Type {
			case "error":
				reason := tts.ReasonTransport
				if frame.StatusCode > 0 {
					reason = tts.ReasonForStatus(frame.StatusCode)
				}
				yield(nil, tts.NewError(tts.ProviderCartesia, reason, errors.New(frame.Error)))
				return
			case "chunk":
				if frame.Data != "" {
					data, err := base64.StdEncoding.DecodeString(frame.Data)
					if err != nil {
						yield(nil, tts.NewError(tts.ProviderCartesia, tts.ReasonMalformedResponse, fmt.Errorf("decode chunk: %w", err)))
						return
					}
					if !yield(data, nil) {
						return
					}
				}
			}
			if frame.Done {
				return
			}
		}
	}
}

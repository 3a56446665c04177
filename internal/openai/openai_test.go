package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

func newTestBackend(srv *httptest.Server) *Backend {
	return New("sk-test", nil,
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithHTTPClient(srv.Client()),
		option.WithMaxRetries(0),
	)
}

func TestSynthesizeRequest(t *testing.T) {
	mp3 := []byte{0x49, 0x44, 0x33, 0x04}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1", body["model"])
		assert.Equal(t, "fable", body["voice"])
		assert.Equal(t, "mp3", body["response_format"])
		assert.Equal(t, "the quick brown fox", body["input"])

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(mp3)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, newTestBackend(srv).Synthesize(context.Background(), "the quick brown fox", &buf))
	assert.Equal(t, mp3, buf.Bytes())
}

func TestSynthesizeUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	err := newTestBackend(srv).Synthesize(context.Background(), "hello", io.Discard)
	require.Error(t, err)
	assert.Equal(t, tts.ReasonAuth, tts.ReasonOf(err))
}

func TestSynthesizeEmptyText(t *testing.T) {
	err := New("sk-test", nil).Synthesize(context.Background(), "", io.Discard)
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}

func TestFactory(t *testing.T) {
	_, err := Factory(tts.BackendConfig{})
	assert.Equal(t, tts.ReasonAuth, tts.ReasonOf(err))

	b, err := Factory(tts.BackendConfig{Credential: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "mp3", b.Format().Container)
}

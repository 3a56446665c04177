package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
)

type stubBackend struct {
	data   []byte
	err    error
	format audio.Format

	calls int
	text  string
}

func (s *stubBackend) Synthesize(_ context.Context, text string, w io.Writer) error {
	s.calls++
	s.text = text
	if len(s.data) > 0 {
		if _, err := w.Write(s.data); err != nil {
			return err
		}
	}
	return s.err
}

func (s *stubBackend) Format() audio.Format { return s.format }

type recordingFactory struct {
	backend *stubBackend
	err     error
	calls   int
	cfg     BackendConfig
}

func (f *recordingFactory) build(cfg BackendConfig) (Backend, error) {
	f.calls++
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return f.backend, nil
}

type observation struct {
	provider ProviderID
	reason   Reason
	bytes    int64
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveSynthesis(provider ProviderID, reason Reason, bytes int64, _ time.Duration) {
	o.seen = append(o.seen, observation{provider, reason, bytes})
}

func newLogBuffer() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestSynthesizeEachProvider(t *testing.T) {
	for _, id := range Providers {
		t.Run(string(id), func(t *testing.T) {
			factory := &recordingFactory{backend: &stubBackend{
				data:   []byte("audio-for-" + string(id)),
				format: audio.Format{Container: audio.ContainerMP3, Encoding: audio.EncodingMP3},
			}}
			d := NewDispatcher(nil, map[ProviderID]Factory{id: factory.build})

			out := filepath.Join(t.TempDir(), "speech.mp3")
			res, err := d.Synthesize(context.Background(), Request{
				Provider:       string(id),
				Credential:     "secret",
				Text:           "hello there",
				OutputPath:     out,
				LocalModelPath: "/models/melo",
				VoiceID:        "voice-7",
			})
			require.NoError(t, err)

			assert.Equal(t, 1, factory.calls)
			assert.Equal(t, "secret", factory.cfg.Credential)
			assert.Equal(t, "voice-7", factory.cfg.VoiceID)
			assert.Equal(t, "/models/melo", factory.cfg.LocalModelPath)
			assert.NotNil(t, factory.cfg.Logger)
			assert.Equal(t, "hello there", factory.backend.text)

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "audio-for-"+string(id), string(data))
			assert.Equal(t, id, res.Provider)
			assert.Equal(t, int64(len(data)), res.Bytes)
			assert.Equal(t, audio.ContainerMP3, res.Format.Container)
		})
	}
}

func TestSynthesizeUnsupportedProvider(t *testing.T) {
	logger, logs := newLogBuffer()
	factories := make(map[ProviderID]Factory)
	var built int
	for _, id := range Providers {
		factories[id] = func(BackendConfig) (Backend, error) {
			built++
			return &stubBackend{data: []byte("x")}, nil
		}
	}
	obs := &recordingObserver{}
	d := NewDispatcher(logger, factories, WithObserver(obs))

	out := filepath.Join(t.TempDir(), "out.wav")
	_, err := d.Synthesize(context.Background(), Request{
		Provider:   "nonexistent",
		Text:       "hello",
		OutputPath: out,
	})
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ReasonUnsupportedProvider, e.Reason)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
	assert.Zero(t, built, "no backend may be constructed for an unknown provider")
	assert.Contains(t, logs.String(), "unsupported model")
	assert.NoFileExists(t, out)
	require.Len(t, obs.seen, 1)
	assert.Equal(t, ReasonUnsupportedProvider, obs.seen[0].reason)
}

func TestSynthesizeProviderMatchIsExact(t *testing.T) {
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderOpenAI: func(BackendConfig) (Backend, error) { return &stubBackend{data: []byte("x")}, nil },
	})
	for _, name := range []string{"OpenAI", " openai", "openai ", ""} {
		_, err := d.Synthesize(context.Background(), Request{Provider: name, OutputPath: filepath.Join(t.TempDir(), "o")})
		assert.Equal(t, ReasonUnsupportedProvider, ReasonOf(err), "provider %q", name)
	}
}

func TestSynthesizeUnregisteredProvider(t *testing.T) {
	d := NewDispatcher(nil, nil)
	_, err := d.Synthesize(context.Background(), Request{Provider: "openai", OutputPath: filepath.Join(t.TempDir(), "o")})
	assert.Equal(t, ReasonUnsupportedProvider, ReasonOf(err))
}

func TestSynthesizeBackendFailureLeavesNoFile(t *testing.T) {
	logger, logs := newLogBuffer()
	backend := &stubBackend{
		data: []byte("partial"),
		err:  NewError(ProviderOpenAI, ReasonMalformedResponse, errors.New("truncated body")),
	}
	obs := &recordingObserver{}
	d := NewDispatcher(logger, map[ProviderID]Factory{
		ProviderOpenAI: func(BackendConfig) (Backend, error) { return backend, nil },
	}, WithObserver(obs))

	dir := t.TempDir()
	out := filepath.Join(dir, "speech.mp3")
	_, err := d.Synthesize(context.Background(), Request{Provider: "openai", Text: "hi", OutputPath: out})
	require.Error(t, err)
	assert.Equal(t, ReasonMalformedResponse, ReasonOf(err))
	assert.NoFileExists(t, out)
	assert.Contains(t, logs.String(), "failed to convert text to speech")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files must be cleaned up")

	require.Len(t, obs.seen, 1)
	assert.Equal(t, ReasonMalformedResponse, obs.seen[0].reason)
}

func TestSynthesizeUnclassifiedErrorIsTransport(t *testing.T) {
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderDeepgram: func(BackendConfig) (Backend, error) {
			return &stubBackend{err: errors.New("connection reset")}, nil
		},
	})
	_, err := d.Synthesize(context.Background(), Request{Provider: "deepgram", Text: "hi", OutputPath: filepath.Join(t.TempDir(), "o.wav")})

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ReasonTransport, e.Reason)
	assert.Equal(t, ProviderDeepgram, e.Provider)
}

func TestSynthesizeFactoryError(t *testing.T) {
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderCartesia: func(BackendConfig) (Backend, error) {
			return nil, NewError(ProviderCartesia, ReasonAuth, errors.New("missing api key"))
		},
	})
	_, err := d.Synthesize(context.Background(), Request{Provider: "cartesia", Text: "hi", OutputPath: filepath.Join(t.TempDir(), "o.wav")})
	assert.Equal(t, ReasonAuth, ReasonOf(err))
}

func TestSynthesizeUnwritableOutput(t *testing.T) {
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderLocal: func(BackendConfig) (Backend, error) { return &stubBackend{data: []byte("x")}, nil },
	})
	out := filepath.Join(t.TempDir(), "missing-dir", "speech.bin")
	_, err := d.Synthesize(context.Background(), Request{Provider: "local", OutputPath: out})

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ReasonIO, e.Reason)
	assert.Equal(t, ProviderLocal, e.Provider)
}

func TestSynthesizeRequiresOutputPath(t *testing.T) {
	backend := &stubBackend{data: []byte("x")}
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderLocal: func(BackendConfig) (Backend, error) { return backend, nil },
	})
	_, err := d.Synthesize(context.Background(), Request{Provider: "local"})
	assert.Equal(t, ReasonInvalidRequest, ReasonOf(err))
	assert.ErrorIs(t, err, ErrOutputPath)
	assert.Zero(t, backend.calls)
}

func TestSynthesizeEmptyAudioCreatesNoFile(t *testing.T) {
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderCartesia: func(BackendConfig) (Backend, error) { return &stubBackend{}, nil },
	})
	dir := t.TempDir()
	out := filepath.Join(dir, "stream.wav")
	res, err := d.Synthesize(context.Background(), Request{Provider: "cartesia", Text: "hi", OutputPath: out})
	require.NoError(t, err)
	assert.Zero(t, res.Bytes)
	assert.NoFileExists(t, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSynthesizeTo(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderLocal: func(BackendConfig) (Backend, error) { return &stubBackend{data: []byte("abc")}, nil },
	}, WithObserver(obs))

	var buf bytes.Buffer
	res, err := d.SynthesizeTo(context.Background(), Request{Provider: "local", Text: "ignored"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", buf.String())
	assert.Equal(t, int64(3), res.Bytes)
	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{ProviderLocal, "", 3}, obs.seen[0])
}

func TestFormatDoesNotSynthesize(t *testing.T) {
	stub := &stubBackend{format: audio.Format{Container: audio.ContainerWAV, SampleRate: 8000}}
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderDeepgram: func(BackendConfig) (Backend, error) { return stub, nil },
	})

	f, err := d.Format(Request{Provider: "deepgram"})
	require.NoError(t, err)
	assert.Equal(t, 8000, f.SampleRate)
	assert.Zero(t, stub.calls)

	_, err = d.Format(Request{Provider: "espeak"})
	assert.Equal(t, ReasonUnsupportedProvider, ReasonOf(err))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSynthesizeToSinkFailureIsIO(t *testing.T) {
	d := NewDispatcher(nil, map[ProviderID]Factory{
		ProviderLocal: func(BackendConfig) (Backend, error) { return &stubBackend{data: []byte("abc")}, nil },
	})
	_, err := d.SynthesizeTo(context.Background(), Request{Provider: "local"}, failingWriter{})
	assert.Equal(t, ReasonIO, ReasonOf(err))
	assert.True(t, strings.Contains(err.Error(), "disk full"))
}

// copyingBackend wraps sink failures with its own context, as the hosted
// backends do around io.Copy.
type copyingBackend struct{ stubBackend }

func (b *copyingBackend) Synthesize(_ context.Context, _ string, w io.Writer) error {
	if _, err := io.Copy(w, strings.NewReader("abc")); err != nil {
		return fmt.Errorf("openai: copy audio: %w", err)
	}
	return nil
}

func TestSynthesizeToKeepsBackendContext(t *testing.T) {
	logger, logs := newLogBuffer()
	d := NewDispatcher(logger, map[ProviderID]Factory{
		ProviderOpenAI: func(BackendConfig) (Backend, error) { return &copyingBackend{}, nil },
	})
	_, err := d.SynthesizeTo(context.Background(), Request{Provider: "openai", Text: "hi"}, failingWriter{})

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ProviderOpenAI, e.Provider)
	assert.Equal(t, ReasonIO, e.Reason)
	assert.Contains(t, err.Error(), "copy audio")
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, logs.String(), "copy audio")
}

func TestSynthesizeQuietlyNeverFails(t *testing.T) {
	logger, logs := newLogBuffer()
	d := NewDispatcher(logger, nil)
	assert.NotPanics(t, func() {
		d.SynthesizeQuietly(context.Background(), Request{Provider: "nonexistent", Text: "hi"})
	})
	assert.Contains(t, logs.String(), "unsupported model")
}

func TestParseProvider(t *testing.T) {
	for _, id := range Providers {
		got, err := ParseProvider(string(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
	_, err := ParseProvider("festival")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	assert.True(t, ProviderCartesia.Hosted())
	assert.False(t, ProviderMeloTTS.Hosted())
	assert.False(t, ProviderLocal.Hosted())
}

func TestReasonForStatus(t *testing.T) {
	assert.Equal(t, ReasonAuth, ReasonForStatus(401))
	assert.Equal(t, ReasonAuth, ReasonForStatus(403))
	assert.Equal(t, ReasonInvalidRequest, ReasonForStatus(404))
	assert.Equal(t, ReasonTransport, ReasonForStatus(429))
	assert.Equal(t, ReasonTransport, ReasonForStatus(503))
	assert.Equal(t, Reason(""), ReasonOf(nil))
}

package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
)

// Request is a single synthesis call.
type Request struct {
	Provider       string
	Credential     string
	Text           string
	OutputPath     string
	LocalModelPath string
	VoiceID        string
	StreamPCM      bool
}

// Result describes a successful synthesis.
type Result struct {
	Provider   ProviderID
	OutputPath string
	Bytes      int64
	Format     audio.Format
	Elapsed    time.Duration
}

// Observer receives one notification per dispatched request. reason is
// empty on success.
type Observer interface {
	ObserveSynthesis(provider ProviderID, reason Reason, bytes int64, elapsed time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// Dispatcher selects a backend per request and runs it. It holds no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	log       *slog.Logger
	factories map[ProviderID]Factory
	observer  Observer
}

// NewDispatcher returns a Dispatcher serving the providers in factories.
func NewDispatcher(logger *slog.Logger, factories map[ProviderID]Factory, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		log:       logger.With("component", "dispatcher"),
		factories: make(map[ProviderID]Factory, len(factories)),
	}
	for id, f := range factories {
		d.factories[id] = f
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Synthesize converts req.Text to audio and stores it at req.OutputPath.
// Audio is staged in a temporary file next to the destination and renamed
// into place on success, so a failed call never leaves a partial file. A
// backend that produces no audio leaves no file behind either.
//
// Every failure is logged once and returned as *Error; callers decide
// whether it is fatal.
func (d *Dispatcher) Synthesize(ctx context.Context, req Request) (Result, error) {
	return d.run(ctx, req, func(id ProviderID, b Backend) (int64, error) {
		if req.OutputPath == "" {
			return 0, NewError(id, ReasonInvalidRequest, ErrOutputPath)
		}
		return writeFile(ctx, b, req.Text, req.OutputPath)
	})
}

// SynthesizeTo runs the selected backend and streams its audio into w.
// req.OutputPath is ignored.
func (d *Dispatcher) SynthesizeTo(ctx context.Context, req Request, w io.Writer) (Result, error) {
	return d.run(ctx, req, func(_ ProviderID, b Backend) (int64, error) {
		cw := &countingWriter{w: w}
		err := b.Synthesize(ctx, req.Text, cw)
		return cw.n, err
	})
}

// Format reports the audio format req's backend would produce without
// running it.
func (d *Dispatcher) Format(req Request) (audio.Format, error) {
	_, b, err := d.backend(req)
	if err != nil {
		return audio.Format{}, err
	}
	return b.Format(), nil
}

// SynthesizeQuietly is Synthesize for callers that must keep going no
// matter what: failures are logged and dropped.
func (d *Dispatcher) SynthesizeQuietly(ctx context.Context, req Request) {
	_, _ = d.Synthesize(ctx, req)
}

func (d *Dispatcher) run(ctx context.Context, req Request, write func(ProviderID, Backend) (int64, error)) (Result, error) {
	start := time.Now()
	log := d.log.With("provider", req.Provider, "text_length", len(req.Text))

	id, backend, err := d.backend(req)
	if err != nil {
		return Result{Provider: id}, d.fail(log, id, start, 0, err)
	}

	res := Result{
		Provider:   id,
		OutputPath: req.OutputPath,
		Format:     backend.Format(),
	}
	n, err := write(id, backend)
	res.Bytes = n
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, d.fail(log, id, start, n, err)
	}

	log.Info("synthesis completed",
		"bytes", n,
		"output", req.OutputPath,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	if d.observer != nil {
		d.observer.ObserveSynthesis(id, "", n, res.Elapsed)
	}
	return res, nil
}

func (d *Dispatcher) backend(req Request) (ProviderID, Backend, error) {
	id, err := ParseProvider(req.Provider)
	if err != nil {
		return id, nil, err
	}
	factory, ok := d.factories[id]
	if !ok {
		return id, nil, NewError(id, ReasonUnsupportedProvider, ErrUnsupportedProvider)
	}
	backend, err := factory(BackendConfig{
		Credential:     req.Credential,
		VoiceID:        req.VoiceID,
		LocalModelPath: req.LocalModelPath,
		StreamPCM:      req.StreamPCM,
		Logger:         d.log.With("provider", string(id)),
	})
	if err != nil {
		return id, nil, err
	}
	return id, backend, nil
}

func (d *Dispatcher) fail(log *slog.Logger, id ProviderID, start time.Time, n int64, err error) error {
	var e *Error
	if errors.As(err, &e) {
		provider, cause := e.Provider, e.Err
		if provider == "" {
			provider = id
		}
		if e != err {
			// A backend wrapped the classified error; keep its context.
			cause = err
		}
		e = &Error{Provider: provider, Reason: e.Reason, Err: cause}
	} else {
		e = &Error{Provider: id, Reason: ReasonTransport, Err: err}
	}

	if e.Reason == ReasonUnsupportedProvider {
		log.Error("unsupported model", "error", e)
	} else {
		log.Error("failed to convert text to speech", "reason", string(e.Reason), "error", e)
	}
	if d.observer != nil {
		d.observer.ObserveSynthesis(id, e.Reason, n, time.Since(start))
	}
	return e
}

func writeFile(ctx context.Context, b Backend, text, path string) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, NewError("", ReasonIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := b.Synthesize(ctx, text, cw); err != nil {
		return cw.n, err
	}
	if err := tmp.Close(); err != nil {
		return cw.n, NewError("", ReasonIO, err)
	}
	if cw.n == 0 {
		return 0, nil
	}
	if err := os.Rename(tmpName, path); err != nil {
		return cw.n, NewError("", ReasonIO, err)
	}
	committed = true
	return cw.n, nil
}

// countingWriter tags sink failures as I/O errors so they are not confused
// with provider failures.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, NewError("", ReasonIO, err)
	}
	return n, nil
}

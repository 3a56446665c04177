// Package melotts renders speech with a locally installed MeloTTS.
package melotts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const (
	DefaultCommand = "melo"
	Language       = "EN"
	Speaker        = "EN-US"
	SampleRate     = 44100
)

// Runner executes name with args and returns combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Backend shells out to the melo CLI and streams the produced WAV to the
// caller's writer.
type Backend struct {
	command string
	run     Runner
	log     *slog.Logger
}

// New returns a backend running command, or DefaultCommand when empty.
func New(command string, logger *slog.Logger) *Backend {
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{command: command, run: execRunner, log: logger}
}

// Factory builds a Backend honouring cfg.LocalModelPath. No credential is
// needed.
func Factory(cfg tts.BackendConfig) (tts.Backend, error) {
	return New(cfg.LocalModelPath, cfg.Logger), nil
}

func (b *Backend) Synthesize(ctx context.Context, text string, w io.Writer) error {
	if strings.TrimSpace(text) == "" {
		return tts.NewError(tts.ProviderMeloTTS, tts.ReasonInvalidRequest, tts.ErrEmptyText)
	}

	dir, err := os.MkdirTemp("", "melotts-*")
	if err != nil {
		return tts.NewError(tts.ProviderMeloTTS, tts.ReasonIO, fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "speech.wav")
	// Options go first; "--" keeps text such as "-hello" from being read as a flag.
	output, err := b.run(ctx, b.command, "--language", Language, "--speaker", Speaker, "--", text, out)
	if err != nil {
		b.log.Debug("melotts failed", "command", b.command, "output", string(bytes.TrimSpace(output)))
		if ctx.Err() != nil {
			return tts.NewError(tts.ProviderMeloTTS, tts.ReasonTransport, ctx.Err())
		}
		return tts.NewError(tts.ProviderMeloTTS, tts.ReasonIO, fmt.Errorf("run %s: %w", b.command, err))
	}

	f, err := os.Open(out)
	if err != nil {
		return tts.NewError(tts.ProviderMeloTTS, tts.ReasonMalformedResponse, fmt.Errorf("%s produced no audio: %w", b.command, err))
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("melotts: copy audio: %w", err)
	}
	return nil
}

func (b *Backend) Format() audio.Format {
	return audio.Format{
		Container:  audio.ContainerWAV,
		Encoding:   audio.EncodingLinear16,
		SampleRate: SampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

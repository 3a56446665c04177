// Command jarvis-tts converts text to speech with one of the supported
// providers and browses the Cartesia voice catalog.
package main

import (
	"context"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/cartesia"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/playback"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/playback/portaudio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

// app carries the process dependencies the commands need, so tests can
// swap them.
type app struct {
	lookup     func(string) (string, bool)
	device     playback.Opener
	listVoices func(ctx context.Context, credential string) ([]tts.Voice, error)
	stderr     io.Writer
}

func defaultApp() *app {
	return &app{
		lookup:     os.LookupEnv,
		device:     portaudio.Output{},
		listVoices: cartesia.ListVoices,
		stderr:     os.Stderr,
	}
}

func newRootCmd(a *app) *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "jarvis-tts",
		Short:        "Text-to-speech across OpenAI, Deepgram, ElevenLabs, Cartesia, MeloTTS and a local placeholder",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newSynthesizeCmd(a, &logLevel))
	root.AddCommand(newVoicesCmd(a))
	return root
}

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := newRootCmd(defaultApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/config"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/logging"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/providers"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

type synthesizeOptions struct {
	provider   string
	text       string
	output     string
	apiKey     string
	voice      string
	localModel string
}

func newSynthesizeCmd(a *app, logLevel *string) *cobra.Command {
	var opts synthesizeOptions
	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Convert text to speech and save it to a file",
		Long: `Synthesize converts --text with the chosen --provider and writes the
audio to --output. Hosted providers read their key from --api-key or from
OPENAI_API_KEY, DEEPGRAM_API_KEY, ELEVENLABS_API_KEY or CARTESIA_API_KEY.
The cartesia provider also plays the audio on the default output device
while it streams.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynthesize(cmd, a, *logLevel, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.provider, "provider", "p", config.DefaultProvider,
		"provider: "+providerList())
	flags.StringVarP(&opts.text, "text", "t", "", "text to speak")
	flags.StringVarP(&opts.output, "output", "o", "", "output file path")
	flags.StringVar(&opts.apiKey, "api-key", "", "provider API key (overrides the environment)")
	flags.StringVar(&opts.voice, "voice", "", "voice ID (cartesia only)")
	flags.StringVar(&opts.localModel, "local-model", "", "path to the MeloTTS executable")
	cmd.MarkFlagRequired("text")
	cmd.MarkFlagRequired("output")
	return cmd
}

func runSynthesize(cmd *cobra.Command, a *app, logLevel string, opts synthesizeOptions) error {
	creds, err := config.LoadCredentials(a.lookup)
	if err != nil {
		return err
	}
	cfg := config.Config{APIKey: opts.apiKey, Credentials: creds}

	logger := logging.New(a.stderr, logLevel)
	dispatcher := providers.NewDispatcher(providers.Options{Logger: logger, Device: a.device})

	res, err := dispatcher.Synthesize(cmd.Context(), tts.Request{
		Provider:       opts.provider,
		Credential:     cfg.Credential(tts.ProviderID(opts.provider)),
		Text:           opts.text,
		OutputPath:     opts.output,
		LocalModelPath: opts.localModel,
		VoiceID:        opts.voice,
	})
	if err != nil {
		return err
	}

	if res.Bytes == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s produced no audio; %s was not written\n", res.Provider, opts.output)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes of %s audio to %s\n", res.Bytes, res.Provider, res.OutputPath)
	return nil
}

func providerList() string {
	names := make([]string, len(tts.Providers))
	for i, p := range tts.Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

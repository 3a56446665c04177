package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/config"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

func newVoicesCmd(a *app) *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "Browse the Cartesia voice catalog",
	}
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Cartesia API key (default $CARTESIA_API_KEY)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List available Cartesia voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			voices, err := fetchVoices(cmd, a, apiKey)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLANGUAGE")
			for _, v := range voices {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Name, v.Language)
			}
			return w.Flush()
		},
	}

	sel := &cobra.Command{
		Use:   "select",
		Short: "Pick a Cartesia voice interactively and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			voices, err := fetchVoices(cmd, a, apiKey)
			if err != nil {
				return err
			}
			id, err := tts.SelectVoice(cmd.InOrStdin(), cmd.OutOrStdout(), voices)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.AddCommand(list, sel)
	return cmd
}

func fetchVoices(cmd *cobra.Command, a *app, apiKey string) ([]tts.Voice, error) {
	if apiKey == "" {
		creds, err := config.LoadCredentials(a.lookup)
		if err != nil {
			return nil, err
		}
		apiKey = creds.Cartesia
	}
	if apiKey == "" {
		return nil, errors.New("a Cartesia API key is required (--api-key or CARTESIA_API_KEY)")
	}
	return a.listVoices(cmd.Context(), apiKey)
}

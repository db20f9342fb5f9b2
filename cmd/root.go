package cmd

import (
	"github.com/spf13/cobra"
	"pitch-recorder/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pitch-recorder",
		Short: "record slide narration and queue it for evaluation",
	}
	rootCmd.AddCommand(server(config), announce(config))
	return rootCmd
}

package cmd

import (
	"github.com/spf13/cobra"
	"pitch-recorder/config"
	server2 "pitch-recorder/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start the recording API and upload queue",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}

package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"pitch-recorder/cmd"
	"pitch-recorder/config"
)

func main() {
	path, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := cmd.Root(cfg).Execute(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

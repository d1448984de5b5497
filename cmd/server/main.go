package main

import (
	"github.com/rs/zerolog/log"

	"homepage-aggregator/internal/app/server"
	"homepage-aggregator/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)

	server.Run(cfg)
}

package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/filely/filely/cmd/filely"
	"github.com/filely/filely/pkg/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *configFile).Msg("Unable to load config file")
	}

	storageServices, err := filely.GetStorageServices(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to set up storage")
	}

	filely.Run(conf, storageServices)
}

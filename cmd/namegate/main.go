package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/namegate/internal/app"
	"github.com/danmuck/namegate/internal/env"
	"github.com/danmuck/namegate/internal/logging"
	"github.com/danmuck/namegate/internal/observability"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "cmd/namegate/config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to namegate config.toml")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("namegate")

	environment, err := env.Load(*envFile)
	if err != nil {
		fail(fmt.Errorf("load env: %w", err))
	}

	cfg := app.DefaultServiceConfig()
	if _, statErr := os.Stat(*configPath); statErr == nil {
		if cfg, err = loadServiceConfig(*configPath); err != nil {
			fail(err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) || *configPath != defaultConfigPath {
		fail(fmt.Errorf("config %s: %w", *configPath, statErr))
	} else {
		log.Warn().Str("path", *configPath).Msg("config_missing_using_defaults")
	}
	cfg.Env = environment

	svc, err := app.NewService(cfg)
	if err != nil {
		fail(err)
	}
	if err := svc.Run(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "namegate: %v\n", err)
	os.Exit(1)
}

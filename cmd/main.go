package main

import (
	"context"
	"os"

	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	if err := config.ApplyEnv(".env"); err != nil {
		logger.Warn("failed to load environment file", "error", err)
	}

	if err := shared.ConfigureLogger(logger, os.Stderr, config.Log); err != nil {
		logger.Fatalf("application error: %v", err)
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "wavecrawl",
		Usage:    "Crawl playlist videos into track lists on a schedule",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

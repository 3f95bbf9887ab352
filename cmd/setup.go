package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/wavecrawl/internal/models"
	"github.com/desertthunder/wavecrawl/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes config.toml from the template when missing, then connects the configured store and migrates it.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
		} else {
			if err := config.ApplyEnv(".env"); err != nil {
				r.logger.Warn("failed to load environment file", "error", err)
			}
			r.config = config
		}
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	r.logger.Info("initializing job store", "driver", r.config.Database.Driver)

	if r.config.Database.Driver == shared.DriverSupabase {
		r.logger.Warn("supabase tables are managed by the project; apply the postgres migrations there")
	}

	store, closeStore, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := pingStore(ctx, store); err != nil {
		return err
	}

	switch r.config.Database.Driver {
	case shared.DriverPostgres:
		r.logger.Info("setup complete for postgres database")
	case shared.DriverSupabase:
		r.logger.Infof("setup complete for supabase project: %v", r.config.Supabase.URL)
	default:
		r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	}
	return nil
}

// pingStore issues a small read so an unreachable store fails at startup instead of on the first pass.
func pingStore(ctx context.Context, store Store) error {
	if _, err := store.ListJobs(ctx, models.StatusProcessing); err != nil {
		return fmt.Errorf("job store unreachable: %w", err)
	}
	return nil
}

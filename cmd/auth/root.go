package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskhub_auth/internal/config"
	"github.com/Skotchmaster/taskhub_auth/internal/db"
	"github.com/Skotchmaster/taskhub_auth/internal/logging"
)

const dbInitTimeout = 10 * time.Second

var envFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "auth",
		Short:         "Authentication and token lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewSeedAdminCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig validates everything when full is set, only the database otherwise.
func loadConfig(full bool) (config.Config, *slog.Logger, error) {
	cfg := config.Load(envFile)

	validate := cfg.ValidateDatabase
	if full {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openDB(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	initCtx, cancel := context.WithTimeout(ctx, dbInitTimeout)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}
	return gdb, nil
}

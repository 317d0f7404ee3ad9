package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/abnerjacobsen/das-sankhya/internal/config"
	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/metrics"
	"github.com/abnerjacobsen/das-sankhya/internal/server"
	"github.com/abnerjacobsen/das-sankhya/internal/tracing"
)

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "address to bind, overrides the configuration",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "port to bind, overrides the configuration",
		},
	}
}

// createCommands returns the subcommands
func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "serve",
			Usage: "run the service with production settings",
			Flags: serveFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return serve(ctx, cfg, cmd.Bool("verbose"))
			},
		},
		{
			Name:  "devserve",
			Usage: "run the service for local development (debug level, text logs)",
			Flags: serveFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				applyDevDefaults(cfg)
				return serve(ctx, cfg, true)
			},
		},
	}
}

// loadConfig loads the configuration and applies command line overrides
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Server.HTTPPort = int(port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyDevDefaults switches cfg to development settings
func applyDevDefaults(cfg *config.Config) {
	cfg.Server.Debug = true
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stdout"
}

// serve sets up logging, metrics and tracing, then runs the server until ctx is done
func serve(ctx context.Context, cfg *config.Config, verbose bool) error {
	closeLog, err := setupLogger(cfg, verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	log := logger.Get().WithComponent("main")
	log.Info("starting das-sankhya", logger.Fields{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"addr":       cfg.Server.Addr(),
		"debug":      cfg.Server.Debug,
	})

	if cfg.Observability.MetricsEnabled {
		metrics.Init()
	}

	if err := tracing.Init(tracing.FromConfig(cfg)); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		_ = tracing.Shutdown(context.Background())
	}()

	if err := server.New(cfg).Start(ctx); err != nil {
		log.Error("server error", logger.Fields{
			"error": err.Error(),
		})
		return err
	}

	log.Info("das-sankhya stopped")
	return nil
}

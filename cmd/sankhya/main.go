// Command sankhya runs the das-sankhya HTTP service.
//
// Usage:
//
//	sankhya [--verbose] [--config FILE] serve     production defaults, JSON logs
//	sankhya [--verbose] [--config FILE] devserve  debug level, text logs
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// Build information, set with -ldflags "-X main.Version=..."
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// createApp creates the CLI root command
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "sankhya",
		Usage:   "das-sankhya HTTP service",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable verbose logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML or JSON configuration file",
				Sources: cli.EnvVars("SANKHYA_CONFIG"),
			},
		},
		Commands: createCommands(),
	}
}

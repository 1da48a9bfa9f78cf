package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/nifx/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(defaultConfigPath); err == nil {
		loaded, err := shared.LoadConfig(defaultConfigPath)
		if err != nil {
			logger.Fatalf("failed to load %s: %v", defaultConfigPath, err)
		}
		config = loaded
	}

	if lvl, err := shared.ParseLogLevel(config.Logging.Level); err == nil {
		shared.SetLogLevel(logger, lvl)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: defaultConfigPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "nifx",
		Usage:    "Organize DICOM archives into NIfTI volumes",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		logger.Fatalf("application error: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/nifx/internal/formatter"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/desertthunder/nifx/internal/tasks"
	"github.com/desertthunder/nifx/internal/ui"
	"github.com/urfave/cli/v3"
)

// organizeSettings are the config values after command-line overrides.
type organizeSettings struct {
	config  *shared.Config
	timeout time.Duration
	level   log.Level
}

// resolveOrganize applies --nprocs, --rate, --unit-timeout and --log-level on top of base.
func resolveOrganize(base *shared.Config, cmd *cli.Command) (*organizeSettings, error) {
	config := *base
	if cmd.IsSet("nprocs") {
		config.Dispatch.Workers = cmd.Int("nprocs")
	}
	if cmd.IsSet("rate") {
		config.Dispatch.RateLimit = cmd.Float("rate")
	}
	if cmd.IsSet("log-level") {
		config.Logging.Level = cmd.String("log-level")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Dispatch.UnitTimeout()
	if cmd.IsSet("unit-timeout") {
		timeout = cmd.Duration("unit-timeout")
		if timeout < 0 {
			return nil, fmt.Errorf("%w: --unit-timeout must not be negative", shared.ErrInvalidFlag)
		}
	}

	level, err := shared.ParseLogLevel(config.Logging.Level)
	if err != nil {
		return nil, err
	}
	return &organizeSettings{config: &config, timeout: timeout, level: level}, nil
}

// Organize runs one full pass over the input tree and prints the summary.
//
// Only configuration errors and an unreadable input root fail the command;
// skipped units are reported in the summary and the optional report file.
func (r *Runner) Organize(ctx context.Context, cmd *cli.Command) error {
	base, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	settings, err := resolveOrganize(base, cmd)
	if err != nil {
		return err
	}

	reportPath := cmd.String("report")
	reportFormat := cmd.String("report-format")
	if reportPath != "" {
		if _, err := formatter.FormatForPath(reportFormat, reportPath); err != nil {
			return err
		}
	}

	opts := tasks.RunOpts{
		InputRoot:    cmd.String("input"),
		OutputRoot:   cmd.String("output"),
		Workers:      settings.config.Dispatch.Workers,
		SkipSanitize: cmd.Bool("skip-sanitize"),
	}

	var result *tasks.RunResult
	var runErr error
	if cmd.Bool("tui") {
		result, runErr = r.organizeTUI(ctx, settings, opts, cmd.Bool("no-ledger"))
	} else {
		shared.SetLogLevel(r.logger, settings.level)
		db := r.openLedger(settings.config, cmd.Bool("no-ledger"))
		if db != nil {
			defer db.Close()
		}
		engine := r.newEngine(settings.config, settings.timeout, db, r.logger)
		result, runErr = r.organizePlain(ctx, engine, opts)
	}

	if result == nil {
		if runErr != nil {
			return runErr
		}
		r.logger.Warn("run abandoned before completion")
		return nil
	}
	r.writePlain("%s", ui.RenderSummary(result))

	if reportPath != "" {
		if err := formatter.WriteRunReport(result, reportFormat, reportPath); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		r.logger.Info("report written", "path", reportPath)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			r.logger.Warn("run cancelled", "error", runErr)
			return nil
		}
		return runErr
	}
	return nil
}

// organizePlain runs engine while draining progress into the log.
func (r *Runner) organizePlain(ctx context.Context, engine *tasks.Engine, opts tasks.RunOpts) (*tasks.RunResult, error) {
	progress := make(chan tasks.ProgressUpdate, 64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progress {
			r.logProgress(update)
		}
	}()

	result, err := engine.Run(ctx, progress, opts)
	close(progress)
	<-drained
	return result, err
}

// logProgress writes phase changes at info level. Per-unit lines are logged by the engine itself.
func (r *Runner) logProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Process:
		r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
	default:
		r.logger.Info(update.Message, "phase", update.Phase)
	}
}

// organizeTUI runs the engine under the progress view, logging to the configured file.
//
// Leaving the view early still waits for the units already running, so the
// result is nil only when the program could not start.
func (r *Runner) organizeTUI(ctx context.Context, settings *organizeSettings, opts tasks.RunOpts, noLedger bool) (*tasks.RunResult, error) {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(settings.config.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()
	shared.SetLogLevel(fileLogger, settings.level)
	r.SetLogger(fileLogger)

	db := r.openLedger(settings.config, noLedger)
	if db != nil {
		defer db.Close()
	}
	engine := r.newEngine(settings.config, settings.timeout, db, fileLogger)

	model := ui.NewModel(ctx, engine, opts)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		model.Wait()
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	if result, _ := model.Result(); result == nil {
		r.writePlainln("Waiting for running units to finish...")
	}
	return model.Wait()
}

package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nifx/internal/locator"
	"github.com/desertthunder/nifx/internal/repositories"
	"github.com/desertthunder/nifx/internal/sanitizer"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/desertthunder/nifx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		organizeCommand, scanCommand, sanitizeCommand, setupCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent actions.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadConfig returns the startup config unless --config names another file.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if !cmd.IsSet("config") {
		return r.config, nil
	}
	path := cmd.String("config")
	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidConfig, path, err)
	}
	return config, nil
}

// openLedger opens the run database, or returns a nil handle when disabled.
//
// An unavailable ledger is logged and the run continues without it.
func (r *Runner) openLedger(config *shared.Config, disabled bool) *sql.DB {
	if disabled {
		r.logger.Debug("ledger disabled")
		return nil
	}
	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		r.logger.Warn("ledger unavailable, continuing without it", "path", config.Database.Path, "error", err)
		return nil
	}
	return db
}

// newEngine wires the locator, pipeline, sanitizer and optional ledger repositories.
func (r *Runner) newEngine(config *shared.Config, timeout time.Duration, db *sql.DB, logger *log.Logger) *tasks.Engine {
	pipeline := tasks.NewPipeline(tasks.PipelineOpts{
		Layout:  config.Layout,
		Logger:  logger,
		Timeout: timeout,
	})
	opts := tasks.EngineOpts{
		Locator:   locator.New(locator.OptionsFromConfig(config.Layout), logger),
		Pipeline:  pipeline,
		Sanitizer: sanitizer.New(sanitizer.OptionsFromConfig(config.Sanitize), logger),
		Logger:    logger,
		RateLimit: config.Dispatch.RateLimit,
	}
	if db != nil {
		opts.Runs = repositories.NewRunRepository(db)
		opts.Outcomes = repositories.NewOutcomeRepository(db)
	}
	return tasks.NewEngine(opts)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/sanitizer"
	"github.com/desertthunder/nifx/internal/shared"
	"golang.org/x/time/rate"
)

// UnitLocator discovers the units of an input tree.
type UnitLocator interface {
	Locate(inputRoot, outputRoot string) ([]models.Unit, error)
}

// Processor runs the pipeline for a single unit.
type Processor interface {
	Process(ctx context.Context, u models.Unit) models.Outcome
}

// TreeSanitizer sweeps a finished output tree.
type TreeSanitizer interface {
	Sweep(root string) sanitizer.Report
}

// RunRecorder persists run headers (repositories.RunRepository).
type RunRecorder interface {
	Create(run *models.Run) error
	Complete(run *models.Run) error
}

// OutcomeRecorder persists per-unit outcomes (repositories.OutcomeRepository).
type OutcomeRecorder interface {
	Record(runID string, o models.Outcome) error
}

// EngineOpts contains the collaborators of an [Engine]. Runs and Outcomes are optional.
type EngineOpts struct {
	Locator   UnitLocator
	Pipeline  Processor
	Sanitizer TreeSanitizer
	Runs      RunRecorder
	Outcomes  OutcomeRecorder
	Logger    *log.Logger
	RateLimit float64 // units started per second; zero disables pacing
}

// RunOpts describes one organize run.
type RunOpts struct {
	InputRoot    string
	OutputRoot   string
	Workers      int
	SkipSanitize bool
}

// RunResult contains everything a run produced.
type RunResult struct {
	Run      *models.Run
	Outcomes []models.Outcome // sorted by unit key
	Summary  models.Summary
	Sweep    *sanitizer.Report // nil when sanitizing was skipped
}

// Engine wires locate, dispatch and sanitize into a run.
type Engine struct {
	locator   UnitLocator
	pipeline  Processor
	sanitizer TreeSanitizer
	runs      RunRecorder
	outcomes  OutcomeRecorder
	logger    *log.Logger
	limiter   *rate.Limiter
}

// NewEngine creates an Engine from opts.
func NewEngine(opts EngineOpts) *Engine {
	e := &Engine{
		locator:   opts.Locator,
		pipeline:  opts.Pipeline,
		sanitizer: opts.Sanitizer,
		runs:      opts.Runs,
		outcomes:  opts.Outcomes,
		logger:    opts.Logger,
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if opts.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

// Run locates units, dispatches them, waits for every worker and then sanitizes the output tree.
//
// The only error before dispatch is a locate failure (unreadable input root). Unit failures are
// reported as outcomes, and ledger failures are logged. If ctx is cancelled the units already
// started still finish, the sweep still runs and the cancellation is returned with the result.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error) {
	if e.locator == nil || e.pipeline == nil {
		return nil, fmt.Errorf("%w: engine requires a locator and a pipeline", shared.ErrInvalidConfig)
	}

	e.sendProgress(progress, locatingUpdate(opts.InputRoot))
	units, err := e.locator.Locate(opts.InputRoot, opts.OutputRoot)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, locatedUpdate(units))
	e.logger.Info("located units", "input", opts.InputRoot, "units", len(units), "workers", opts.Workers)

	workers := max(opts.Workers, 1)
	run := &models.Run{
		ID:         shared.GenerateID(),
		InputRoot:  opts.InputRoot,
		OutputRoot: opts.OutputRoot,
		Workers:    workers,
		Total:      len(units),
		StartedAt:  time.Now().UTC(),
	}
	runID := e.beginRun(run)

	result := &RunResult{Run: run}
	result.Outcomes = e.dispatch(ctx, units, workers, progress, runID)
	models.SortOutcomes(result.Outcomes)
	result.Summary = models.Summarize(result.Outcomes)

	if opts.SkipSanitize || e.sanitizer == nil {
		e.logger.Info("skipping sanitize", "output", opts.OutputRoot)
	} else {
		e.sendProgress(progress, sanitizingUpdate(opts.OutputRoot))
		report := e.sanitizer.Sweep(opts.OutputRoot)
		result.Sweep = &report
		e.sendProgress(progress, sanitizedUpdate(report))
	}

	completedAt := time.Now().UTC()
	run.Completed = result.Summary.Completed
	run.Skipped = result.Summary.Skipped
	run.CompletedAt = &completedAt
	if runID != "" {
		if err := e.runs.Complete(run); err != nil {
			e.logger.Warn("failed to complete run record", "run", runID, "error", err)
		}
	}

	e.sendProgress(progress, doneUpdate(result.Summary))
	e.logger.Info("run finished",
		"run", run.ID, "completed", run.Completed, "skipped", run.Skipped, "duration", completedAt.Sub(run.StartedAt))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("run interrupted after %d of %d units: %w", len(result.Outcomes), len(units), err)
	}
	return result, nil
}

// beginRun records the run header and returns the id to record outcomes under,
// or "" when there is no ledger or it could not be written.
func (e *Engine) beginRun(run *models.Run) string {
	if e.runs == nil {
		return ""
	}
	if err := e.runs.Create(run); err != nil {
		e.logger.Warn("failed to record run, continuing without ledger", "error", err)
		return ""
	}
	return run.ID
}

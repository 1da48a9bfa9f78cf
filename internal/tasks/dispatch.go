package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/shared"
)

// Dispatch runs the pipeline once per unit and returns one outcome per started unit.
//
// With workers <= 1 units run sequentially in list order and outcomes keep that order.
// Otherwise a pool of workers reads from a shared jobs channel, so each unit reaches exactly
// one worker, and outcomes arrive in completion order. Outcomes never change control flow.
// Once ctx is cancelled no new unit is started; running units finish. Dispatch returns
// only after every worker has exited.
func (e *Engine) Dispatch(ctx context.Context, units []models.Unit, workers int, progress chan<- ProgressUpdate) []models.Outcome {
	return e.dispatch(ctx, units, workers, progress, "")
}

func (e *Engine) dispatch(ctx context.Context, units []models.Unit, workers int, progress chan<- ProgressUpdate, runID string) []models.Outcome {
	if workers <= 1 {
		return e.dispatchSequential(ctx, units, progress, runID)
	}
	if workers > len(units) {
		workers = len(units)
	}

	jobs := make(chan models.Unit)
	results := make(chan models.Outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, u := range units {
			if err := e.waitTurn(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- u:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]models.Outcome, 0, len(units))
	for o := range results {
		outcomes = append(outcomes, o)
		e.observe(runID, len(outcomes), len(units), o, progress)
	}
	return outcomes
}

func (e *Engine) dispatchSequential(ctx context.Context, units []models.Unit, progress chan<- ProgressUpdate, runID string) []models.Outcome {
	outcomes := make([]models.Outcome, 0, len(units))
	for _, u := range units {
		if err := e.waitTurn(ctx); err != nil {
			break
		}
		o := e.pipeline.Process(ctx, u)
		outcomes = append(outcomes, o)
		e.observe(runID, len(outcomes), len(units), o, progress)
	}
	return outcomes
}

// worker processes units from the jobs channel until it is closed.
func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan models.Unit, results chan<- models.Outcome) {
	defer wg.Done()

	for u := range jobs {
		select {
		case <-ctx.Done():
			continue
		default:
		}
		results <- e.pipeline.Process(ctx, u)
	}
}

// waitTurn blocks until the start-rate limiter admits another unit, or ctx is done.
func (e *Engine) waitTurn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

// observe logs, reports and records one outcome. It runs only on the collecting goroutine.
func (e *Engine) observe(runID string, step, total int, o models.Outcome, progress chan<- ProgressUpdate) {
	logger := shared.WithLogger(e.logger, "unit", o.Unit.Key())
	switch {
	case o.Skipped():
		logger.Warn("unit skipped", "outcome", o.Kind, "stage", o.Stage, "error", o.Err)
	case o.Degraded():
		logger.Warn("unit completed with warnings", "warnings", len(o.Warnings), "duration", o.Duration)
	default:
		logger.Info("unit completed", "duration", o.Duration)
	}

	e.sendProgress(progress, outcomeUpdate(step, total, o))

	if e.outcomes == nil || runID == "" {
		return
	}
	if err := e.outcomes.Record(runID, o); err != nil {
		logger.Warn("failed to record outcome", "run", runID, "error", err)
	}
}

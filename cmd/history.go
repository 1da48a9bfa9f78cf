package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/repositories"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a ledger run.
type runView struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	InputRoot   string     `json:"input_root"`
	OutputRoot  string     `json:"output_root"`
	Workers     int        `json:"workers"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Skipped     int        `json:"skipped"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// outcomeView is the JSON shape of a recorded unit outcome.
type outcomeView struct {
	Unit       string `json:"unit"`
	Outcome    string `json:"outcome"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
	Warnings   int    `json:"warnings"`
	DurationMS int64  `json:"duration_ms"`
}

func newRunView(run *models.Run) runView {
	return runView{
		ID:          run.ID,
		Sequence:    run.Sequence,
		InputRoot:   run.InputRoot,
		OutputRoot:  run.OutputRoot,
		Workers:     run.Workers,
		Total:       run.Total,
		Completed:   run.Completed,
		Skipped:     run.Skipped,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}

func newOutcomeView(rec *models.OutcomeRecord) outcomeView {
	unit := models.Unit{GroupID: rec.GroupID, DateKey: rec.DateKey, UnitID: rec.UnitID}
	return outcomeView{
		Unit:       unit.Key(),
		Outcome:    rec.Kind.String(),
		Stage:      rec.Stage,
		Error:      rec.Error,
		Warnings:   rec.Warnings,
		DurationMS: rec.DurationMS,
	}
}

// HistoryRuns lists the most recent runs in the ledger.
func (r *Runner) HistoryRuns(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded in %s\n", config.Database.Path)
		return nil
	}

	r.writePlainHeader("Runs")
	for _, run := range runs {
		status := "unfinished"
		if run.Finished() {
			status = fmt.Sprintf("%d/%d completed, %d skipped", run.Completed, run.Total, run.Skipped)
		}
		r.writePlain("#%-4d %s  %s  %s\n", run.Sequence, run.StartedAt.Local().Format(time.DateTime), run.ID, status)
		r.writePlain("      %s → %s\n", run.InputRoot, run.OutputRoot)
	}
	return nil
}

// HistoryShow prints one run and its recorded outcomes. --run accepts a run ID or a sequence number.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := shared.OpenLedger(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := findRun(repositories.NewRunRepository(db), cmd.String("run"))
	if err != nil {
		return err
	}

	outcomes := repositories.NewOutcomeRepository(db)
	records, err := outcomes.ListByRun(run.ID)
	if err != nil {
		return err
	}

	showAll := cmd.Bool("all")
	var views []outcomeView
	for _, rec := range records {
		if !showAll && rec.Kind == models.Completed && rec.Warnings == 0 {
			continue
		}
		views = append(views, newOutcomeView(rec))
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Run      runView       `json:"run"`
			Outcomes []outcomeView `json:"outcomes"`
		}{newRunView(run), views}, true)
	}

	counts, err := outcomes.CountByKind(run.ID)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d (%s)", run.Sequence, run.ID))
	r.writePlain("Input:   %s\n", run.InputRoot)
	r.writePlain("Output:  %s\n", run.OutputRoot)
	r.writePlain("Workers: %d\n", run.Workers)
	r.writePlain("Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.Finished() {
		r.writePlain("Took:    %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
	}

	r.writePlainln("Outcomes (%d recorded):", len(records))
	for _, kind := range models.OutcomeKinds {
		if n := counts[kind]; n > 0 {
			r.writePlain("  %-28s %d\n", kind, n)
		}
	}

	if len(views) > 0 {
		r.writePlain("\n")
	}
	for _, v := range views {
		line := fmt.Sprintf("  %s  %s", v.Unit, v.Outcome)
		if v.Stage != "" && v.Outcome != models.Completed.String() {
			line += " at " + v.Stage
		}
		if v.Error != "" {
			line += ": " + v.Error
		}
		if v.Warnings > 0 {
			line += fmt.Sprintf(" (%d warnings)", v.Warnings)
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

// findRun resolves a run ID, falling back to a sequence number when the value is numeric.
func findRun(runs *repositories.RunRepository, ref string) (*models.Run, error) {
	if seq, err := strconv.Atoi(ref); err == nil {
		return runs.GetBySequence(seq)
	}
	return runs.Get(ref)
}

package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/shared"
)

// RunRepository persists [models.Run] headers.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with the next sequence number, generating an ID when it has none.
//
// The sequence is allocated in the same transaction as the insert.
func (r *RunRepository) Create(run *models.Run) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "runs")
	if err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}

	query := `
		INSERT INTO runs (id, sequence, input_root, output_root, workers, total, completed, skipped, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		run.ID,
		sequence,
		run.InputRoot,
		run.OutputRoot,
		run.Workers,
		run.Total,
		run.Completed,
		run.Skipped,
		run.StartedAt,
		nullTime(run),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	run.Sequence = sequence
	return nil
}

// Complete stores the final counts and completion time of a run.
func (r *RunRepository) Complete(run *models.Run) error {
	query := `
		UPDATE runs
		SET total = ?, completed = ?, skipped = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, run.Total, run.Completed, run.Skipped, nullTime(run), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, sequence, input_root, output_root, workers, total, completed, skipped, started_at, completed_at
		FROM runs
		WHERE id = ?
	`
	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// GetBySequence retrieves a run by its sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.Run, error) {
	query := `
		SELECT id, sequence, input_root, output_root, workers, total, completed, skipped, started_at, completed_at
		FROM runs
		WHERE sequence = ?
	`
	run, err := scanRun(r.db.QueryRow(query, sequence))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: #%d", shared.ErrRunNotFound, sequence)
	}
	return run, err
}

// List returns the most recent runs first. A non-positive limit returns every run.
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, sequence, input_root, output_root, workers, total, completed, skipped, started_at, completed_at
		FROM runs
		ORDER BY sequence DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		run         models.Run
		completedAt sql.NullTime
	)
	err := s.Scan(
		&run.ID,
		&run.Sequence,
		&run.InputRoot,
		&run.OutputRoot,
		&run.Workers,
		&run.Total,
		&run.Completed,
		&run.Skipped,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func nullTime(run *models.Run) sql.NullTime {
	if run.CompletedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *run.CompletedAt, Valid: true}
}

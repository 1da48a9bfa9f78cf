package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/nifx/internal/models"
)

// OutcomeRepository persists per-unit outcomes of a run.
type OutcomeRepository struct {
	db *sql.DB
}

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Record inserts one outcome for runID. The run must already exist.
func (r *OutcomeRepository) Record(runID string, o models.Outcome) error {
	var errorMessage any
	if o.Err != nil {
		errorMessage = o.Err.Error()
	}

	query := `
		INSERT INTO unit_outcomes (run_id, group_id, date_key, unit_id, outcome, stage, error_message, warnings, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		runID,
		o.Unit.GroupID,
		o.Unit.DateKey,
		o.Unit.UnitID,
		o.Kind.String(),
		o.Stage.String(),
		errorMessage,
		len(o.Warnings),
		o.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome for %s: %w", o.Unit.Key(), err)
	}
	return nil
}

// ListByRun returns the outcomes of a run ordered by group, date and unit id.
func (r *OutcomeRepository) ListByRun(runID string) ([]*models.OutcomeRecord, error) {
	query := `
		SELECT id, run_id, group_id, date_key, unit_id, outcome, stage, error_message, warnings, duration_ms, created_at
		FROM unit_outcomes
		WHERE run_id = ?
		ORDER BY group_id, date_key, unit_id
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var records []*models.OutcomeRecord
	for rows.Next() {
		var (
			rec          models.OutcomeRecord
			kind         string
			stage        sql.NullString
			errorMessage sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.GroupID,
			&rec.DateKey,
			&rec.UnitID,
			&kind,
			&stage,
			&errorMessage,
			&rec.Warnings,
			&rec.DurationMS,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		if rec.Kind, err = models.ParseOutcomeKind(kind); err != nil {
			return nil, fmt.Errorf("outcome %d: %w", rec.ID, err)
		}
		rec.Stage = stage.String
		rec.Error = errorMessage.String
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// CountByKind tallies a run's recorded outcomes by kind.
func (r *OutcomeRepository) CountByKind(runID string) (map[models.OutcomeKind]int, error) {
	rows, err := r.db.Query("SELECT outcome, COUNT(*) FROM unit_outcomes WHERE run_id = ? GROUP BY outcome", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.OutcomeKind]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		k, err := models.ParseOutcomeKind(kind)
		if err != nil {
			return nil, err
		}
		counts[k] = count
	}
	return counts, rows.Err()
}

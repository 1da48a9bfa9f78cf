// package formatter writes run reports in JSON or CSV format
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/sanitizer"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/desertthunder/nifx/internal/tasks"
)

// Report formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// CSVHeaders are the columns of a CSV run report, one row per unit.
var CSVHeaders = []string{"group", "date", "unit", "outcome", "stage", "error", "warnings", "duration_ms"}

// RunReport is the serializable form of a [tasks.RunResult].
type RunReport struct {
	RunID       string            `json:"run_id"`
	Sequence    int               `json:"sequence,omitempty"`
	InputRoot   string            `json:"input_root"`
	OutputRoot  string            `json:"output_root"`
	Workers     int               `json:"workers"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Summary     SummaryReport     `json:"summary"`
	Sweep       *sanitizer.Report `json:"sweep,omitempty"`
	Units       []UnitReport      `json:"units"`
}

// SummaryReport holds run totals with outcome kinds as strings.
type SummaryReport struct {
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Skipped   int            `json:"skipped"`
	Degraded  int            `json:"degraded"`
	ByKind    map[string]int `json:"by_kind"`
}

// UnitReport is one unit's outcome.
type UnitReport struct {
	Group      string   `json:"group"`
	Date       string   `json:"date"`
	Unit       string   `json:"unit"`
	Outcome    string   `json:"outcome"`
	Stage      string   `json:"stage,omitempty"`
	Error      string   `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// NewRunReport converts a run result into a report.
func NewRunReport(result *tasks.RunResult) *RunReport {
	r := &RunReport{
		Summary: SummaryReport{
			Total:     result.Summary.Total,
			Completed: result.Summary.Completed,
			Skipped:   result.Summary.Skipped,
			Degraded:  result.Summary.Degraded,
			ByKind:    make(map[string]int, len(result.Summary.ByKind)),
		},
		Sweep: result.Sweep,
		Units: make([]UnitReport, 0, len(result.Outcomes)),
	}
	if run := result.Run; run != nil {
		r.RunID = run.ID
		r.Sequence = run.Sequence
		r.InputRoot = run.InputRoot
		r.OutputRoot = run.OutputRoot
		r.Workers = run.Workers
		r.StartedAt = run.StartedAt
		r.CompletedAt = run.CompletedAt
	}
	for kind, n := range result.Summary.ByKind {
		r.Summary.ByKind[kind.String()] = n
	}
	for _, o := range result.Outcomes {
		r.Units = append(r.Units, newUnitReport(o))
	}
	return r
}

func newUnitReport(o models.Outcome) UnitReport {
	u := UnitReport{
		Group:      o.Unit.GroupID,
		Date:       o.Unit.DateKey,
		Unit:       o.Unit.UnitID,
		Outcome:    o.Kind.String(),
		Warnings:   o.Warnings,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Skipped() {
		u.Stage = o.Stage.String()
	}
	if o.Err != nil {
		u.Error = o.Err.Error()
	}
	return u
}

// ToJSON encodes the report as indented JSON.
func ToJSON(r *RunReport) ([]byte, error) {
	return shared.MarshalJSON(r, true)
}

// ToCSV encodes one row per unit with [CSVHeaders] as the header row.
func ToCSV(r *RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(CSVHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, u := range r.Units {
		record := []string{
			u.Group,
			u.Date,
			u.Unit,
			u.Outcome,
			u.Stage,
			u.Error,
			strconv.Itoa(len(u.Warnings)),
			strconv.FormatInt(u.DurationMS, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// FormatForPath returns format when set, otherwise infers it from the file extension (default JSON).
func FormatForPath(format, path string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case "":
		if shared.HasSuffixFold(path, ".csv") {
			return FormatCSV, nil
		}
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: report format %q (want json or csv)", shared.ErrInvalidFlag, format)
	}
}

// WriteRunReport writes the report for result to path, creating parent directories.
func WriteRunReport(result *tasks.RunResult, format, path string) error {
	format, err := FormatForPath(format, path)
	if err != nil {
		return err
	}

	report := NewRunReport(result)
	var data []byte
	switch format {
	case FormatCSV:
		data, err = ToCSV(report)
	default:
		data, err = ToJSON(report)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

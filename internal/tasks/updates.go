package tasks

import (
	"fmt"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/sanitizer"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data: []models.Unit, models.Outcome or sanitizer.Report
}

// Operation phase enumeration
type Phase int

const (
	Locate Phase = iota
	Process
	Sanitize
	Done
)

func (p Phase) String() string {
	switch p {
	case Locate:
		return "locate"
	case Process:
		return "process"
	case Sanitize:
		return "sanitize"
	case Done:
		return "done"
	default:
		return ""
	}
}

func locatingUpdate(root string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Locate,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Scanning %s for units...", root),
	}
}

func locatedUpdate(units []models.Unit) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Locate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d units", len(units)),
		Data:    units,
	}
}

func outcomeUpdate(step, total int, o models.Outcome) ProgressUpdate {
	mark := "✓"
	if o.Skipped() {
		mark = "✗"
	} else if o.Degraded() {
		mark = "!"
	}
	msg := fmt.Sprintf("[%d/%d] %s %s", step, total, mark, o.Unit.Key())
	if o.Skipped() {
		msg = fmt.Sprintf("%s: %s", msg, o.Kind)
	}
	return ProgressUpdate{
		Phase:   Process,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    o,
	}
}

func sanitizingUpdate(root string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sanitize,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Sanitizing %s...", root),
	}
}

func sanitizedUpdate(r sanitizer.Report) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sanitize,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d files and %d directories (%d failures)", r.FilesRemoved, r.DirsRemoved, r.Failures),
		Data:    r,
	}
}

func doneUpdate(s models.Summary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    s.Total,
		Total:   s.Total,
		Message: fmt.Sprintf("%d completed, %d skipped", s.Completed, s.Skipped),
		Data:    s,
	}
}

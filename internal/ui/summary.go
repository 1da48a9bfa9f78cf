package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/tasks"
)

// RenderSummary renders the end-of-run report: completed versus skipped units with reasons,
// followed by one line per skipped or degraded unit.
func RenderSummary(result *tasks.RunResult) string {
	if result == nil {
		return styles.err.Render("No result available")
	}

	var b strings.Builder
	s := result.Summary

	title := "✓ Run Complete"
	if result.Run != nil && result.Run.Sequence > 0 {
		title = fmt.Sprintf("%s (run #%d)", title, result.Run.Sequence)
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")

	b.WriteString(styles.ok.Render(fmt.Sprintf("Completed: %d/%d", s.Completed, s.Total)))
	if s.Degraded > 0 {
		b.WriteString(styles.warn.Render(fmt.Sprintf(" (%d with warnings)", s.Degraded)))
	}
	b.WriteString("\n")

	if s.Skipped > 0 {
		b.WriteString(styles.err.Render(fmt.Sprintf("Skipped: %d", s.Skipped)))
		b.WriteString("\n")
		for _, kind := range models.OutcomeKinds {
			if kind == models.Completed || s.ByKind[kind] == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("  %-28s %d\n", kind, s.ByKind[kind]))
		}
	}

	if sweep := result.Sweep; sweep != nil {
		line := fmt.Sprintf("Sanitized: %d files, %d directories removed", sweep.FilesRemoved, sweep.DirsRemoved)
		if sweep.Failures > 0 {
			b.WriteString(styles.warn.Render(fmt.Sprintf("%s, %d failures", line, sweep.Failures)))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	var details []string
	for _, item := range attentionItems(result.Outcomes) {
		o := item.(outcomeItem)
		bullet := "!"
		if o.outcome.Skipped() {
			bullet = "✗"
		}
		bullet = styles.outcome(o.outcome).Render(bullet)
		details = append(details, fmt.Sprintf("  %s %s: %s", bullet, o.Title(), o.Description()))
	}
	if len(details) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(details, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

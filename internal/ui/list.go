package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/nifx/internal/models"
)

var (
	_ list.Item = outcomeItem{}
)

// outcomeItem wraps [models.Outcome] to implement [list.Item].
type outcomeItem struct {
	outcome models.Outcome
}

func (i outcomeItem) FilterValue() string { return i.outcome.Unit.Key() }
func (i outcomeItem) Title() string       { return i.outcome.Unit.Key() }
func (i outcomeItem) Description() string {
	o := i.outcome
	switch {
	case o.Skipped():
		desc := fmt.Sprintf("%s at %s", o.Kind, o.Stage)
		if o.Err != nil {
			desc = fmt.Sprintf("%s • %v", desc, o.Err)
		}
		return desc
	case o.Degraded():
		return fmt.Sprintf("completed with %d warnings • %s", len(o.Warnings), o.Warnings[0])
	default:
		return fmt.Sprintf("completed in %s", o.Duration.Round(time.Millisecond))
	}
}

// attentionItems lists skipped units first, then degraded ones. Clean completions are left out.
func attentionItems(outcomes []models.Outcome) []list.Item {
	var skipped, degraded []list.Item
	for _, o := range outcomes {
		switch {
		case o.Skipped():
			skipped = append(skipped, outcomeItem{outcome: o})
		case o.Degraded():
			degraded = append(degraded, outcomeItem{outcome: o})
		}
	}
	return append(skipped, degraded...)
}

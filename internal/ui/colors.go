package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/nifx/internal/models"
)

var styles = newPalette(paletteColors{
	title: "#7D56F4",
	ok:    "#04B575",
	err:   "#FF5F87",
	warn:  "#FFA500",
	muted: "#626262",
})

// paletteColors are the hex foregrounds a [palette] is built from.
type paletteColors struct {
	title, ok, err, warn, muted string
}

// palette holds the named [lipgloss.Style] values used by the run and result views.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette(c paletteColors) *palette {
	fg := func(hex string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
	}
	return &palette{
		title: fg(c.title).Bold(true).MarginBottom(1),
		ok:    fg(c.ok).Bold(true),
		err:   fg(c.err).Bold(true),
		warn:  fg(c.warn),
		help:  fg(c.muted).Italic(true),
	}
}

// outcome picks the style for an outcome: ok when clean, warn when degraded, err when skipped.
func (p *palette) outcome(o models.Outcome) lipgloss.Style {
	switch {
	case o.Skipped():
		return p.err
	case o.Degraded():
		return p.warn
	default:
		return p.ok
	}
}

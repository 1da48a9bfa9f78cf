package main

import (
	"context"

	"github.com/desertthunder/nifx/internal/locator"
	"github.com/desertthunder/nifx/internal/models"
	"github.com/urfave/cli/v3"
)

// scanEntry is the JSON shape of one located unit.
type scanEntry struct {
	Group   string `json:"group"`
	Date    string `json:"date"`
	Unit    string `json:"unit"`
	Archive string `json:"archive"`
	Sidecar string `json:"sidecar"`
}

// Scan lists the units of an input tree without creating any output.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	input := cmd.String("input")
	units, err := locator.New(locator.OptionsFromConfig(config.Layout), r.logger).Locate(input, "")
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(newScanEntries(units, config.Layout.ArchiveExt, config.Layout.SidecarExt), cmd.Bool("pretty"))
	}

	r.writePlainHeader("Units")
	if len(units) == 0 {
		r.writePlain("No units found under %s\n", input)
		return nil
	}

	byGroup := map[string]int{}
	for _, u := range units {
		byGroup[u.GroupID]++
		r.writePlain("  %s\n", u.Key())
	}
	r.writePlainln("%d units in %d groups", len(units), len(byGroup))
	return nil
}

func newScanEntries(units []models.Unit, archiveExt, sidecarExt string) []scanEntry {
	entries := make([]scanEntry, 0, len(units))
	for _, u := range units {
		entries = append(entries, scanEntry{
			Group:   u.GroupID,
			Date:    u.DateKey,
			Unit:    u.UnitID,
			Archive: u.ArchivePath(archiveExt),
			Sidecar: u.SidecarPath(sidecarExt),
		})
	}
	return entries
}

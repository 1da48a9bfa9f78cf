// Package locator discovers processing units in a group/date input tree.
//
// A unit is an archive and a metadata sidecar that share a stem inside
// input_root/<group>/<date>/. Only reads are performed.
package locator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/shared"
)

// Options configures the naming conventions the locator accepts.
type Options struct {
	GroupPrefixes []string // recognized group folder prefixes
	DateLayout    string   // Go time layout for date folders
	ArchiveExt    string
	SidecarExt    string
}

// OptionsFromConfig maps the layout section of the config onto [Options].
func OptionsFromConfig(c shared.LayoutConfig) Options {
	return Options{
		GroupPrefixes: c.GroupPrefixes,
		DateLayout:    c.DateLayout,
		ArchiveExt:    c.ArchiveExt,
		SidecarExt:    c.SidecarExt,
	}
}

// Locator scans an input tree for units.
type Locator struct {
	opts   Options
	logger *log.Logger
}

// New creates a Locator. A nil logger discards notices.
func New(opts Options, logger *log.Logger) *Locator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Locator{opts: opts, logger: logger}
}

// Locate returns one [models.Unit] per stem that has both an archive and a sidecar,
// sorted by group, date and unit id.
//
// Only an unreadable root is an error. Unrecognized group names and unparsable date
// names are skipped with a notice; unreadable subdirectories are skipped with a warning.
func (l *Locator) Locate(inputRoot, outputRoot string) ([]models.Unit, error) {
	groups, err := os.ReadDir(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrUnreadableInput, inputRoot, err)
	}

	var units []models.Unit
	for _, g := range groups {
		if !isDir(inputRoot, g) {
			continue
		}
		group := g.Name()
		if !l.recognizedGroup(group) {
			l.logger.Info("skipping group: not a recognized ID format", "group", group)
			continue
		}
		l.logger.Debug("found group", "group", group)

		groupPath := filepath.Join(inputRoot, group)
		dates, err := os.ReadDir(groupPath)
		if err != nil {
			l.logger.Warn("skipping unreadable group", "group", group, "error", err)
			continue
		}

		for _, d := range dates {
			if !isDir(groupPath, d) {
				continue
			}
			date := d.Name()
			if _, err := time.Parse(l.opts.DateLayout, date); err != nil {
				l.logger.Info("skipping date folder: invalid date format", "group", group, "date", date, "layout", l.opts.DateLayout)
				continue
			}

			stems, err := l.pairedStems(filepath.Join(groupPath, date))
			if err != nil {
				l.logger.Warn("skipping unreadable date folder", "group", group, "date", date, "error", err)
				continue
			}

			for _, stem := range stems {
				units = append(units, models.Unit{
					GroupID:    group,
					DateKey:    date,
					UnitID:     stem,
					InputRoot:  inputRoot,
					OutputRoot: outputRoot,
				})
			}
		}
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Key() < units[j].Key() })
	return units, nil
}

func (l *Locator) recognizedGroup(name string) bool {
	for _, prefix := range l.opts.GroupPrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// pairedStems lists the regular files of dir and intersects archive stems with sidecar stems.
// Extensions match case-sensitively so the derived archive and sidecar paths exist as named.
func (l *Locator) pairedStems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	archives := map[string]bool{}
	sidecars := map[string]bool{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, l.opts.ArchiveExt):
			archives[strings.TrimSuffix(name, l.opts.ArchiveExt)] = true
		case strings.HasSuffix(name, l.opts.SidecarExt):
			sidecars[strings.TrimSuffix(name, l.opts.SidecarExt)] = true
		}
	}
	return Intersect(archives, sidecars), nil
}

// Intersect returns the sorted stems present in both sets. Stems in only one set are dropped silently.
func Intersect(archives, sidecars map[string]bool) []string {
	stems := make([]string, 0, len(archives))
	for stem := range archives {
		if stem != "" && sidecars[stem] {
			stems = append(stems, stem)
		}
	}
	sort.Strings(stems)
	return stems
}

// isDir follows symlinks so a linked group or date folder still counts.
func isDir(parent string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}

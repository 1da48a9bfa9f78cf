// Package sanitizer removes everything but deliverables from a finished output tree.
//
// A sweep runs in two passes over a snapshot of the tree. The first removes every
// file outside an allow-list; the second removes empty directories deepest first and
// repeats until a pass removes nothing. The root itself is never removed.
package sanitizer

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nifx/internal/shared"
)

// Options is the allow-list a file must match to survive a sweep.
type Options struct {
	AllowedSuffixes []string // matched against the lowercased file name, e.g. ".nii.gz"
	AllowedNames    []string // exact file names, e.g. "LICENSE"
}

// OptionsFromConfig maps the sanitize section of the config onto [Options].
func OptionsFromConfig(c shared.SanitizeConfig) Options {
	return Options{AllowedSuffixes: c.AllowedSuffixes, AllowedNames: c.AllowedNames}
}

// Report counts what a sweep removed and what it failed to remove.
type Report struct {
	FilesRemoved int `json:"files_removed"`
	DirsRemoved  int `json:"dirs_removed"`
	Failures     int `json:"failures"`
	Passes       int `json:"passes"` // empty-directory passes, including the final one that removed nothing
}

// Removed is the total number of paths deleted.
func (r Report) Removed() int { return r.FilesRemoved + r.DirsRemoved }

// Sanitizer sweeps output trees.
type Sanitizer struct {
	suffixes []string
	names    map[string]bool
	logger   *log.Logger
	remove   func(string) error
}

// New creates a Sanitizer. A nil logger discards output.
func New(opts Options, logger *log.Logger) *Sanitizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Sanitizer{names: make(map[string]bool, len(opts.AllowedNames)), logger: logger, remove: os.Remove}
	for _, suf := range opts.AllowedSuffixes {
		s.suffixes = append(s.suffixes, strings.ToLower(suf))
	}
	for _, n := range opts.AllowedNames {
		s.names[n] = true
	}
	return s
}

// Allowed reports whether a file with this base name survives a sweep.
func (s *Sanitizer) Allowed(name string) bool {
	if s.names[name] {
		return true
	}
	lower := strings.ToLower(name)
	for _, suf := range s.suffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// Sweep sanitizes the tree under root. It must only run once no unit is still writing.
//
// Removal failures are logged and counted; they never stop the sweep. A missing root is an empty tree.
func (s *Sanitizer) Sweep(root string) Report {
	var r Report
	root = filepath.Clean(root)

	files, dirs, err := s.snapshot(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("nothing to sanitize", "root", root)
			return r
		}
		s.logger.Warn("failed to walk output tree", "root", root, "error", err)
		r.Failures++
	}

	for _, path := range files {
		if s.Allowed(filepath.Base(path)) {
			continue
		}
		if err := s.remove(path); err != nil {
			s.logger.Warn("failed to remove file", "path", path, "error", err)
			r.Failures++
			continue
		}
		s.logger.Debug("removed file", "path", path)
		r.FilesRemoved++
	}

	gone := make(map[string]bool)
	for {
		r.Passes++
		removed := 0
		for _, dir := range dirs {
			if gone[dir] {
				continue
			}
			empty, err := isEmpty(dir)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					s.logger.Warn("failed to read directory", "path", dir, "error", err)
					r.Failures++
				}
				gone[dir] = true
				continue
			}
			if !empty {
				continue
			}
			if err := s.remove(dir); err != nil {
				s.logger.Warn("failed to remove directory", "path", dir, "error", err)
				r.Failures++
				gone[dir] = true
				continue
			}
			s.logger.Debug("removed empty directory", "path", dir)
			gone[dir] = true
			removed++
		}
		r.DirsRemoved += removed
		if removed == 0 {
			break
		}
	}

	s.logger.Info("sanitized output tree",
		"root", root, "files", r.FilesRemoved, "dirs", r.DirsRemoved, "failures", r.Failures)
	return r
}

// snapshot lists every non-directory path and every directory below root.
// Directories come deepest first so children are checked before their parents.
func (s *Sanitizer) snapshot(root string) (files, dirs []string, err error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil, err
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})

	sort.SliceStable(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})
	return files, dirs, walkErr
}

func depth(path string) int {
	return strings.Count(path, string(os.PathSeparator))
}

func isEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

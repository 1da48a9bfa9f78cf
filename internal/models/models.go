// package models defines the data model for the nifx organizer
package models

import (
	"path/filepath"
	"time"
)

// Unit identifies one processing unit: an archive and a metadata sidecar sharing a stem
// inside input_root/group/date. It is a value type and is never mutated after the locator builds it.
type Unit struct {
	GroupID    string // top-level group folder name
	DateKey    string // date folder name, already validated
	UnitID     string // shared stem of archive and sidecar
	InputRoot  string
	OutputRoot string
}

// Key returns the unit's relative location, "group/date/unit".
func (u Unit) Key() string {
	return filepath.ToSlash(filepath.Join(u.GroupID, u.DateKey, u.UnitID))
}

// InputDir is the date directory that holds the unit's archive and sidecar.
func (u Unit) InputDir() string {
	return filepath.Join(u.InputRoot, u.GroupID, u.DateKey)
}

// ArchivePath returns the source archive path for the given extension.
func (u Unit) ArchivePath(ext string) string {
	return filepath.Join(u.InputDir(), u.UnitID+ext)
}

// SidecarPath returns the source sidecar path for the given extension.
func (u Unit) SidecarPath(ext string) string {
	return filepath.Join(u.InputDir(), u.UnitID+ext)
}

// StagingDir is the unit-exclusive output directory, output_root/group/date/unit.
func (u Unit) StagingDir() string {
	return filepath.Join(u.OutputRoot, u.GroupID, u.DateKey, u.UnitID)
}

// Run is one invocation of the organize command as stored in the ledger.
type Run struct {
	ID          string
	Sequence    int
	InputRoot   string
	OutputRoot  string
	Workers     int
	Total       int
	Completed   int
	Skipped     int
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Finished reports whether the run reached the end of its sweep.
func (r *Run) Finished() bool {
	return r.CompletedAt != nil
}

// OutcomeRecord is one persisted unit outcome.
type OutcomeRecord struct {
	ID         int64
	RunID      string
	GroupID    string
	DateKey    string
	UnitID     string
	Kind       OutcomeKind
	Stage      string
	Error      string
	Warnings   int
	DurationMS int64
	CreatedAt  time.Time
}

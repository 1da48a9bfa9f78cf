package models

import (
	"fmt"
	"sort"
	"time"
)

// Stage is one ordered step of the per-unit pipeline.
type Stage int

const (
	StageMaterialize Stage = iota + 1
	StageExtract
	StageValidate
	StageConvert
	StageFinalize
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageMaterialize, StageExtract, StageValidate, StageConvert, StageFinalize}

func (s Stage) String() string {
	switch s {
	case StageMaterialize:
		return "materialize"
	case StageExtract:
		return "extract"
	case StageValidate:
		return "validate"
	case StageConvert:
		return "convert"
	case StageFinalize:
		return "finalize"
	default:
		return ""
	}
}

// OutcomeKind enumerates the closed set of unit results.
type OutcomeKind int

const (
	Completed OutcomeKind = iota
	SkippedCorruptArchive
	SkippedNoDecodable
	SkippedCopyFailure
	SkippedConversionFailure
	SkippedTimeout
)

// OutcomeKinds lists every kind, used for exhaustive summaries.
var OutcomeKinds = []OutcomeKind{
	Completed,
	SkippedCorruptArchive,
	SkippedNoDecodable,
	SkippedCopyFailure,
	SkippedConversionFailure,
	SkippedTimeout,
}

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case SkippedCorruptArchive:
		return "skipped_corrupt_archive"
	case SkippedNoDecodable:
		return "skipped_no_decodable"
	case SkippedCopyFailure:
		return "skipped_copy_failure"
	case SkippedConversionFailure:
		return "skipped_conversion_failure"
	case SkippedTimeout:
		return "skipped_timeout"
	default:
		return ""
	}
}

// ParseOutcomeKind is the inverse of [OutcomeKind.String].
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for _, k := range OutcomeKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome kind %q", s)
}

// Outcome is the single result of running the pipeline for one unit.
//
// Stage is set for SkippedCopyFailure and SkippedTimeout and names the stage that failed;
// for the other skip kinds it is the implied stage. Err is nil when Kind is Completed.
type Outcome struct {
	Kind     OutcomeKind
	Unit     Unit
	Stage    Stage
	Err      error
	Warnings []string
	Duration time.Duration
}

// UnitID is a shorthand for o.Unit.UnitID.
func (o Outcome) UnitID() string { return o.Unit.UnitID }

// Skipped reports whether the unit was aborted.
func (o Outcome) Skipped() bool { return o.Kind != Completed }

// Degraded reports whether a completed unit logged non-fatal finalize failures.
func (o Outcome) Degraded() bool { return o.Kind == Completed && len(o.Warnings) > 0 }

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", o.Unit.Key(), o.Kind, o.Stage, o.Err)
	}
	return fmt.Sprintf("%s %s", o.Unit.Key(), o.Kind)
}

// NewCompleted builds a Completed outcome, keeping finalize warnings.
func NewCompleted(u Unit, warnings []string) Outcome {
	return Outcome{Kind: Completed, Unit: u, Stage: StageFinalize, Warnings: warnings}
}

// NewCopyFailure builds a SkippedCopyFailure outcome for the given stage.
func NewCopyFailure(u Unit, stage Stage, err error) Outcome {
	return Outcome{Kind: SkippedCopyFailure, Unit: u, Stage: stage, Err: err}
}

// NewCorruptArchive builds a SkippedCorruptArchive outcome.
func NewCorruptArchive(u Unit, err error) Outcome {
	return Outcome{Kind: SkippedCorruptArchive, Unit: u, Stage: StageExtract, Err: err}
}

// NewNoDecodable builds a SkippedNoDecodable outcome.
func NewNoDecodable(u Unit, err error) Outcome {
	return Outcome{Kind: SkippedNoDecodable, Unit: u, Stage: StageValidate, Err: err}
}

// NewConversionFailure builds a SkippedConversionFailure outcome.
func NewConversionFailure(u Unit, err error) Outcome {
	return Outcome{Kind: SkippedConversionFailure, Unit: u, Stage: StageConvert, Err: err}
}

// NewTimeout builds a SkippedTimeout outcome for the stage that was about to run.
func NewTimeout(u Unit, stage Stage, err error) Outcome {
	return Outcome{Kind: SkippedTimeout, Unit: u, Stage: stage, Err: err}
}

// Summary aggregates outcome counts for a run.
type Summary struct {
	Total     int
	Completed int
	Skipped   int
	Degraded  int
	ByKind    map[OutcomeKind]int
}

// Summarize counts outcomes by kind.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{ByKind: make(map[OutcomeKind]int, len(OutcomeKinds))}
	for _, o := range outcomes {
		s.Add(o)
	}
	return s
}

// Add folds one outcome into the summary.
func (s *Summary) Add(o Outcome) {
	if s.ByKind == nil {
		s.ByKind = make(map[OutcomeKind]int, len(OutcomeKinds))
	}
	s.Total++
	s.ByKind[o.Kind]++
	if o.Skipped() {
		s.Skipped++
	} else {
		s.Completed++
	}
	if o.Degraded() {
		s.Degraded++
	}
}

// SortOutcomes orders outcomes by unit key, giving a stable order for reports and comparisons.
func SortOutcomes(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Unit.Key() < outcomes[j].Unit.Key()
	})
}

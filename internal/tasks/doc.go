// Package tasks runs the organize workflow with real-time progress reporting.
//
// # Pipeline
//
// [Pipeline.Process] takes one unit through five stages, each gated on the previous one:
//
//  1. Materialize: create the staging directory and copy the archive into it
//  2. Extract: expand the archive copy, then remove the copy on every path
//  3. Validate: collect frame files; none means the unit is skipped
//  4. Convert: decode the frames into a volume and encode it next to them
//  5. Finalize: delete the frames and copy the sidecar, best effort
//
// A failure in stages 2 to 4 removes the staging directory so no partial unit survives.
// Finalize never rolls back: its failures become warnings on a Completed outcome.
//
// # Dispatch
//
// [Engine.Dispatch] fans units out to a bounded worker pool. Each unit owns the
// directory output_root/group/date/unit, so workers share nothing and need no locks.
// A worker count of 1 runs units sequentially in list order.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Ledger
//
// The optional [RunRecorder] and [OutcomeRecorder] interfaces persist each run and its
// outcomes (repositories.RunRepository and repositories.OutcomeRepository). Recording
// happens on the collecting goroutine and a failure is only logged.
package tasks

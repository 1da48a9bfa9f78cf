// Package models defines the value types that flow through a nifx run.
//
// The package contains two categories of types:
//
// 1. Pipeline values: immutable descriptors and results passed between stages
//   - [Unit] : one archive + sidecar pair located under group/date
//   - [Stage] : one ordered step of the per-unit pipeline
//   - [Outcome] : closed set of tagged results, one per unit
//   - [Summary] : outcome counts aggregated over a run
//
// 2. Ledger entities: rows persisted by the repositories package
//   - [Run] : one invocation of the organize command
//   - [OutcomeRecord] : one unit's outcome inside a run
//
// None of these types own filesystem resources; a [Unit] only describes paths.
package models

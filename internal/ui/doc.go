// Package ui implements the organize progress display using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [RunView] : a progress bar over dispatched units and the latest outcome lines
//  2. [ResultView] : the run summary and a filterable list of skipped and degraded units
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the tasks.Engine, providing non-blocking status reporting during a run.
//
// Pressing q during a run cancels it: units already running finish and no new unit starts.
// [RenderSummary] renders the same summary for plain (non-TUI) output.
package ui

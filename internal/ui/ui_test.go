package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/sanitizer"
	"github.com/desertthunder/nifx/internal/tasks"
)

type mockRunner struct {
	updates []tasks.ProgressUpdate
	result  *tasks.RunResult
	err     error
	ctx     context.Context
	release chan struct{} // when set, Run returns only once it is closed
}

func (r *mockRunner) Run(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.RunOpts) (*tasks.RunResult, error) {
	r.ctx = ctx
	for _, u := range r.updates {
		progress <- u
	}
	if r.release != nil {
		<-r.release
	}
	return r.result, r.err
}

func unit(id string) models.Unit {
	return models.Unit{GroupID: "ISPY2-100", DateKey: "01-02-2020", UnitID: id}
}

func testResult() *tasks.RunResult {
	outcomes := []models.Outcome{
		models.NewCompleted(unit("a"), nil),
		models.NewCompleted(unit("b"), []string{"copy sidecar: permission denied"}),
		models.NewCorruptArchive(unit("c"), errors.New("zip: not a valid zip file")),
		models.NewNoDecodable(unit("d"), errors.New("no .dcm files")),
	}
	return &tasks.RunResult{
		Run:      &models.Run{ID: "run-1", Sequence: 3},
		Outcomes: outcomes,
		Summary:  models.Summarize(outcomes),
		Sweep:    &sanitizer.Report{FilesRemoved: 2, DirsRemoved: 1},
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(testResult())

	for _, want := range []string{
		"run #3",
		"Completed: 2/4",
		"1 with warnings",
		"Skipped: 2",
		"skipped_corrupt_archive",
		"skipped_no_decodable",
		"Sanitized: 2 files, 1 directories removed",
		"ISPY2-100/01-02-2020/c",
		"copy sidecar: permission denied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ISPY2-100/01-02-2020/a:") {
		t.Error("clean completions should not be listed")
	}

	if got := RenderSummary(nil); !strings.Contains(got, "No result available") {
		t.Errorf("nil result rendered as %q", got)
	}
}

func TestAttentionItems(t *testing.T) {
	items := attentionItems(testResult().Outcomes)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	var titles []string
	for _, it := range items {
		titles = append(titles, it.(outcomeItem).Title())
	}
	want := "ISPY2-100/01-02-2020/c ISPY2-100/01-02-2020/d ISPY2-100/01-02-2020/b"
	if got := strings.Join(titles, " "); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestModel(t *testing.T) {
	t.Run("progress updates advance the run view", func(t *testing.T) {
		m := NewModel(context.Background(), &mockRunner{}, tasks.RunOpts{InputRoot: "/in", OutputRoot: "/out"})

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.Locate, Step: 1, Total: 1, Data: []models.Unit{unit("a"), unit("b")}}))
		if m.total != 2 {
			t.Errorf("total = %d, want 2", m.total)
		}

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.Process, Step: 1, Total: 2, Message: "[1/2] ✓ ISPY2-100/01-02-2020/a"}))
		if m.completed != 1 || len(m.recent) != 1 {
			t.Errorf("completed = %d recent = %v", m.completed, m.recent)
		}

		view := m.View()
		if !strings.Contains(view, "Processing units (1/2)") || !strings.Contains(view, "ISPY2-100/01-02-2020/a") {
			t.Errorf("unexpected run view:\n%s", view)
		}
	})

	t.Run("recent lines are bounded", func(t *testing.T) {
		m := NewModel(context.Background(), &mockRunner{}, tasks.RunOpts{})
		for i := 1; i <= 20; i++ {
			m.applyProgress(tasks.ProgressUpdate{Phase: tasks.Process, Step: i, Total: 20, Message: "line"})
		}
		if len(m.recent) != recentLimit {
			t.Errorf("recent = %d lines, want %d", len(m.recent), recentLimit)
		}
	})

	t.Run("completion switches to the result view", func(t *testing.T) {
		m := NewModel(context.Background(), &mockRunner{}, tasks.RunOpts{})

		m.Update(runCompleteMsg(testResult(), nil))

		if m.view != ResultView {
			t.Fatalf("view = %v, want ResultView", m.view)
		}
		if got := len(m.outcomes.Items()); got != 3 {
			t.Errorf("list has %d items, want 3", got)
		}
		if !strings.Contains(m.View(), "Completed: 2/4") {
			t.Errorf("result view missing summary:\n%s", m.View())
		}
		result, err := m.Result()
		if result == nil || err != nil {
			t.Errorf("Result() = %v, %v", result, err)
		}
	})

	t.Run("fatal error is shown", func(t *testing.T) {
		m := NewModel(context.Background(), &mockRunner{}, tasks.RunOpts{})
		m.Update(runCompleteMsg(nil, errors.New("input root unreadable")))
		if !strings.Contains(m.View(), "Run failed: input root unreadable") {
			t.Errorf("unexpected view:\n%s", m.View())
		}
	})

	t.Run("first quit cancels, second quits", func(t *testing.T) {
		m := NewModel(context.Background(), &mockRunner{}, tasks.RunOpts{})
		q := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}

		_, cmd := m.Update(q)
		if cmd != nil {
			t.Error("first quit should not exit")
		}
		if m.ctx.Err() == nil || !m.stopping {
			t.Error("first quit should cancel the run")
		}

		_, cmd = m.Update(q)
		if cmd == nil {
			t.Fatal("second quit should exit")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("wait outlasts an early quit", func(t *testing.T) {
		runner := &mockRunner{result: testResult(), release: make(chan struct{})}
		m := NewModel(context.Background(), runner, tasks.RunOpts{})
		m.Init()

		q := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
		m.Update(q)
		if _, cmd := m.Update(q); cmd == nil {
			t.Fatal("second quit should exit")
		}

		type waited struct {
			result *tasks.RunResult
			err    error
		}
		got := make(chan waited, 1)
		go func() {
			result, err := m.Wait()
			got <- waited{result, err}
		}()

		select {
		case <-got:
			t.Fatal("Wait returned while the engine was still running")
		case <-time.After(50 * time.Millisecond):
		}

		close(runner.release)
		select {
		case w := <-got:
			if w.result != runner.result || w.err != nil {
				t.Errorf("Wait() = %v, %v; want the engine result", w.result, w.err)
			}
		case <-time.After(time.Second):
			t.Fatal("Wait did not return after the engine finished")
		}
		if runner.ctx.Err() == nil {
			t.Error("engine context should be cancelled")
		}
	})

	t.Run("wait without a run returns immediately", func(t *testing.T) {
		m := NewModel(context.Background(), &mockRunner{}, tasks.RunOpts{})
		if result, err := m.Wait(); result != nil || err != nil {
			t.Errorf("Wait() = %v, %v; want nil, nil", result, err)
		}
	})

	t.Run("runs the engine and drains progress", func(t *testing.T) {
		runner := &mockRunner{
			updates: []tasks.ProgressUpdate{{Phase: tasks.Process, Step: 1, Total: 1, Message: "one"}},
			result:  testResult(),
		}
		m := NewModel(context.Background(), runner, tasks.RunOpts{})

		cmd := m.Init()
		for range 5 {
			msg := cmd()
			_, cmd = m.Update(msg)
			if m.view == ResultView {
				break
			}
		}
		if m.view != ResultView {
			t.Fatal("run did not complete")
		}
		if m.completed != 1 {
			t.Errorf("completed = %d, want 1", m.completed)
		}
		if runner.ctx == nil {
			t.Error("engine was not run")
		}
	})
}

package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/tasks"
)

// recentLimit is how many outcome lines the run view keeps on screen.
const recentLimit = 6

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunView ViewState = iota
	ResultView
)

// Runner runs an organize pass, reporting progress on the channel (tasks.Engine).
type Runner interface {
	Run(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.RunOpts) (*tasks.RunResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	engine       Runner
	opts         tasks.RunOpts
	view         ViewState
	width        int
	height       int
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	finished     chan struct{}
	final        runComplete
	progress     tasks.ProgressUpdate
	completed    int
	total        int
	recent       []string
	stopping     bool
	result       *tasks.RunResult
	err          error
	bar          progress.Model
	outcomes     list.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model that runs engine with opts once started.
func NewModel(ctx context.Context, engine Runner, opts tasks.RunOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:    ctx,
		cancel: cancel,
		engine: engine,
		opts:   opts,
		view:   RunView,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Result returns the run result once the program has exited.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Wait stops new units from starting and blocks until the engine run started by Init returns.
// It reports the engine's own result, which the view may never have received if the program
// quit early.
func (m *Model) Wait() (*tasks.RunResult, error) {
	m.cancel()
	if m.finished == nil {
		return m.result, m.err
	}
	<-m.finished
	return m.final.result, m.final.err
}

// Init starts the run in the background.
func (m *Model) Init() tea.Cmd {
	return m.startRun()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-10, 10), 80)
		if m.view == ResultView {
			m.outcomes.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RunView:
			return m.handleRunKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyProgress(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgRunComplete:
			done := msg.data.(runComplete)
			m.result, m.err = done.result, done.err
			m.progressChan = nil
			m.view = ResultView
			m.buildOutcomeList()
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.outcomes, cmd = m.outcomes.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) applyProgress(u tasks.ProgressUpdate) {
	m.progress = u
	switch u.Phase {
	case tasks.Locate:
		if u.Step == u.Total {
			m.total = len(asUnits(u.Data))
		}
	case tasks.Process:
		m.completed, m.total = u.Step, u.Total
		m.recent = append(m.recent, u.Message)
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
	}
}

func asUnits(data any) []models.Unit {
	units, _ := data.([]models.Unit)
	return units
}

func (m *Model) handleRunKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.stopping {
			return m, tea.Quit
		}
		// Units already running finish; nothing new starts.
		m.stopping = true
		m.cancel()
		return m, nil
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.outcomes.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.outcomes, cmd = m.outcomes.Update(msg)
	return m, cmd
}

func (m *Model) buildOutcomeList() {
	var items []list.Item
	if m.result != nil {
		items = attentionItems(m.result.Outcomes)
	}
	m.outcomes = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.outcomes.Title = "Units needing attention"
	m.outcomes.SetShowHelp(false)
	m.outcomes.SetSize(max(m.width-4, 20), max(m.height-12, 5))
}

func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan Msg, 1)
	m.finished = make(chan struct{})

	go func(progress chan tasks.ProgressUpdate, done chan Msg, finished chan struct{}) {
		defer close(finished)
		result, err := m.engine.Run(m.ctx, progress, m.opts)
		m.final = runComplete{result: result, err: err}
		done <- runCompleteMsg(result, err)
		close(progress)
	}(m.progressChan, m.doneChan, m.finished)

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return <-done
		}

		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderRun() string {
	title := styles.title.Render(fmt.Sprintf("Organizing %s → %s", m.opts.InputRoot, m.opts.OutputRoot))

	var phase string
	switch m.progress.Phase {
	case tasks.Locate:
		phase = "Scanning input tree..."
	case tasks.Process:
		phase = fmt.Sprintf("Processing units (%d/%d)", m.completed, m.total)
	case tasks.Sanitize:
		phase = "Sanitizing output tree..."
	case tasks.Done:
		phase = "Finishing..."
	}
	if m.stopping {
		phase = styles.warn.Render("Stopping after running units finish (q again to leave this view)")
	}

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.completed) / float64(m.total)
	}

	lines := ""
	for _, r := range m.recent {
		lines += "\n  " + r
	}

	return fmt.Sprintf("%s\n%s\n%s%s\n\n%s", title, m.bar.ViewAs(percent), phase, lines, m.help.View(m.keys))
}

func (m *Model) renderResult() string {
	if m.err != nil && m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Run failed: %v", m.err)), styles.help.Render("Press q to quit"))
	}

	out := RenderSummary(m.result)
	if m.err != nil {
		out += "\n" + styles.warn.Render(m.err.Error()) + "\n"
	}
	if len(m.outcomes.Items()) > 0 {
		out += "\n" + m.outcomes.View()
	}
	return fmt.Sprintf("%s\n%s", out, m.help.View(m.keys))
}

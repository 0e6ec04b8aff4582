// Package tui renders a live view of a pipeline run. It uses bubbletea,
// which follows The Elm Architecture: the model holds state, Update reacts
// to messages, View renders the model to a string.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/slipway/internal/pipeline/engine"
	"github.com/kingrea/slipway/internal/pipeline/resolver"
)

const stateRefreshInterval = 2 * time.Second

var (
	headerStyle       = lipgloss.NewStyle().Bold(true)
	labelStyleReady   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	labelStyleDefault = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

type stateLoadedMsg struct {
	state engine.State
	err   error
}

type refreshRequestMsg struct{}

// App is the watch model: it polls the run state store and renders the
// pipeline's nodes with their current states.
type App struct {
	store    engine.StateStore
	interval time.Duration

	spinner     spinner.Model
	state       engine.State
	stateLoaded bool
	err         error
	selection   int
	finished    bool
	quitting    bool
}

// Option customizes App construction.
type Option func(*App)

// WithRefreshInterval overrides the state polling interval.
func WithRefreshInterval(interval time.Duration) Option {
	return func(a *App) {
		if interval > 0 {
			a.interval = interval
		}
	}
}

// NewApp builds a watch model reading run state from store.
func NewApp(store engine.StateStore, opts ...Option) *App {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	app := &App{
		store:    store,
		interval: stateRefreshInterval,
		spinner:  sp,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Run starts the interactive program and blocks until it exits.
func (a *App) Run() error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.loadState())
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case stateLoadedMsg:
		if m.err != nil {
			if errors.Is(m.err, engine.ErrStateNotFound) {
				// No run yet; keep polling.
				return a, a.scheduleRefresh()
			}
			a.err = m.err
			return a, nil
		}
		a.err = nil
		a.stateLoaded = true
		a.state = m.state
		a.clampSelection()
		a.finished = m.state.Status == engine.StatusComplete || m.state.Status == engine.StatusFailed
		if a.finished {
			return a, nil
		}
		return a, a.scheduleRefresh()
	case refreshRequestMsg:
		if a.finished || a.quitting {
			return a, nil
		}
		return a, a.loadState()
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	case tea.KeyMsg:
		return a.handleKey(m)
	default:
		return a, nil
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		a.quitting = true
		return a, tea.Quit
	case "up", "k":
		if a.selection > 0 {
			a.selection--
		}
	case "down", "j":
		if a.selection < len(a.state.Nodes)-1 {
			a.selection++
		}
	case "r":
		if !a.finished {
			return a, a.loadState()
		}
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	if a.err != nil {
		return fmt.Sprintf("Run state error: %v\n\nq=quit", a.err)
	}
	if !a.stateLoaded {
		return fmt.Sprintf("%s Waiting for a pipeline run…\n\nq=quit", a.spinner.View())
	}
	header := headerStyle.Render(fmt.Sprintf("Pipeline: %s · Run: %s", a.state.PipelineID, a.state.RunID))
	statusLine := fmt.Sprintf("Status: %s", a.state.Status)
	if a.state.StatusReason != "" {
		statusLine += fmt.Sprintf(" · %s", a.state.StatusReason)
	}
	if !a.finished {
		statusLine = a.spinner.View() + " " + statusLine
	}
	lines := []string{header, statusLine, ""}
	for i, node := range a.state.Nodes {
		lines = append(lines, a.renderNodeLine(i, node))
		if i == a.selection {
			lines = append(lines, a.renderNodeDetails(node))
		}
	}
	lines = append(lines, "", "j/k=select  r=refresh  q=quit")
	return strings.Join(lines, "\n")
}

func (a *App) renderNodeLine(idx int, node engine.JobStatus) string {
	indicator := " "
	if idx == a.selection {
		indicator = ">"
	}
	name := node.Name
	if strings.TrimSpace(name) == "" {
		name = node.ID
	}
	label, style := nodeLabel(node, a.state.Runnable)
	return fmt.Sprintf("%s %s · [%s]", indicator, name, style.Render(label))
}

func (a *App) renderNodeDetails(node engine.JobStatus) string {
	var details []string
	if node.Description != "" {
		details = append(details, node.Description)
	}
	if len(node.BlockedBy) > 0 {
		details = append(details, fmt.Sprintf("Blocked by: %s", strings.Join(node.BlockedBy, ", ")))
	}
	if len(node.SkippedBy) > 0 {
		details = append(details, fmt.Sprintf("Skipped by: %s", strings.Join(node.SkippedBy, ", ")))
	}
	if run, ok := a.state.Runs[node.ID]; ok {
		runLine := fmt.Sprintf("Last run: %s", run.Status)
		if run.Message != "" {
			runLine += fmt.Sprintf(" · %s", run.Message)
		}
		if run.Error != "" {
			runLine += fmt.Sprintf(" · error: %s", run.Error)
		}
		if run.Artifacts > 0 {
			runLine += fmt.Sprintf(" · %d artifacts", run.Artifacts)
		}
		details = append(details, runLine)
	}
	if len(details) == 0 {
		return detailTextStyle.Render("  no additional details")
	}
	return detailTextStyle.Render("  " + strings.Join(details, "\n  "))
}

func nodeLabel(node engine.JobStatus, runnable []string) (string, lipgloss.Style) {
	switch node.State {
	case resolver.NodeStateComplete:
		return "Complete", labelStyleDone
	case resolver.NodeStateFailed:
		return "Failed", labelStyleFailed
	case resolver.NodeStateSkipped:
		return "Skipped", labelStyleSkipped
	case resolver.NodeStateReady:
		for _, id := range runnable {
			if id == node.ID {
				return "Ready", labelStyleReady
			}
		}
		return "Running", labelStyleRunning
	case resolver.NodeStateBlocked:
		return "Waiting", labelStyleDefault
	default:
		return "Unknown", labelStyleDefault
	}
}

func (a *App) clampSelection() {
	if a.selection >= len(a.state.Nodes) {
		a.selection = len(a.state.Nodes) - 1
	}
	if a.selection < 0 {
		a.selection = 0
	}
}

func (a *App) loadState() tea.Cmd {
	store := a.store
	return func() tea.Msg {
		state, err := store.Load()
		return stateLoadedMsg{state: state, err: err}
	}
}

func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return refreshRequestMsg{}
	})
}

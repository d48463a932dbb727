package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/observability"
	"github.com/sdlcguard/sdlcguard/internal/storage"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// Dashboard panel indices.
const (
	panelTasks = iota
	panelGates
	panelEvents
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	phaseCounts map[string]int
	activeTask  *taskSnapshot
	events      []eventSnapshot

	// State.
	loading bool
	err     error
}

type taskSnapshot struct {
	taskID   string
	storyID  string
	phase    string
	passed   bool
	failures []string
}

type eventSnapshot struct {
	level   string
	typ     string
	message string
	time    string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	phaseCounts map[string]int
	activeTask  *taskSnapshot
	events      []eventSnapshot
	err         error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	gatePass = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	gateFail = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	levelWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	levelError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	levelInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTasks,
		loading:     true,
		phaseCounts: make(map[string]int),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadDashboardData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadDashboardData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.phaseCounts = msg.phaseCounts
		m.activeTask = msg.activeTask
		m.events = msg.events
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" sdlcguard Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	tasksPanel := m.renderTasksPanel()
	gatesPanel := m.renderGatesPanel()
	eventsPanel := m.renderEventsPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, colWidth-4)
		gatesPanel = m.applyPanelStyle(panelGates, gatesPanel, colWidth-4)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, tasksPanel, gatesPanel, eventsPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, panelWidth)
		gatesPanel = m.applyPanelStyle(panelGates, gatesPanel, panelWidth)
		eventsPanel = m.applyPanelStyle(panelEvents, eventsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, tasksPanel, gatesPanel, eventsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tasks by phase"))
	b.WriteString("\n")

	if len(m.phaseCounts) == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	// Display in lifecycle order.
	total := 0
	for _, phase := range models.PhaseOrder {
		count, ok := m.phaseCounts[string(phase)]
		if !ok || count == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("  %-16s %d\n", phase, count))
		total += count
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d", total))

	return b.String()
}

func (m dashboardModel) renderGatesPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Quality gates"))
	b.WriteString("\n")

	if m.activeTask == nil {
		b.WriteString("  No active task.")
		return b.String()
	}

	t := m.activeTask
	b.WriteString(fmt.Sprintf("  %s (%s) %s\n\n", t.taskID, t.storyID, t.phase))

	if t.passed {
		b.WriteString(gatePass.Render("  PASS: ready to complete"))
		return b.String()
	}

	b.WriteString(gateFail.Render("  FAIL:"))
	b.WriteString("\n")
	for _, f := range t.failures {
		b.WriteString(fmt.Sprintf("    - %s\n", f))
	}

	return b.String()
}

func (m dashboardModel) renderEventsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent events"))
	b.WriteString("\n")

	if len(m.events) == 0 {
		b.WriteString("  No events recorded.")
		return b.String()
	}

	for _, e := range m.events {
		lvl := styleForLevel(e.level).Render(fmt.Sprintf("[%s]", e.level))
		b.WriteString(fmt.Sprintf("  %s %s %s: %s\n", e.time, lvl, e.typ, e.message))
	}

	return b.String()
}

func styleForLevel(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return levelError
	case "WARN":
		return levelWarn
	case "INFO":
		return levelInfo
	default:
		return lipgloss.NewStyle()
	}
}

func loadDashboardData() tea.Msg {
	result := dataLoadedMsg{
		phaseCounts: make(map[string]int),
	}

	if Store != nil {
		tasks, err := Store.List(storage.TaskFilter{})
		if err != nil {
			result.err = err
			return result
		}
		for _, t := range tasks {
			result.phaseCounts[string(t.Phase.Current)]++
		}

		if current := activeTaskID(); current != models.NoCurrentTask {
			if task, err := Store.Get(current); err == nil {
				snap := &taskSnapshot{
					taskID:  task.TaskID,
					storyID: task.StoryID,
					phase:   string(task.Phase.Current),
				}
				if Gates != nil {
					verdict := Gates.Evaluate(task)
					snap.passed = verdict.Passed
					snap.failures = verdict.Failures
				}
				result.activeTask = snap
			}
		}
	}

	if EventLog != nil {
		events, err := EventLog.Read(observability.EventFilter{})
		if err == nil {
			const maxEvents = 10
			if len(events) > maxEvents {
				events = events[len(events)-maxEvents:]
			}
			for _, e := range events {
				result.events = append(result.events, eventSnapshot{
					level:   e.Level,
					typ:     e.Type,
					message: e.Message,
					time:    e.Time.Format("15:04"),
				})
			}
		}
	}

	return result
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive terminal dashboard",
	Long: `Open an interactive terminal dashboard showing tasks by phase, the
active task's quality-gate verdict, and recent audit events.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("task store not initialized")
		}

		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

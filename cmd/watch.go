package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/oracleplane/oracleplane/internal/model"
	"github.com/oracleplane/oracleplane/internal/state"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4672"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D9FF"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch every Plan's status live in a terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		p := tea.NewProgram(newWatchModel(a.store))
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchModel is the Bubble Tea model behind "oracleplane watch", polling
// the bookkeeping store on an interval instead of holding a live DB
// subscription (no push channel exists between the Store and a
// renderer).
type watchModel struct {
	store   *state.Store
	spinner spinner.Model

	plans []model.Plan
	rows  map[int32]model.Deployment
	err   error

	width, height int
}

func newWatchModel(store *state.Store) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return watchModel{store: store, spinner: sp, rows: make(map[int32]model.Deployment)}
}

type tickMsg time.Time

type loadedMsg struct {
	plans []model.Plan
	rows  map[int32]model.Deployment
	err   error
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.load, tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) load() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	plans, err := m.store.ListPlans(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}

	rows := make(map[int32]model.Deployment, len(plans))
	for _, p := range plans {
		d, err := m.store.FindLastDeploymentByPlan(ctx, p.ID)
		if err != nil {
			continue
		}
		rows[p.ID] = d
	}
	return loadedMsg{plans: plans, rows: rows}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		return m, tea.Batch(m.load, tick())

	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.plans = msg.plans
			m.rows = msg.rows
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("oracleplane — live plan status"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	}

	if len(m.plans) == 0 {
		b.WriteString(subtleStyle.Render("no plans registered"))
		b.WriteString("\n")
		return b.String()
	}

	for _, p := range m.plans {
		marker := "  "
		if p.Status == model.StatusRunning || p.Status == model.StatusRollingBack {
			marker = m.spinner.View()
		}
		line := fmt.Sprintf("%s%-20s %s", marker, p.Name, statusStyle(p.Status).Render(string(p.Status)))
		if d, ok := m.rows[p.ID]; ok {
			line += subtleStyle.Render(fmt.Sprintf("  last deployment #%d (%s)", d.ID, d.Status))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("q to quit"))
	return b.String()
}

func statusStyle(s model.PlanStatus) lipgloss.Style {
	switch s {
	case model.StatusSuccess, model.StatusRolledBack:
		return successStyle
	case model.StatusError, model.StatusRollbackError:
		return errorStyle
	case model.StatusRunning, model.StatusRollingBack:
		return runningStyle
	default:
		return subtleStyle
	}
}

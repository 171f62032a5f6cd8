// Package tui implements the live job watch view. It polls the scheduler for
// job state on a tick and receives toast notifications pushed in from a
// scheduler subscription.
package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwhitfield/loom/internal/scheduler"
	"github.com/mwhitfield/loom/pkg/models"
)

// maxToasts bounds the notification feed shown at the bottom of the view.
const maxToasts = 6

// refreshInterval is how often the view polls scheduler state.
const refreshInterval = 500 * time.Millisecond

// NotificationMsg delivers one scheduler notification to the view.
type NotificationMsg struct {
	Notification models.Notification
}

type tickMsg time.Time

// Enqueuer is the slice of the scheduler the watch view submits work through.
type Enqueuer interface {
	AddTask(jobType, name string, opts ...scheduler.TaskOption) (string, error)
	GetTasks(filter scheduler.TaskFilter) []*models.Job
	GetHistory(limit int) []*models.Job
	GetStats() scheduler.Stats
}

// Model is the bubbletea model for the watch view.
type Model struct {
	sched   Enqueuer
	jobType string

	input   textinput.Model
	spin    spinner.Model
	jobs    []*models.Job
	history []*models.Job
	stats   scheduler.Stats
	toasts  []models.Notification
	width   int
	err     error
}

// NewModel creates a watch view that submits requests as jobs of jobType.
func NewModel(sched Enqueuer, jobType string) Model {
	input := textinput.New()
	input.Placeholder = "describe a request and press enter"
	input.CharLimit = 400
	input.Width = 60
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		sched:   sched,
		jobType: jobType,
		input:   input,
		spin:    spin,
		width:   80,
	}
}

// NewProgram wraps the model in a bubbletea program. Callers forward
// scheduler notifications with program.Send(NotificationMsg{...}).
func NewProgram(sched Enqueuer, jobType string) *tea.Program {
	return tea.NewProgram(NewModel(sched, jobType), tea.WithAltScreen())
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			request := strings.TrimSpace(m.input.Value())
			if request == "" {
				return m, nil
			}
			m.input.Reset()
			_, err := m.sched.AddTask(m.jobType, request,
				scheduler.WithDescription(request),
				scheduler.WithMetadata(map[string]any{"request": request}),
			)
			m.err = err
			return m, nil
		}

	case tickMsg:
		m.jobs = m.sched.GetTasks(scheduler.TaskFilter{})
		m.history = m.sched.GetHistory(5)
		m.stats = m.sched.GetStats()
		return m, tick()

	case NotificationMsg:
		m.toasts = append(m.toasts, msg.Notification)
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("loom"),
		"  ",
		subtitleStyle.Render("work orchestration"),
	)
	b.WriteString(header + "\n\n")

	fmt.Fprintf(&b, "%s queued %d  running %d  paused %d  done %d\n\n",
		sectionStyle.Render("Queue"),
		m.stats.Queued, m.stats.Running, m.stats.Paused, m.stats.HistorySize)

	if len(m.jobs) == 0 {
		b.WriteString(dimStyle.Render("  no live jobs") + "\n")
	}
	for _, job := range m.jobs {
		marker := "  "
		if job.Status == models.JobStatusRunning {
			marker = m.spin.View()
		}
		line := fmt.Sprintf("%s%-10s %-8s %s", marker, renderStatus(job.Status), job.Priority, truncate(job.Name, m.width-30))
		if job.Status == models.JobStatusRunning && job.Progress.Total > 0 {
			line += dimStyle.Render(fmt.Sprintf("  [%d/%d] %s", job.Progress.Current, job.Progress.Total, job.Progress.Message))
		}
		b.WriteString(line + "\n")
	}

	if len(m.history) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Recent") + "\n")
		for _, job := range m.history {
			b.WriteString(fmt.Sprintf("  %-10s %s\n", renderStatus(job.Status), truncate(job.Name, m.width-16)))
		}
	}

	if len(m.toasts) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Notifications") + "\n")
		for _, note := range m.toasts {
			b.WriteString(toastStyle.Render("  * "+note.Message) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n" + toastStyle.Render("error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter submit  esc quit"))
	return b.String()
}

func truncate(s string, max int) string {
	if max < 8 {
		max = 8
	}
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

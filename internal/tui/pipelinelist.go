package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

var (
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// PipelineListModel is an immutable Bubbletea-compatible model for the pipeline list panel.
type PipelineListModel struct {
	pipelines []domain.Pipeline
	cursor    int
}

// NewPipelineListModel creates a pipeline list model with the given pipelines.
func NewPipelineListModel(pipelines []domain.Pipeline) PipelineListModel {
	return PipelineListModel{pipelines: pipelines, cursor: 0}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m PipelineListModel) MoveDown() PipelineListModel {
	if m.cursor < len(m.pipelines)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m PipelineListModel) MoveUp() PipelineListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// SelectedIndex returns the current cursor position.
func (m PipelineListModel) SelectedIndex() int {
	return m.cursor
}

// SelectedPipeline returns the currently highlighted pipeline.
// Returns zero-value Pipeline if the list is empty.
func (m PipelineListModel) SelectedPipeline() domain.Pipeline {
	if len(m.pipelines) == 0 {
		return domain.Pipeline{}
	}
	return m.pipelines[m.cursor]
}

// Pipelines returns the listed runs.
func (m PipelineListModel) Pipelines() []domain.Pipeline {
	return m.pipelines
}

// UpdatePipelines replaces the runs and keeps the cursor on the same run id
// when it is still listed.
func (m PipelineListModel) UpdatePipelines(pipelines []domain.Pipeline) PipelineListModel {
	selected := m.SelectedPipeline().ID
	m.pipelines = pipelines
	m.cursor = 0
	for i, p := range pipelines {
		if p.ID == selected {
			m.cursor = i
			break
		}
	}
	return m
}

// View renders the pipeline list as a string.
func (m PipelineListModel) View() string {
	if len(m.pipelines) == 0 {
		return "No pipelines found."
	}
	var sb strings.Builder
	for i, p := range m.pipelines {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		line := fmt.Sprintf("%s%s %-24s #%-4d %-12s %s",
			prefix,
			statusIcon(string(p.Status)),
			truncate(p.PipelineDefinitionName, 24),
			p.ExecutionID,
			rerunLabel(p),
			formatAge(p.StartTime),
		)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func rerunLabel(p domain.Pipeline) string {
	if p.ShouldBeCanceled {
		return "canceling"
	}
	if p.RerunStatus != "" {
		return "rerun " + strings.ToLower(string(p.RerunStatus))
	}
	return ""
}

// statusIcon renders pipeline, stage and job statuses alike.
func statusIcon(status string) string {
	switch status {
	case "SUCCESS":
		return successStyle.Render("✓")
	case "FAILED":
		return failedStyle.Render("✗")
	case "IN_PROGRESS", "RUNNING":
		return activeStyle.Render("●")
	case "PENDING", "AWAITING", "ASSIGNED":
		return inactiveStyle.Render("↷")
	case "PAUSED":
		return activeStyle.Render("‖")
	case "SKIPPED":
		return inactiveStyle.Render("○")
	default:
		return "?"
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

package tui

import (
	"fmt"
	"strings"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// StageListModel is an immutable model for the stages of a pipeline's
// current stage run.
type StageListModel struct {
	stages []domain.Stage
	cursor int
}

// NewStageListModel creates a stage list model.
func NewStageListModel(stages []domain.Stage) StageListModel {
	return StageListModel{stages: stages, cursor: 0}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m StageListModel) MoveDown() StageListModel {
	if m.cursor < len(m.stages)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m StageListModel) MoveUp() StageListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m StageListModel) Cursor() int {
	return m.cursor
}

// Stages returns the full stage slice.
func (m StageListModel) Stages() []domain.Stage {
	return m.stages
}

// SelectedStage returns the highlighted stage and false when the list is empty.
func (m StageListModel) SelectedStage() (domain.Stage, bool) {
	if len(m.stages) == 0 {
		return domain.Stage{}, false
	}
	return m.stages[m.cursor], true
}

// View renders the stage list with cursor indicators.
func (m StageListModel) View() string {
	if len(m.stages) == 0 {
		return "No stages yet. The pipeline has not been prepared."
	}
	var sb strings.Builder
	for i, s := range m.stages {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		manual := ""
		if s.TriggeredManually {
			manual = "manual"
		}
		sb.WriteString(fmt.Sprintf("%s%s %-25s %d jobs  %s\n",
			prefix,
			statusIcon(string(s.Status)),
			truncate(s.StageDefinitionName, 25),
			len(s.Jobs),
			manual,
		))
	}
	return sb.String()
}

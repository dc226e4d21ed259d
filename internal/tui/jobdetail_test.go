package tui_test

import (
	"strings"
	"testing"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/tui"
)

func TestJobDetailModel_RendersJobs(t *testing.T) {
	jobs := []domain.Job{
		{ID: "1", JobDefinitionName: "compile", Status: domain.JobRunning, AssignedAgentID: "agent-7"},
		{ID: "2", JobDefinitionName: "vet", Status: domain.JobPending},
	}
	m := tui.NewJobDetailModel(jobs)
	view := m.View()
	if !strings.Contains(view, "compile") || !strings.Contains(view, "agent-7") {
		t.Errorf("expected job name and agent in view, got:\n%s", view)
	}
	if strings.Contains(view, ">") {
		t.Errorf("expected no cursor in unfocused view, got:\n%s", view)
	}
	if !strings.Contains(m.MoveDown().ViewFocused(), "> ") {
		t.Error("expected cursor in focused view")
	}
}

func TestJobDetailModel_EmptyShowsMessage(t *testing.T) {
	m := tui.NewJobDetailModel(nil)
	view := m.View()
	if view == "" {
		t.Error("expected non-empty view for empty jobs")
	}
}

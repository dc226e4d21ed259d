package domain_test

import (
	"testing"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

func TestPipeline_CurrentStagesReturnsLastRun(t *testing.T) {
	p := domain.Pipeline{
		StageRuns: []domain.StageRun{
			{ExecutionID: 1, Stages: []domain.Stage{{ID: "old"}}},
			{ExecutionID: 2, Stages: []domain.Stage{{ID: "new-a"}, {ID: "new-b"}}},
		},
	}
	stages := p.CurrentStages()
	if len(stages) != 2 || stages[0].ID != "new-a" {
		t.Fatalf("expected stages of last run, got %+v", stages)
	}

	stages[0].Status = domain.StagePaused
	if p.StageRuns[1].Stages[0].Status != domain.StagePaused {
		t.Error("expected CurrentStages to alias the last stage run")
	}
	if p.StageRuns[0].Stages[0].Status != "" {
		t.Error("expected earlier stage run to stay untouched")
	}
}

func TestPipeline_CurrentStagesEmptyWithoutRuns(t *testing.T) {
	var p domain.Pipeline
	if p.CurrentStages() != nil {
		t.Error("expected nil stages for a pipeline without stage runs")
	}
}

func TestPipeline_AreMaterialsUpdated(t *testing.T) {
	p := domain.Pipeline{Materials: []domain.Material{{Updated: true}, {Updated: false}}}
	if p.AreMaterialsUpdated() {
		t.Error("expected false while one material is not updated")
	}
	p.Materials[1].Updated = true
	if !p.AreMaterialsUpdated() {
		t.Error("expected true once every material is updated")
	}
	if !(domain.Pipeline{}).AreMaterialsUpdated() {
		t.Error("expected a pipeline without materials to count as updated")
	}
}

func TestAgent_IsAssignable(t *testing.T) {
	cases := []struct {
		name  string
		agent domain.Agent
		want  bool
	}{
		{"idle", domain.Agent{Connected: true, Enabled: true}, true},
		{"disconnected", domain.Agent{Enabled: true}, false},
		{"disabled", domain.Agent{Connected: true}, false},
		{"running", domain.Agent{Connected: true, Enabled: true, Running: true}, false},
		{"assigned", domain.Agent{Connected: true, Enabled: true, Assigned: true}, false},
	}
	for _, tc := range cases {
		if got := tc.agent.IsAssignable(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

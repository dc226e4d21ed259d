package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rndsolutions/HawkCD/internal/api"
	"github.com/rndsolutions/HawkCD/internal/definition"
	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/material"
	"github.com/rndsolutions/HawkCD/internal/scheduler"
	"github.com/rndsolutions/HawkCD/internal/service"
	"github.com/rndsolutions/HawkCD/internal/store"
)

type testServer struct {
	*httptest.Server
	pipelines   *service.PipelineService
	agents      *service.AgentService
	definitions *definition.PipelineDefinitions
	def         domain.PipelineDefinition
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	defs := definition.NewPipelineDefinitions(store.NewMemory[domain.PipelineDefinition]("pipeline definition"))
	materialDefs := definition.NewMaterialDefinitions(store.NewMemory[domain.MaterialDefinition]("material definition"))

	def, err := defs.Add(ctx, domain.PipelineDefinition{
		Name: "api-pipeline",
		StageDefinitions: []domain.StageDefinition{
			{Name: "build", JobDefinitions: []domain.JobDefinition{{Name: "compile"}}},
			{Name: "release", JobDefinitions: []domain.JobDefinition{{Name: "tag"}, {Name: "publish"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := materialDefs.Add(ctx, domain.MaterialDefinition{Name: "src", PipelineDefinitionID: def.ID}); err != nil {
		t.Fatal(err)
	}

	pipelines := service.NewPipelineService(service.PipelineDeps{
		Repository:          store.NewMemory[domain.Pipeline]("pipeline"),
		Definitions:         defs,
		MaterialDefinitions: materialDefs,
		Lock:                &sync.Mutex{},
	})
	agents := service.NewAgentService(service.AgentDeps{
		Repository: store.NewMemory[domain.Agent]("agent"),
		Pipelines:  pipelines,
	})
	srv := api.NewServer(api.Deps{
		Pipelines:           pipelines,
		Stages:              service.NewStageService(pipelines),
		Jobs:                service.NewJobService(pipelines),
		Agents:              agents,
		PipelineDefinitions: defs,
		MaterialDefinitions: materialDefs,
		Materials:           material.NewService(store.NewMemory[domain.Material]("material")),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, pipelines: pipelines, agents: agents, definitions: defs, def: def}
}

func do[T any](t *testing.T, method, url string, body any) (int, api.Result[T]) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var result api.Result[T]
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode, result
}

func (ts *testServer) trigger(t *testing.T) domain.Pipeline {
	t.Helper()
	status, result := do[domain.Pipeline](t, http.MethodPost, ts.URL+"/pipelines",
		api.TriggerRequest{PipelineDefinitionID: ts.def.ID, TriggerReason: "manual"})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", status, result.Message)
	}
	return result.Entity
}

// prepare marks materials updated and runs one preparer cycle.
func (ts *testServer) prepare(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := ts.pipelines.Mutate(ctx, id, func(p *domain.Pipeline) error {
		for i := range p.Materials {
			p.Materials[i].Updated = true
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := scheduler.NewPreparer(ts.pipelines, ts.definitions, 0, nil).Cycle(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestTriggerAndGetPipeline(t *testing.T) {
	ts := newTestServer(t)
	p := ts.trigger(t)
	if p.ExecutionID != 1 || p.Status != domain.StatusInProgress {
		t.Errorf("unexpected pipeline: execution %d status %s", p.ExecutionID, p.Status)
	}
	if p.TriggerReason != "manual" {
		t.Errorf("expected trigger reason manual, got %q", p.TriggerReason)
	}

	status, result := do[domain.Pipeline](t, http.MethodGet, ts.URL+"/pipelines/"+p.ID, nil)
	if status != http.StatusOK || !result.Succeeded() {
		t.Fatalf("expected 200 success, got %d %+v", status, result)
	}
	if result.Entity.ID != p.ID {
		t.Errorf("expected %s, got %s", p.ID, result.Entity.ID)
	}

	status, list := do[[]domain.Pipeline](t, http.MethodGet, ts.URL+"/pipelines?definition="+ts.def.ID, nil)
	if status != http.StatusOK || len(list.Entity) != 1 {
		t.Errorf("expected one pipeline for definition, got %d %d", status, len(list.Entity))
	}
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	ts := newTestServer(t)

	status, result := do[any](t, http.MethodGet, ts.URL+"/pipelines/missing", nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if result.Status != api.StatusError || result.Kind != "not found" {
		t.Errorf("unexpected error envelope: %+v", result)
	}

	status, _ = do[any](t, http.MethodPost, ts.URL+"/pipelines", api.TriggerRequest{})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing definition id, got %d", status)
	}

	status, _ = do[any](t, http.MethodGet, ts.URL+"/pipelines/history?definition=x&limit=abc", nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric limit, got %d", status)
	}

	status, _ = do[any](t, http.MethodGet, ts.URL+"/pipelines/history?definition=x&limit=-1", nil)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for negative limit, got %d", status)
	}

	status, _ = do[any](t, http.MethodPost, ts.URL+"/definitions/pipelines", domain.PipelineDefinition{Name: "api-pipeline"})
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate definition name, got %d", status)
	}
}

func TestPauseAndCancel(t *testing.T) {
	ts := newTestServer(t)
	p := ts.trigger(t)

	_, result := do[domain.Pipeline](t, http.MethodPost, ts.URL+"/pipelines/"+p.ID+"/pause", nil)
	if result.Entity.Status != domain.StatusPaused {
		t.Errorf("expected PAUSED, got %s", result.Entity.Status)
	}
	_, result = do[domain.Pipeline](t, http.MethodPost, ts.URL+"/pipelines/"+p.ID+"/cancel", nil)
	if !result.Entity.ShouldBeCanceled || result.Entity.Status != domain.StatusInProgress {
		t.Errorf("expected cancel flag and IN_PROGRESS, got %v %s", result.Entity.ShouldBeCanceled, result.Entity.Status)
	}
}

func TestHistoryPaging(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.trigger(t)
		time.Sleep(2 * time.Millisecond)
	}

	_, first := do[[]domain.Pipeline](t, http.MethodGet, ts.URL+"/pipelines/history?definition="+ts.def.ID+"&limit=2", nil)
	if len(first.Entity) != 2 {
		t.Fatalf("expected 2 items on first page, got %d", len(first.Entity))
	}
	cursor := first.Entity[1].ID
	_, second := do[[]domain.Pipeline](t, http.MethodGet, ts.URL+"/pipelines/history?definition="+ts.def.ID+"&limit=2&cursor="+cursor, nil)
	if len(second.Entity) != 1 {
		t.Fatalf("expected 1 item on second page, got %d", len(second.Entity))
	}
	for _, p := range first.Entity {
		if p.ID == second.Entity[0].ID {
			t.Errorf("expected pages not to overlap, %s repeated", p.ID)
		}
	}
}

func TestRerunStage(t *testing.T) {
	ts := newTestServer(t)
	p := ts.trigger(t)
	ts.prepare(t, p.ID)

	stored, _ := ts.pipelines.GetByID(context.Background(), p.ID)
	release := stored.CurrentStages()[1]
	keep := release.Jobs[1].JobDefinitionID

	status, result := do[domain.Pipeline](t, http.MethodPost, ts.URL+"/stages/"+release.ID+"/rerun",
		api.RerunRequest{JobDefinitionIDs: []string{keep}})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, result.Message)
	}
	got := result.Entity
	if len(got.StageRuns) != 2 {
		t.Fatalf("expected 2 stage runs, got %d", len(got.StageRuns))
	}
	stages := got.CurrentStages()
	if stages[0].Status != domain.StageSkipped || stages[1].Status != domain.StageInProgress {
		t.Errorf("expected [SKIPPED IN_PROGRESS], got [%s %s]", stages[0].Status, stages[1].Status)
	}
	if len(stages[1].Jobs) != 1 || stages[1].Jobs[0].JobDefinitionID != keep {
		t.Errorf("expected only the selected job, got %+v", stages[1].Jobs)
	}

	status, _ = do[any](t, http.MethodPost, ts.URL+"/stages/missing/rerun", api.RerunRequest{})
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown stage, got %d", status)
	}
}

func TestAgentWorkPoll(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	p := ts.trigger(t)
	ts.prepare(t, p.ID)

	status, added := do[domain.Agent](t, http.MethodPost, ts.URL+"/agents",
		domain.Agent{Name: "builder", Connected: true, Enabled: true})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	agentID := added.Entity.ID

	status, _ = do[any](t, http.MethodGet, ts.URL+"/agents/"+agentID+"/work", nil)
	if status != http.StatusNoContent {
		t.Errorf("expected 204 before assignment, got %d", status)
	}

	if _, err := scheduler.NewAssigner(ts.pipelines, ts.agents, 0, nil).Cycle(ctx); err != nil {
		t.Fatal(err)
	}
	status, work := do[domain.WorkInfo](t, http.MethodGet, ts.URL+"/agents/"+agentID+"/work", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 with work, got %d", status)
	}
	if work.Entity.JobDefinitionName != "compile" || work.Entity.Job.Status != domain.JobRunning {
		t.Errorf("unexpected work: %+v", work.Entity)
	}

	status, _ = do[any](t, http.MethodGet, ts.URL+"/agents/ghost/work", nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown agent, got %d", status)
	}
}

func TestMaterialsLatest(t *testing.T) {
	ts := newTestServer(t)
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, m := range []domain.Material{
		{ID: "m-1", MaterialDefinition: domain.MaterialDefinition{ID: "md"}, ChangeDate: older},
		{ID: "m-2", MaterialDefinition: domain.MaterialDefinition{ID: "md"}, ChangeDate: older.Add(time.Hour)},
	} {
		if status, _ := do[domain.Material](t, http.MethodPost, ts.URL+"/materials", m); status != http.StatusCreated {
			t.Fatalf("material %d: expected 201, got %d", i, status)
		}
	}
	_, result := do[domain.Material](t, http.MethodGet, ts.URL+"/materials/latest?definition=md", nil)
	if result.Entity.ID != "m-2" {
		t.Errorf("expected m-2, got %s", result.Entity.ID)
	}
}

package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rndsolutions/HawkCD/internal/definition"
	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/service"
	"github.com/rndsolutions/HawkCD/internal/store"
)

var baseTime = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	changes []domain.Change
}

func (r *recorder) Publish(c domain.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) count(entityType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.changes {
		if c.EntityType == entityType {
			n++
		}
	}
	return n
}

type fixture struct {
	pipelines    *service.PipelineService
	stages       *service.StageService
	jobs         *service.JobService
	agents       *service.AgentService
	pipelineRepo *store.Memory[domain.Pipeline]
	agentRepo    *store.Memory[domain.Agent]
	definitions  *definition.PipelineDefinitions
	materials    *definition.MaterialDefinitions
	notes        *recorder
	def          domain.PipelineDefinition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		pipelineRepo: store.NewMemory[domain.Pipeline]("pipeline"),
		agentRepo:    store.NewMemory[domain.Agent]("agent"),
		definitions:  definition.NewPipelineDefinitions(store.NewMemory[domain.PipelineDefinition]("pipeline definition")),
		materials:    definition.NewMaterialDefinitions(store.NewMemory[domain.MaterialDefinition]("material definition")),
		notes:        &recorder{},
	}

	def, err := f.definitions.Add(ctx, domain.PipelineDefinition{
		Name: "build-and-deploy",
		EnvironmentVariables: []domain.EnvironmentVariable{
			{Key: "GOFLAGS", Value: "-mod=mod"},
			{Key: domain.CountVariable, Value: "5"},
		},
		Environments: []domain.Environment{{Name: "staging"}},
		StageDefinitions: []domain.StageDefinition{
			{Name: "build", JobDefinitions: []domain.JobDefinition{{Name: "compile"}, {Name: "vet"}}},
			{Name: "test", JobDefinitions: []domain.JobDefinition{{Name: "unit"}, {Name: "integration"}}},
			{Name: "deploy", TriggeredManually: true, JobDefinitions: []domain.JobDefinition{{Name: "ship"}}},
		},
	})
	if err != nil {
		t.Fatalf("adding definition: %v", err)
	}
	f.def = def

	if _, err := f.materials.Add(ctx, domain.MaterialDefinition{
		Name: "rndsolutions/HawkCD", Type: "git", PipelineDefinitionID: def.ID,
		URL: "https://github.com/rndsolutions/HawkCD.git",
	}); err != nil {
		t.Fatalf("adding material definition: %v", err)
	}

	lock := &sync.Mutex{}
	f.pipelines = service.NewPipelineService(service.PipelineDeps{
		Repository:          f.pipelineRepo,
		Definitions:         f.definitions,
		MaterialDefinitions: f.materials,
		Notifier:            f.notes,
		Lock:                lock,
		Now:                 func() time.Time { return baseTime },
	})
	f.stages = service.NewStageService(f.pipelines)
	f.jobs = service.NewJobService(f.pipelines)
	f.agents = service.NewAgentService(service.AgentDeps{
		Repository: f.agentRepo,
		Pipelines:  f.pipelines,
		Notifier:   f.notes,
	})
	return f
}

// seedPrepared stores a prepared, in-progress run with its initial stage run.
func (f *fixture) seedPrepared(t *testing.T, id string, start time.Time) domain.Pipeline {
	t.Helper()
	p := domain.Pipeline{
		ID:                     id,
		PipelineDefinitionID:   f.def.ID,
		PipelineDefinitionName: f.def.Name,
		Status:                 domain.StatusInProgress,
		Prepared:               true,
		StartTime:              start,
		StageRuns:              []domain.StageRun{service.BuildInitialStageRun(f.def, id)},
	}
	if _, err := f.pipelineRepo.Add(context.Background(), p); err != nil {
		t.Fatalf("seeding pipeline %s: %v", id, err)
	}
	return p
}

// assignFirstJob marks the first job of the active stage as assigned to agentID.
func (f *fixture) assignFirstJob(t *testing.T, pipelineID, agentID string) domain.Job {
	t.Helper()
	ctx := context.Background()
	p, err := f.pipelineRepo.GetByID(ctx, pipelineID)
	if err != nil {
		t.Fatal(err)
	}
	job := &p.CurrentStages()[0].Jobs[0]
	job.Status = domain.JobAssigned
	job.AssignedAgentID = agentID
	if _, err := f.pipelineRepo.Update(ctx, p); err != nil {
		t.Fatal(err)
	}
	return *job
}

func (f *fixture) countValue(t *testing.T) string {
	t.Helper()
	def, err := f.definitions.GetByID(context.Background(), f.def.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range def.EnvironmentVariables {
		if v.Key == domain.CountVariable {
			return v.Value
		}
	}
	t.Fatal("COUNT variable missing")
	return ""
}

// Package service owns the pipeline lifecycle: run creation, queries,
// rerun, pause and cancel, the agent work-pull protocol, and the stage and
// job views over the pipeline aggregate.
//
// Stages and jobs have no storage of their own; every change to them is
// persisted by rewriting the owning pipeline. Operations that read and then
// write a pipeline or a definition's counters hold the process lock passed
// to NewPipelineService, which the preparer shares.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/logging"
)

const entityPipeline = "pipeline"

type nopNotifier struct{}

func (nopNotifier) Publish(domain.Change) {}

// PipelineDeps are the collaborators of a PipelineService. Lock must be the
// same value handed to every component that rewrites pipelines.
type PipelineDeps struct {
	Repository          domain.Repository[domain.Pipeline]
	Definitions         domain.PipelineDefinitionService
	MaterialDefinitions domain.MaterialDefinitionService
	Notifier            domain.Notifier
	Lock                sync.Locker
	Logger              *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// PipelineService manages pipeline runs.
type PipelineService struct {
	repo        domain.Repository[domain.Pipeline]
	definitions domain.PipelineDefinitionService
	materials   domain.MaterialDefinitionService
	notifier    domain.Notifier
	lock        sync.Locker
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipelineService creates a PipelineService. A nil Notifier drops
// changes and a nil Lock gets a private mutex.
func NewPipelineService(deps PipelineDeps) *PipelineService {
	s := &PipelineService{
		repo:        deps.Repository,
		definitions: deps.Definitions,
		materials:   deps.MaterialDefinitions,
		notifier:    deps.Notifier,
		lock:        deps.Lock,
		logger:      logging.OrDiscard(deps.Logger),
		now:         deps.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.lock == nil {
		s.lock = &sync.Mutex{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *PipelineService) GetByID(ctx context.Context, id string) (domain.Pipeline, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PipelineService) GetAll(ctx context.Context) ([]domain.Pipeline, error) {
	return s.repo.GetAll(ctx)
}

// Add creates a new run of p.PipelineDefinitionID. Only the definition id
// and trigger reason are taken from p. The definition's execution counters
// and COUNT variable are incremented and persisted before the run is stored.
func (s *PipelineService) Add(ctx context.Context, p domain.Pipeline) (domain.Pipeline, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	def, err := s.definitions.GetByID(ctx, p.PipelineDefinitionID)
	if err != nil {
		return domain.Pipeline{}, err
	}

	countIndex := -1
	for i, v := range def.EnvironmentVariables {
		if v.Key == domain.CountVariable {
			countIndex = i
			break
		}
	}
	if countIndex < 0 {
		return domain.Pipeline{}, domain.InvalidState("pipeline definition %s has no %s variable", def.Name, domain.CountVariable)
	}
	count, err := strconv.Atoi(strings.TrimSpace(def.EnvironmentVariables[countIndex].Value))
	if err != nil {
		return domain.Pipeline{}, domain.InvalidState("pipeline definition %s: %s is not a number: %q",
			def.Name, domain.CountVariable, def.EnvironmentVariables[countIndex].Value)
	}

	materials, err := s.materials.GetAllFromPipelineDefinition(ctx, def.ID)
	if err != nil {
		return domain.Pipeline{}, err
	}

	def.NumberOfExecutions++
	def.RevisionCount++
	def.EnvironmentVariables[countIndex].Value = strconv.Itoa(count + 1)

	run := buildPipeline(def, materials, s.now())
	run.ExecutionID = def.NumberOfExecutions
	run.TriggerReason = p.TriggerReason

	if _, err := s.definitions.Update(ctx, def); err != nil {
		return domain.Pipeline{}, err
	}
	return s.repo.Add(ctx, run)
}

// Update persists p and publishes the change.
func (s *PipelineService) Update(ctx context.Context, p domain.Pipeline) (domain.Pipeline, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.update(ctx, p)
}

// update requires the lock.
func (s *PipelineService) update(ctx context.Context, p domain.Pipeline) (domain.Pipeline, error) {
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return domain.Pipeline{}, err
	}
	s.notifier.Publish(domain.Change{
		EntityType: entityPipeline,
		Operation:  domain.OperationUpdate,
		Entity:     updated,
	})
	return updated, nil
}

// Mutate loads pipeline id, applies fn and persists the result, all under
// the lock. Nothing is written when fn returns an error.
func (s *PipelineService) Mutate(ctx context.Context, id string, fn func(*domain.Pipeline) error) (domain.Pipeline, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.mutate(ctx, id, fn)
}

func (s *PipelineService) mutate(ctx context.Context, id string, fn func(*domain.Pipeline) error) (domain.Pipeline, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if err := fn(&p); err != nil {
		return domain.Pipeline{}, err
	}
	return s.update(ctx, p)
}

func (s *PipelineService) Delete(ctx context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.Publish(domain.Change{
		EntityType: entityPipeline,
		Operation:  domain.OperationDelete,
		Entity:     domain.Pipeline{ID: id},
	})
	return nil
}

func (s *PipelineService) filter(ctx context.Context, keep func(domain.Pipeline) bool) ([]domain.Pipeline, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Pipeline, 0, len(all))
	for _, p := range all {
		if keep(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

// GetAllByDefinitionID returns the runs of one definition in storage order.
func (s *PipelineService) GetAllByDefinitionID(ctx context.Context, definitionID string) ([]domain.Pipeline, error) {
	return s.filter(ctx, func(p domain.Pipeline) bool {
		return p.PipelineDefinitionID == definitionID
	})
}

// GetAllNonupdatedPipelines returns runs whose materials are not all
// updated, oldest first.
func (s *PipelineService) GetAllNonupdatedPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	result, err := s.filter(ctx, func(p domain.Pipeline) bool {
		return !p.AreMaterialsUpdated()
	})
	if err != nil {
		return nil, err
	}
	sortByStartAscending(result)
	return result, nil
}

// GetAllUpdatedUnpreparedPipelinesInProgress returns the preparer's
// candidates, oldest first.
func (s *PipelineService) GetAllUpdatedUnpreparedPipelinesInProgress(ctx context.Context) ([]domain.Pipeline, error) {
	result, err := s.filter(ctx, func(p domain.Pipeline) bool {
		return p.AreMaterialsUpdated() && !p.Prepared && p.Status == domain.StatusInProgress
	})
	if err != nil {
		return nil, err
	}
	sortByStartAscending(result)
	return result, nil
}

// GetAllPreparedPipelinesInProgress returns prepared runs whose status or
// rerun status is IN_PROGRESS, oldest first.
func (s *PipelineService) GetAllPreparedPipelinesInProgress(ctx context.Context) ([]domain.Pipeline, error) {
	result, err := s.filter(ctx, func(p domain.Pipeline) bool {
		return p.Prepared && p.IsActive()
	})
	if err != nil {
		return nil, err
	}
	sortByStartAscending(result)
	return result, nil
}

// GetAllPreparedAwaitingPipelines returns prepared runs whose status or
// rerun status is AWAITING, oldest first.
func (s *PipelineService) GetAllPreparedAwaitingPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	result, err := s.filter(ctx, func(p domain.Pipeline) bool {
		return p.Prepared && (p.Status == domain.StatusAwaiting || p.RerunStatus == domain.StatusAwaiting)
	})
	if err != nil {
		return nil, err
	}
	sortByStartAscending(result)
	return result, nil
}

// GetLastRun returns the run of a definition with the highest execution id.
func (s *PipelineService) GetLastRun(ctx context.Context, definitionID string) (domain.Pipeline, error) {
	runs, err := s.GetAllByDefinitionID(ctx, definitionID)
	if err != nil {
		return domain.Pipeline{}, err
	}
	var last domain.Pipeline
	found := false
	for _, p := range runs {
		if !found || p.ExecutionID > last.ExecutionID {
			last = p
			found = true
		}
	}
	if !found {
		return domain.Pipeline{}, domain.NotFound("last run of pipeline definition", definitionID)
	}
	return last, nil
}

// GetAllPipelineHistory returns one page of a definition's runs, newest
// first, starting after the run with id cursor.
func (s *PipelineService) GetAllPipelineHistory(ctx context.Context, definitionID string, limit int, cursor string) ([]domain.Pipeline, error) {
	runs, err := s.GetAllByDefinitionID(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	sortByStartDescending(runs)
	return page(runs, limit, cursor)
}

// GetAllPipelineArtifacts returns one page of runs whose definition name
// contains search (case-insensitive), newest first.
func (s *PipelineService) GetAllPipelineArtifacts(ctx context.Context, search string, limit int, cursor string) ([]domain.Pipeline, error) {
	needle := strings.ToLower(search)
	runs, err := s.filter(ctx, func(p domain.Pipeline) bool {
		return strings.Contains(strings.ToLower(p.PipelineDefinitionName), needle)
	})
	if err != nil {
		return nil, err
	}
	sortByStartDescending(runs)
	return page(runs, limit, cursor)
}

// RerunStageWithSpecificJobs appends a stage run that restarts the pipeline
// at stage.StageDefinitionID with only the listed job definitions. Earlier
// stages are SKIPPED, later ones are rebuilt PENDING.
func (s *PipelineService) RerunStageWithSpecificJobs(ctx context.Context, stage domain.Stage, jobDefinitionIDs []string) (domain.Pipeline, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	def, err := s.definitions.GetByID(ctx, stage.PipelineDefinitionID)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if jobDefinitionIDs == nil {
		jobDefinitionIDs = []string{}
	}

	return s.mutate(ctx, stage.PipelineID, func(p *domain.Pipeline) error {
		if _, ok := def.StageDefinition(stage.StageDefinitionID); !ok {
			return domain.InvalidState("stage definition %s is not part of pipeline definition %s",
				stage.StageDefinitionID, def.Name)
		}
		run := domain.StageRun{ExecutionID: len(p.StageRuns) + 1}
		targetSeen := false
		for _, sd := range def.StageDefinitions {
			switch {
			case !targetSeen && sd.ID == stage.StageDefinitionID:
				rerun := buildStage(sd, p.ID, jobDefinitionIDs)
				rerun.Status = domain.StageInProgress
				run.Stages = append(run.Stages, rerun)
				targetSeen = true
			case !targetSeen:
				skipped := buildStage(sd, p.ID, nil)
				skipped.Status = domain.StageSkipped
				run.Stages = append(run.Stages, skipped)
			default:
				run.Stages = append(run.Stages, buildStage(sd, p.ID, nil))
			}
		}
		p.StageRuns = append(p.StageRuns, run)
		p.RerunStatus = domain.StatusInProgress
		return nil
	})
}

// CancelPipeline flags the run for cancellation and forces it back to
// IN_PROGRESS so the execution engine observes the flag. Stage statuses are
// left as they are.
func (s *PipelineService) CancelPipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	return s.Mutate(ctx, id, func(p *domain.Pipeline) error {
		p.ShouldBeCanceled = true
		p.Status = domain.StatusInProgress
		return nil
	})
}

// PausePipeline toggles a run between PAUSED and IN_PROGRESS, cascading the
// change to the stages of the current stage run.
func (s *PipelineService) PausePipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	return s.Mutate(ctx, id, func(p *domain.Pipeline) error {
		stages := p.CurrentStages()
		if p.IsActive() {
			p.Status = domain.StatusPaused
			for i := range stages {
				if stages[i].Status == domain.StageInProgress {
					stages[i].Status = domain.StagePaused
				}
			}
			s.logger.Info("Pipeline " + p.PipelineDefinitionName + " set to PAUSED.")
			return nil
		}

		p.Status = domain.StatusInProgress
		for i := range stages {
			if stages[i].Status == domain.StagePaused {
				stages[i].Status = domain.StageInProgress
				stages[i].TriggeredManually = false
			}
		}
		s.logger.Info("Pipeline " + p.PipelineDefinitionName + " set to IN_PROGRESS.")
		return nil
	})
}

package service

import (
	"context"
	"log/slog"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/logging"
)

const entityAgent = "agent"

// AgentDeps are the collaborators of an AgentService.
type AgentDeps struct {
	Repository domain.Repository[domain.Agent]
	Pipelines  *PipelineService
	Notifier   domain.Notifier
	Logger     *slog.Logger
}

// AgentService manages agents and hands them their assigned jobs.
type AgentService struct {
	repo      domain.Repository[domain.Agent]
	pipelines *PipelineService
	notifier  domain.Notifier
	logger    *slog.Logger
}

func NewAgentService(deps AgentDeps) *AgentService {
	s := &AgentService{
		repo:      deps.Repository,
		pipelines: deps.Pipelines,
		notifier:  deps.Notifier,
		logger:    logging.OrDiscard(deps.Logger),
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	return s
}

func (s *AgentService) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AgentService) GetAll(ctx context.Context) ([]domain.Agent, error) {
	return s.repo.GetAll(ctx)
}

// Add registers an agent, generating an id when it has none.
func (s *AgentService) Add(ctx context.Context, agent domain.Agent) (domain.Agent, error) {
	if agent.ID == "" {
		agent.ID = newID()
	}
	added, err := s.repo.Add(ctx, agent)
	if err != nil {
		return domain.Agent{}, err
	}
	s.publish(domain.OperationAdd, added)
	return added, nil
}

// Update replaces an agent. It shares the pipeline lock with ClaimForJob and
// GetWorkInfo so a reported state change is never overwritten by either.
func (s *AgentService) Update(ctx context.Context, agent domain.Agent) (domain.Agent, error) {
	s.pipelines.lock.Lock()
	defer s.pipelines.lock.Unlock()
	return s.update(ctx, agent)
}

// update requires the lock.
func (s *AgentService) update(ctx context.Context, agent domain.Agent) (domain.Agent, error) {
	updated, err := s.repo.Update(ctx, agent)
	if err != nil {
		return domain.Agent{}, err
	}
	s.publish(domain.OperationUpdate, updated)
	return updated, nil
}

func (s *AgentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(domain.OperationDelete, domain.Agent{ID: id})
	return nil
}

func (s *AgentService) publish(op domain.Operation, agent domain.Agent) {
	s.notifier.Publish(domain.Change{EntityType: entityAgent, Operation: op, Entity: agent})
}

// GetAllAssignableAgents returns connected, enabled, idle agents without a
// job, in storage order.
func (s *AgentService) GetAllAssignableAgents(ctx context.Context) ([]domain.Agent, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var result []domain.Agent
	for _, a := range all {
		if a.IsAssignable() {
			result = append(result, a)
		}
	}
	return result, nil
}

// ClaimForJob flags agent id as assigned, re-reading it under the lock. It
// fails with InvalidState when the agent stopped being assignable since it
// was listed.
func (s *AgentService) ClaimForJob(ctx context.Context, id string) (domain.Agent, error) {
	s.pipelines.lock.Lock()
	defer s.pipelines.lock.Unlock()

	agent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Agent{}, err
	}
	if !agent.IsAssignable() {
		return domain.Agent{}, domain.InvalidState("agent %s is no longer assignable", id)
	}
	agent.Assigned = true
	return s.update(ctx, agent)
}

// GetWorkInfo hands agentID the job assigned to it, moving the job to
// RUNNING. The bool result is false when the agent has no job; an agent
// flagged assigned whose job can no longer be found is reset to unassigned.
func (s *AgentService) GetWorkInfo(ctx context.Context, agentID string) (domain.WorkInfo, bool, error) {
	s.pipelines.lock.Lock()
	defer s.pipelines.lock.Unlock()

	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return domain.WorkInfo{}, false, err
	}
	if !agent.Assigned {
		return domain.WorkInfo{}, false, nil
	}

	candidates, err := s.pipelines.GetAllPreparedPipelinesInProgress(ctx)
	if err != nil {
		return domain.WorkInfo{}, false, err
	}
	for i := range candidates {
		p := &candidates[i]
		stage := activeStage(p)
		if stage == nil {
			continue
		}
		for j := range stage.Jobs {
			job := &stage.Jobs[j]
			if job.Status != domain.JobAssigned || job.AssignedAgentID != agentID {
				continue
			}

			job.Status = domain.JobRunning
			if _, err := s.pipelines.update(ctx, *p); err != nil {
				return domain.WorkInfo{}, false, err
			}
			return domain.WorkInfo{
				PipelineDefinitionName: p.PipelineDefinitionName,
				PipelineExecutionID:    p.ExecutionID,
				StageDefinitionName:    stage.StageDefinitionName,
				JobDefinitionName:      job.JobDefinitionName,
				Job:                    *job,
			}, true, nil
		}
	}

	agent.Assigned = false
	if _, err := s.update(ctx, agent); err != nil {
		return domain.WorkInfo{}, false, err
	}
	s.logger.Info("agent has no assigned job, cleared assignment", "agent_id", agentID)
	return domain.WorkInfo{}, false, nil
}

// activeStage returns the first IN_PROGRESS stage of the current stage run.
func activeStage(p *domain.Pipeline) *domain.Stage {
	stages := p.CurrentStages()
	for i := range stages {
		if stages[i].Status == domain.StageInProgress {
			return &stages[i]
		}
	}
	return nil
}

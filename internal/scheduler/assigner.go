package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/logging"
	"github.com/rndsolutions/HawkCD/internal/service"
)

// DefaultAssignInterval is the pause between assigner cycles.
const DefaultAssignInterval = 2 * time.Second

var errNothingToAssign = errors.New("no pending job in active stage")

// Assigner hands the pending jobs of active stages to assignable agents.
// An agent receives at most one job per cycle and picks it up through the
// work-pull protocol.
type Assigner struct {
	pipelines *service.PipelineService
	agents    *service.AgentService
	interval  time.Duration
	logger    *slog.Logger
}

// NewAssigner creates an Assigner. A non-positive interval uses
// DefaultAssignInterval.
func NewAssigner(pipelines *service.PipelineService, agents *service.AgentService, interval time.Duration, logger *slog.Logger) *Assigner {
	if interval <= 0 {
		interval = DefaultAssignInterval
	}
	return &Assigner{pipelines: pipelines, agents: agents, interval: interval, logger: logging.OrDiscard(logger)}
}

// Run assigns jobs every interval until ctx is done.
func (a *Assigner) Run(ctx context.Context) error {
	return run(ctx, "assigner", a.interval, a, a.logger)
}

// Cycle assigns as many pending jobs as there are assignable agents, oldest
// pipeline first, and returns the number of jobs assigned. A job whose agent
// cannot be claimed afterwards is released back to PENDING.
func (a *Assigner) Cycle(ctx context.Context) (int, error) {
	idle, err := a.agents.GetAllAssignableAgents(ctx)
	if err != nil || len(idle) == 0 {
		return 0, err
	}
	candidates, err := a.pipelines.GetAllPreparedPipelinesInProgress(ctx)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, candidate := range candidates {
		if len(idle) == 0 {
			break
		}
		var taken []domain.Agent
		_, err := a.pipelines.Mutate(ctx, candidate.ID, func(p *domain.Pipeline) error {
			taken = taken[:0]
			if p.ShouldBeCanceled || p.Status == domain.StatusPaused {
				return errNothingToAssign
			}
			stages := p.CurrentStages()
			for i := range stages {
				if stages[i].Status != domain.StageInProgress {
					continue
				}
				for j := range stages[i].Jobs {
					job := &stages[i].Jobs[j]
					if job.Status != domain.JobPending || len(taken) == len(idle) {
						continue
					}
					agent := idle[len(taken)]
					job.Status = domain.JobAssigned
					job.AssignedAgentID = agent.ID
					taken = append(taken, agent)
				}
				break
			}
			if len(taken) == 0 {
				return errNothingToAssign
			}
			return nil
		})
		if errors.Is(err, errNothingToAssign) {
			continue
		}
		if err != nil {
			a.logger.Warn("job assignment failed", "pipeline_id", candidate.ID, "error", err)
			continue
		}

		var released []string
		for _, agent := range taken {
			if _, err := a.agents.ClaimForJob(ctx, agent.ID); err != nil {
				a.logger.Warn("claiming agent failed, releasing job", "pipeline_id", candidate.ID, "agent_id", agent.ID, "error", err)
				released = append(released, agent.ID)
				continue
			}
			assigned++
			a.logger.Info("job assigned", "pipeline_id", candidate.ID, "agent_id", agent.ID)
		}
		if len(released) > 0 {
			if err := a.release(ctx, candidate.ID, released); err != nil {
				a.logger.Error("releasing jobs failed", "pipeline_id", candidate.ID, "agents", released, "error", err)
			}
		}
		idle = idle[len(taken):]
	}
	return assigned, nil
}

// release puts the jobs assigned to agentIDs in the current stage run back to
// PENDING so a later cycle can hand them out again.
func (a *Assigner) release(ctx context.Context, pipelineID string, agentIDs []string) error {
	_, err := a.pipelines.Mutate(ctx, pipelineID, func(p *domain.Pipeline) error {
		stages := p.CurrentStages()
		for i := range stages {
			for j := range stages[i].Jobs {
				job := &stages[i].Jobs[j]
				if job.Status == domain.JobAssigned && slices.Contains(agentIDs, job.AssignedAgentID) {
					job.Status = domain.JobPending
					job.AssignedAgentID = ""
				}
			}
		}
		return nil
	})
	return err
}

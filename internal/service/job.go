package service

import (
	"context"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// JobService reads and writes the jobs of each pipeline's current stage run.
type JobService struct {
	pipelines *PipelineService
}

func NewJobService(pipelines *PipelineService) *JobService {
	return &JobService{pipelines: pipelines}
}

func (s *JobService) GetByID(ctx context.Context, id string) (domain.Job, error) {
	jobs, err := s.GetAll(ctx)
	if err != nil {
		return domain.Job{}, err
	}
	for _, job := range jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return domain.Job{}, domain.NotFound("job", id)
}

func (s *JobService) GetAll(ctx context.Context) ([]domain.Job, error) {
	all, err := s.pipelines.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var jobs []domain.Job
	for i := range all {
		for _, stage := range all[i].CurrentStages() {
			jobs = append(jobs, stage.Jobs...)
		}
	}
	return jobs, nil
}

// Update replaces the job inside its stage of the current stage run and
// persists the owning pipeline.
func (s *JobService) Update(ctx context.Context, job domain.Job) (domain.Job, error) {
	_, err := s.pipelines.Mutate(ctx, job.PipelineID, func(p *domain.Pipeline) error {
		return replaceJob(p, job)
	})
	if err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func replaceJob(p *domain.Pipeline, job domain.Job) error {
	stages := p.CurrentStages()
	for i := range stages {
		if stages[i].ID != job.StageID {
			continue
		}
		for j := range stages[i].Jobs {
			if stages[i].Jobs[j].ID == job.ID {
				stages[i].Jobs[j] = job
				return nil
			}
		}
	}
	return domain.NotFound("job", job.ID)
}

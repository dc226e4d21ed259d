package service

import (
	"context"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// StageService reads and writes the stages of each pipeline's current
// stage run.
type StageService struct {
	pipelines *PipelineService
}

func NewStageService(pipelines *PipelineService) *StageService {
	return &StageService{pipelines: pipelines}
}

// GetByID scans the current stages of every pipeline; the first match wins.
func (s *StageService) GetByID(ctx context.Context, id string) (domain.Stage, error) {
	all, err := s.pipelines.GetAll(ctx)
	if err != nil {
		return domain.Stage{}, err
	}
	for i := range all {
		for _, stage := range all[i].CurrentStages() {
			if stage.ID == id {
				return stage, nil
			}
		}
	}
	return domain.Stage{}, domain.NotFound("stage", id)
}

func (s *StageService) GetAll(ctx context.Context) ([]domain.Stage, error) {
	all, err := s.pipelines.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var stages []domain.Stage
	for i := range all {
		stages = append(stages, all[i].CurrentStages()...)
	}
	return stages, nil
}

// Update replaces the stage with the same id in the current stage run of
// stage.PipelineID and persists the whole pipeline.
func (s *StageService) Update(ctx context.Context, stage domain.Stage) (domain.Stage, error) {
	_, err := s.pipelines.Mutate(ctx, stage.PipelineID, func(p *domain.Pipeline) error {
		stages := p.CurrentStages()
		for i := range stages {
			if stages[i].ID == stage.ID {
				stages[i] = stage
				return nil
			}
		}
		return domain.NotFound("stage", stage.ID)
	})
	if err != nil {
		return domain.Stage{}, err
	}
	return stage, nil
}

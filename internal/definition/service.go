// Package definition stores pipeline and material definitions and imports
// them from YAML files.
package definition

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// PipelineDefinitions is CRUD over pipeline definitions.
type PipelineDefinitions struct {
	repo domain.Repository[domain.PipelineDefinition]
	mu   sync.Mutex // serializes the name check and insert in Add
}

var _ domain.PipelineDefinitionService = (*PipelineDefinitions)(nil)

// NewPipelineDefinitions creates a service backed by repo.
func NewPipelineDefinitions(repo domain.Repository[domain.PipelineDefinition]) *PipelineDefinitions {
	return &PipelineDefinitions{repo: repo}
}

func (s *PipelineDefinitions) GetByID(ctx context.Context, id string) (domain.PipelineDefinition, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PipelineDefinitions) GetAll(ctx context.Context) ([]domain.PipelineDefinition, error) {
	return s.repo.GetAll(ctx)
}

// GetByName returns the first definition with the given name,
// case-insensitively.
func (s *PipelineDefinitions) GetByName(ctx context.Context, name string) (domain.PipelineDefinition, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return domain.PipelineDefinition{}, err
	}
	for _, def := range all {
		if strings.EqualFold(def.Name, name) {
			return def, nil
		}
	}
	return domain.PipelineDefinition{}, domain.NotFound("pipeline definition", name)
}

// Add stores a new definition. Missing ids are generated, child
// definitions are linked to their parents, and a COUNT variable starting at
// 0 is added when absent. Names must be unique.
func (s *PipelineDefinitions) Add(ctx context.Context, def domain.PipelineDefinition) (domain.PipelineDefinition, error) {
	if strings.TrimSpace(def.Name) == "" {
		return domain.PipelineDefinition{}, domain.InvalidState("pipeline definition name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.GetByName(ctx, def.Name); err == nil {
		return domain.PipelineDefinition{}, domain.AlreadyExists("pipeline definition", def.Name)
	} else if domain.KindOf(err) != domain.KindNotFound {
		return domain.PipelineDefinition{}, err
	}
	return s.repo.Add(ctx, normalize(def))
}

func (s *PipelineDefinitions) Update(ctx context.Context, def domain.PipelineDefinition) (domain.PipelineDefinition, error) {
	return s.repo.Update(ctx, def)
}

func (s *PipelineDefinitions) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func normalize(def domain.PipelineDefinition) domain.PipelineDefinition {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	hasCount := false
	for _, v := range def.EnvironmentVariables {
		if v.Key == domain.CountVariable {
			hasCount = true
			break
		}
	}
	if !hasCount {
		def.EnvironmentVariables = append(def.EnvironmentVariables, domain.EnvironmentVariable{Key: domain.CountVariable, Value: "0"})
	}
	for i := range def.Environments {
		if def.Environments[i].ID == "" {
			def.Environments[i].ID = uuid.New().String()
		}
	}
	for i := range def.StageDefinitions {
		stage := &def.StageDefinitions[i]
		if stage.ID == "" {
			stage.ID = uuid.New().String()
		}
		stage.PipelineDefinitionID = def.ID
		for j := range stage.JobDefinitions {
			job := &stage.JobDefinitions[j]
			if job.ID == "" {
				job.ID = uuid.New().String()
			}
			job.StageDefinitionID = stage.ID
			job.PipelineDefinitionID = def.ID
		}
	}
	return def
}

// MaterialDefinitions is CRUD over material definitions.
type MaterialDefinitions struct {
	repo domain.Repository[domain.MaterialDefinition]
}

var _ domain.MaterialDefinitionService = (*MaterialDefinitions)(nil)

// NewMaterialDefinitions creates a service backed by repo.
func NewMaterialDefinitions(repo domain.Repository[domain.MaterialDefinition]) *MaterialDefinitions {
	return &MaterialDefinitions{repo: repo}
}

func (s *MaterialDefinitions) GetByID(ctx context.Context, id string) (domain.MaterialDefinition, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MaterialDefinitions) GetAll(ctx context.Context) ([]domain.MaterialDefinition, error) {
	return s.repo.GetAll(ctx)
}

func (s *MaterialDefinitions) Add(ctx context.Context, def domain.MaterialDefinition) (domain.MaterialDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	return s.repo.Add(ctx, def)
}

func (s *MaterialDefinitions) Update(ctx context.Context, def domain.MaterialDefinition) (domain.MaterialDefinition, error) {
	return s.repo.Update(ctx, def)
}

func (s *MaterialDefinitions) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// GetAllFromPipelineDefinition returns the material definitions attached to
// a pipeline definition, in storage order.
func (s *MaterialDefinitions) GetAllFromPipelineDefinition(ctx context.Context, pipelineDefinitionID string) ([]domain.MaterialDefinition, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var result []domain.MaterialDefinition
	for _, def := range all {
		if def.PipelineDefinitionID == pipelineDefinitionID {
			result = append(result, def)
		}
	}
	return result, nil
}

// Package material tracks concrete material revisions reported by the
// change watcher and parses git material sources.
package material

import (
	"context"
	"sort"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// Service is CRUD over stored materials plus latest-revision lookup.
type Service struct {
	repo domain.Repository[domain.Material]
}

// NewService creates a Service backed by repo.
func NewService(repo domain.Repository[domain.Material]) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Material, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetAll(ctx context.Context) ([]domain.Material, error) {
	return s.repo.GetAll(ctx)
}

func (s *Service) Add(ctx context.Context, m domain.Material) (domain.Material, error) {
	return s.repo.Add(ctx, m)
}

func (s *Service) Update(ctx context.Context, m domain.Material) (domain.Material, error) {
	return s.repo.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// GetLatestMaterial returns the material of the given definition with the
// most recent ChangeDate.
func (s *Service) GetLatestMaterial(ctx context.Context, materialDefinitionID string) (domain.Material, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return domain.Material{}, err
	}

	var matching []domain.Material
	for _, m := range all {
		if m.MaterialDefinition.ID == materialDefinitionID {
			matching = append(matching, m)
		}
	}
	if len(matching) == 0 {
		return domain.Material{}, domain.NotFound("material for definition", materialDefinitionID)
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].ChangeDate.After(matching[j].ChangeDate)
	})
	return matching[0], nil
}

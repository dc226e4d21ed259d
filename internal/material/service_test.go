package material_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/material"
	"github.com/rndsolutions/HawkCD/internal/store"
)

func TestGetLatestMaterial_PicksNewestChangeDate(t *testing.T) {
	ctx := context.Background()
	svc := material.NewService(store.NewMemory[domain.Material]("material"))
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	def := domain.MaterialDefinition{ID: "md-1"}

	materials := []domain.Material{
		{ID: "m-old", MaterialDefinition: def, ChangeDate: base},
		{ID: "m-new", MaterialDefinition: def, ChangeDate: base.Add(2 * time.Hour)},
		{ID: "m-mid", MaterialDefinition: def, ChangeDate: base.Add(time.Hour)},
		{ID: "m-other", MaterialDefinition: domain.MaterialDefinition{ID: "md-2"}, ChangeDate: base.Add(5 * time.Hour)},
	}
	for _, m := range materials {
		if _, err := svc.Add(ctx, m); err != nil {
			t.Fatalf("Add %s: %v", m.ID, err)
		}
	}

	latest, err := svc.GetLatestMaterial(ctx, "md-1")
	if err != nil {
		t.Fatalf("GetLatestMaterial: %v", err)
	}
	if latest.ID != "m-new" {
		t.Errorf("expected m-new, got %s", latest.ID)
	}
}

func TestGetLatestMaterial_NotFound(t *testing.T) {
	svc := material.NewService(store.NewMemory[domain.Material]("material"))
	_, err := svc.GetLatestMaterial(context.Background(), "md-missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

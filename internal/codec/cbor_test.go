package codec_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/rndsolutions/HawkCD/internal/codec"
	"github.com/rndsolutions/HawkCD/internal/domain"
)

func TestMarshal_IsDeterministic(t *testing.T) {
	p := domain.Pipeline{
		ID:                   "p-1",
		PipelineDefinitionID: "def-1",
		ExecutionID:          3,
		Status:               domain.StatusInProgress,
	}
	first, err := codec.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := codec.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("expected identical encodings, got %x and %x", first, second)
	}
}

func TestClone_KeepsSubSecondStartTime(t *testing.T) {
	start := time.Date(2026, 10, 19, 8, 30, 0, 123456789, time.UTC)
	p := domain.Pipeline{ID: "p-1", StartTime: start}

	clone, err := codec.Clone(p)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !clone.StartTime.Equal(start) {
		t.Errorf("expected start time %v, got %v", start, clone.StartTime)
	}
}

func TestClone_IsDeep(t *testing.T) {
	p := domain.Pipeline{
		ID:        "p-1",
		StageRuns: []domain.StageRun{{ExecutionID: 1, Stages: []domain.Stage{{ID: "s-1", Status: domain.StageInProgress}}}},
	}
	clone, err := codec.Clone(p)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	clone.StageRuns[0].Stages[0].Status = domain.StagePaused
	if p.StageRuns[0].Stages[0].Status != domain.StageInProgress {
		t.Error("expected mutation of the clone not to reach the original")
	}
}

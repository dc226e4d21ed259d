package service

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

func newID() string {
	return uuid.New().String()
}

// buildPipeline creates a run of def. The stage graph is left empty; the
// preparer fills it in once materials are updated.
func buildPipeline(def domain.PipelineDefinition, materials []domain.MaterialDefinition, now time.Time) domain.Pipeline {
	p := domain.Pipeline{
		ID:                     newID(),
		PipelineDefinitionID:   def.ID,
		PipelineDefinitionName: def.Name,
		Status:                 domain.StatusInProgress,
		StartTime:              now,
		Materials:              make([]domain.Material, 0, len(materials)),
	}
	for _, md := range materials {
		p.Materials = append(p.Materials, domain.Material{
			ID:                   newID(),
			PipelineDefinitionID: def.ID,
			MaterialDefinition:   md,
		})
	}
	return p
}

// buildStage creates a stage of pipelineID from sd. When only is non-nil,
// just the job definitions it contains are included.
func buildStage(sd domain.StageDefinition, pipelineID string, only []string) domain.Stage {
	stage := domain.Stage{
		ID:                   newID(),
		StageDefinitionID:    sd.ID,
		StageDefinitionName:  sd.Name,
		PipelineID:           pipelineID,
		PipelineDefinitionID: sd.PipelineDefinitionID,
		Status:               domain.StagePending,
		TriggeredManually:    sd.TriggeredManually,
		Jobs:                 []domain.Job{},
	}
	for _, jd := range sd.JobDefinitions {
		if only != nil && !slices.Contains(only, jd.ID) {
			continue
		}
		stage.Jobs = append(stage.Jobs, domain.Job{
			ID:                   newID(),
			JobDefinitionID:      jd.ID,
			JobDefinitionName:    jd.Name,
			StageID:              stage.ID,
			PipelineID:           pipelineID,
			Status:               domain.JobPending,
			Tasks:                slices.Clone(jd.Tasks),
			EnvironmentVariables: slices.Clone(jd.EnvironmentVariables),
		})
	}
	return stage
}

// BuildInitialStageRun creates the first stage run of a pipeline: every
// stage of def with the first one in progress.
func BuildInitialStageRun(def domain.PipelineDefinition, pipelineID string) domain.StageRun {
	run := domain.StageRun{ExecutionID: 1, Stages: make([]domain.Stage, 0, len(def.StageDefinitions))}
	for i, sd := range def.StageDefinitions {
		stage := buildStage(sd, pipelineID, nil)
		if i == 0 {
			stage.Status = domain.StageInProgress
		}
		run.Stages = append(run.Stages, stage)
	}
	return run
}

// FlattenJobDefinitions gathers the job definitions of every stage of def
// into one list, in stage order.
func FlattenJobDefinitions(def domain.PipelineDefinition) []domain.JobDefinition {
	var jobs []domain.JobDefinition
	for _, sd := range def.StageDefinitions {
		jobs = append(jobs, sd.JobDefinitions...)
	}
	return jobs
}

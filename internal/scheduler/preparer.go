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

// DefaultPrepareInterval is the pause between preparer cycles.
const DefaultPrepareInterval = 4 * time.Second

var errNoLongerCandidate = errors.New("pipeline is no longer a preparation candidate")

// Preparer promotes runs whose materials are updated into prepared runs
// with a concrete stage graph.
type Preparer struct {
	pipelines   *service.PipelineService
	definitions domain.PipelineDefinitionService
	interval    time.Duration
	logger      *slog.Logger
}

// NewPreparer creates a Preparer. A non-positive interval uses
// DefaultPrepareInterval.
func NewPreparer(pipelines *service.PipelineService, definitions domain.PipelineDefinitionService, interval time.Duration, logger *slog.Logger) *Preparer {
	if interval <= 0 {
		interval = DefaultPrepareInterval
	}
	return &Preparer{
		pipelines:   pipelines,
		definitions: definitions,
		interval:    interval,
		logger:      logging.OrDiscard(logger),
	}
}

// Run prepares candidates every interval until ctx is done.
func (p *Preparer) Run(ctx context.Context) error {
	return run(ctx, "preparer", p.interval, p, p.logger)
}

// Cycle prepares every current candidate, oldest first, and returns how many
// were prepared. A candidate that fails is logged and skipped; only a failure
// to list candidates is returned.
func (p *Preparer) Cycle(ctx context.Context) (int, error) {
	candidates, err := p.pipelines.GetAllUpdatedUnpreparedPipelinesInProgress(ctx)
	if err != nil {
		return 0, err
	}

	prepared := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return prepared, ctx.Err()
		}
		def, err := p.definitions.GetByID(ctx, candidate.PipelineDefinitionID)
		if err != nil {
			p.logger.Warn("skipping pipeline, definition unavailable",
				"pipeline_id", candidate.ID, "definition_id", candidate.PipelineDefinitionID, "error", err)
			continue
		}

		_, err = p.pipelines.Mutate(ctx, candidate.ID, func(pipeline *domain.Pipeline) error {
			// A request may have changed the run since the candidate list was read.
			if pipeline.Prepared || pipeline.Status != domain.StatusInProgress || !pipeline.AreMaterialsUpdated() {
				return errNoLongerCandidate
			}
			prepare(pipeline, def)
			return nil
		})
		switch {
		case errors.Is(err, errNoLongerCandidate):
			continue
		case err != nil:
			p.logger.Warn("skipping pipeline, prepare failed", "pipeline_id", candidate.ID, "error", err)
			continue
		}
		prepared++
		p.logger.Info("pipeline prepared", "pipeline_id", candidate.ID, "pipeline", candidate.PipelineDefinitionName,
			"execution_id", candidate.ExecutionID)
	}
	return prepared, nil
}

// prepare copies the definition's environment onto the run, gathers every
// job definition into JobsForExecution and builds the first stage run.
func prepare(pipeline *domain.Pipeline, def domain.PipelineDefinition) {
	pipeline.Environments = slices.Clone(def.Environments)
	pipeline.EnvironmentVariables = slices.Clone(def.EnvironmentVariables)
	pipeline.JobsForExecution = service.FlattenJobDefinitions(def)
	if len(pipeline.StageRuns) == 0 {
		pipeline.StageRuns = append(pipeline.StageRuns, service.BuildInitialStageRun(def, pipeline.ID))
	}
	pipeline.Prepared = true
}

package domain

import "time"

// PipelineStatus represents the execution state of a pipeline run.
// The same set of values is used for both Status and RerunStatus.
type PipelineStatus string

const (
	StatusAwaiting   PipelineStatus = "AWAITING"
	StatusInProgress PipelineStatus = "IN_PROGRESS"
	StatusPaused     PipelineStatus = "PAUSED"
	StatusSuccess    PipelineStatus = "SUCCESS"
	StatusFailed     PipelineStatus = "FAILED"
)

// StageStatus represents the execution state of a stage.
type StageStatus string

const (
	StagePending    StageStatus = "PENDING"
	StageInProgress StageStatus = "IN_PROGRESS"
	StageSuccess    StageStatus = "SUCCESS"
	StageFailed     StageStatus = "FAILED"
	StageSkipped    StageStatus = "SKIPPED"
	StagePaused     StageStatus = "PAUSED"
)

// JobStatus represents the execution state of a job.
type JobStatus string

const (
	JobPending  JobStatus = "PENDING"
	JobAssigned JobStatus = "ASSIGNED"
	JobRunning  JobStatus = "RUNNING"
	JobSuccess  JobStatus = "SUCCESS"
	JobFailed   JobStatus = "FAILED"
)

// Task is a single instruction executed by an agent as part of a job.
type Task struct {
	Name      string   `json:"name"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments,omitempty"`
	RunIf     string   `json:"runIf,omitempty"`
}

// Job is one unit of work inside a stage. It is owned by value by its stage
// and has no storage of its own.
type Job struct {
	ID                   string                `json:"id"`
	JobDefinitionID      string                `json:"jobDefinitionId"`
	JobDefinitionName    string                `json:"jobDefinitionName"`
	StageID              string                `json:"stageId"`
	PipelineID           string                `json:"pipelineId"`
	Status               JobStatus             `json:"status"`
	AssignedAgentID      string                `json:"assignedAgentId,omitempty"`
	Tasks                []Task                `json:"tasks,omitempty"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables,omitempty"`
}

// Stage is one step of a pipeline run holding an ordered list of jobs.
type Stage struct {
	ID                   string      `json:"id"`
	StageDefinitionID    string      `json:"stageDefinitionId"`
	StageDefinitionName  string      `json:"stageDefinitionName"`
	PipelineID           string      `json:"pipelineId"`
	PipelineDefinitionID string      `json:"pipelineDefinitionId"`
	Status               StageStatus `json:"status"`
	TriggeredManually    bool        `json:"triggeredManually"`
	Jobs                 []Job       `json:"jobs"`
}

// StageRun is one execution attempt of a pipeline's stage graph.
// ExecutionID is 1-based.
type StageRun struct {
	ExecutionID int     `json:"executionId"`
	Stages      []Stage `json:"stages"`
}

// Material is a versioned reference to an external change source attached
// to a pipeline run.
type Material struct {
	ID                   string             `json:"id"`
	PipelineDefinitionID string             `json:"pipelineDefinitionId"`
	MaterialDefinition   MaterialDefinition `json:"materialDefinition"`
	Updated              bool               `json:"updated"`
	ChangeDate           time.Time          `json:"changeDate"`
}

// Key implements Entity.
func (m Material) Key() string { return m.ID }

// Pipeline is one triggered run of a pipeline definition.
//
// StageRuns is append-only: only the last element may be mutated, every
// earlier run is history.
type Pipeline struct {
	ID                     string                `json:"id"`
	PipelineDefinitionID   string                `json:"pipelineDefinitionId"`
	PipelineDefinitionName string                `json:"pipelineDefinitionName"`
	ExecutionID            int                   `json:"executionId"`
	Status                 PipelineStatus        `json:"status"`
	RerunStatus            PipelineStatus        `json:"rerunStatus,omitempty"`
	TriggerReason          string                `json:"triggerReason,omitempty"`
	Materials              []Material            `json:"materials"`
	Environments           []Environment         `json:"environments,omitempty"`
	EnvironmentVariables   []EnvironmentVariable `json:"environmentVariables,omitempty"`
	JobsForExecution       []JobDefinition       `json:"jobsForExecution,omitempty"`
	Prepared               bool                  `json:"prepared"`
	ShouldBeCanceled       bool                  `json:"shouldBeCanceled"`
	StartTime              time.Time             `json:"startTime"`
	EndTime                time.Time             `json:"endTime"`
	StageRuns              []StageRun            `json:"stageRuns"`
}

// Key implements Entity.
func (p Pipeline) Key() string { return p.ID }

// AreMaterialsUpdated reports whether every attached material has been
// marked updated. A pipeline without materials counts as updated.
func (p Pipeline) AreMaterialsUpdated() bool {
	for _, m := range p.Materials {
		if !m.Updated {
			return false
		}
	}
	return true
}

// CurrentStageRun returns the last stage run, or nil if none exists yet.
func (p *Pipeline) CurrentStageRun() *StageRun {
	if len(p.StageRuns) == 0 {
		return nil
	}
	return &p.StageRuns[len(p.StageRuns)-1]
}

// CurrentStages returns the stages of the last stage run. The returned slice
// aliases the pipeline, so writes through it mutate the current run.
func (p *Pipeline) CurrentStages() []Stage {
	run := p.CurrentStageRun()
	if run == nil {
		return nil
	}
	return run.Stages
}

// IsActive reports whether the pipeline or its rerun is in progress.
func (p Pipeline) IsActive() bool {
	return p.Status == StatusInProgress || p.RerunStatus == StatusInProgress
}

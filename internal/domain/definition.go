package domain

// CountVariable is the environment variable used as a per-definition
// execution counter.
const CountVariable = "COUNT"

// EnvironmentVariable is a key/value pair exported to tasks.
type EnvironmentVariable struct {
	Key    string `json:"key" yaml:"key"`
	Value  string `json:"value" yaml:"value"`
	Secret bool   `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// Environment is a named group of environment variables.
type Environment struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables,omitempty"`
}

// JobDefinition is the template a Job is built from.
type JobDefinition struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	StageDefinitionID    string                `json:"stageDefinitionId"`
	PipelineDefinitionID string                `json:"pipelineDefinitionId"`
	Tasks                []Task                `json:"tasks,omitempty"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables,omitempty"`
}

// StageDefinition is the template a Stage is built from.
type StageDefinition struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	PipelineDefinitionID string          `json:"pipelineDefinitionId"`
	TriggeredManually    bool            `json:"triggeredManually"`
	JobDefinitions       []JobDefinition `json:"jobDefinitions"`
}

// PipelineDefinition is the reusable template pipeline runs are created from.
type PipelineDefinition struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	StageDefinitions     []StageDefinition     `json:"stageDefinitions"`
	Environments         []Environment         `json:"environments,omitempty"`
	EnvironmentVariables []EnvironmentVariable `json:"environmentVariables"`
	NumberOfExecutions   int                   `json:"numberOfExecutions"`
	RevisionCount        int                   `json:"revisionCount"`
}

// Key implements Entity.
func (d PipelineDefinition) Key() string { return d.ID }

// StageDefinition returns the first stage definition with the given id.
func (d PipelineDefinition) StageDefinition(id string) (StageDefinition, bool) {
	for _, s := range d.StageDefinitions {
		if s.ID == id {
			return s, true
		}
	}
	return StageDefinition{}, false
}

// MaterialDefinition describes an external source a pipeline watches.
type MaterialDefinition struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	PipelineDefinitionID string `json:"pipelineDefinitionId"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	Branch               string `json:"branch,omitempty"`
	Revision             string `json:"revision,omitempty"`
}

// Key implements Entity.
func (d MaterialDefinition) Key() string { return d.ID }

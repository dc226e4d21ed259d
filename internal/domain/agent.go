package domain

import "time"

// Agent is a worker process that polls the server for jobs.
type Agent struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	HostName         string    `json:"hostName,omitempty"`
	IPAddress        string    `json:"ipAddress,omitempty"`
	OperatingSystem  string    `json:"operatingSystem,omitempty"`
	Resources        []string  `json:"resources,omitempty"`
	Connected        bool      `json:"connected"`
	Enabled          bool      `json:"enabled"`
	Running          bool      `json:"running"`
	Assigned         bool      `json:"assigned"`
	LastReportedTime time.Time `json:"lastReportedTime"`
}

// Key implements Entity.
func (a Agent) Key() string { return a.ID }

// IsAssignable reports whether the agent can take a new job: connected,
// enabled, idle and not already holding one.
func (a Agent) IsAssignable() bool {
	return a.Connected && a.Enabled && !a.Running && !a.Assigned
}

// WorkInfo is the descriptor handed to an agent that polled for work.
type WorkInfo struct {
	PipelineDefinitionName string `json:"pipelineDefinitionName"`
	PipelineExecutionID    int    `json:"pipelineExecutionId"`
	StageDefinitionName    string `json:"stageDefinitionName"`
	JobDefinitionName      string `json:"jobDefinitionName"`
	Job                    Job    `json:"job"`
}

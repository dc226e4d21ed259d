package definition

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/material"
)

// File is the YAML form of a pipeline definition and its materials.
type File struct {
	Name                 string                       `yaml:"name"`
	EnvironmentVariables []domain.EnvironmentVariable `yaml:"environmentVariables"`
	Environments         []FileEnvironment            `yaml:"environments"`
	Materials            []FileMaterial               `yaml:"materials"`
	Stages               []FileStage                  `yaml:"stages"`
}

type FileEnvironment struct {
	Name                 string                       `yaml:"name"`
	EnvironmentVariables []domain.EnvironmentVariable `yaml:"environmentVariables"`
}

type FileMaterial struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

type FileStage struct {
	Name              string    `yaml:"name"`
	TriggeredManually bool      `yaml:"triggeredManually"`
	Jobs              []FileJob `yaml:"jobs"`
}

type FileJob struct {
	Name                 string                       `yaml:"name"`
	EnvironmentVariables []domain.EnvironmentVariable `yaml:"environmentVariables"`
	Tasks                []FileTask                   `yaml:"tasks"`
}

type FileTask struct {
	Name      string   `yaml:"name"`
	Command   string   `yaml:"command"`
	Arguments []string `yaml:"arguments"`
	RunIf     string   `yaml:"runIf"`
}

// LoadFile reads and parses a YAML definition file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading definition %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("definition %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing yaml: %w", err)
	}
	if strings.TrimSpace(f.Name) == "" {
		return File{}, fmt.Errorf("pipeline name is required")
	}
	if len(f.Stages) == 0 {
		return File{}, fmt.Errorf("pipeline %s has no stages", f.Name)
	}
	for _, stage := range f.Stages {
		if stage.Name == "" {
			return File{}, fmt.Errorf("pipeline %s has a stage without a name", f.Name)
		}
		if len(stage.Jobs) == 0 {
			return File{}, fmt.Errorf("stage %s has no jobs", stage.Name)
		}
	}
	return f, nil
}

// Definitions converts the file into a pipeline definition and its material
// definitions. Ids are left empty; the definition services assign them.
func (f File) Definitions() (domain.PipelineDefinition, []domain.MaterialDefinition, error) {
	def := domain.PipelineDefinition{
		Name:                 f.Name,
		EnvironmentVariables: f.EnvironmentVariables,
	}
	for _, env := range f.Environments {
		def.Environments = append(def.Environments, domain.Environment{
			Name:                 env.Name,
			EnvironmentVariables: env.EnvironmentVariables,
		})
	}
	for _, stage := range f.Stages {
		sd := domain.StageDefinition{Name: stage.Name, TriggeredManually: stage.TriggeredManually}
		for _, job := range stage.Jobs {
			jd := domain.JobDefinition{Name: job.Name, EnvironmentVariables: job.EnvironmentVariables}
			for _, task := range job.Tasks {
				jd.Tasks = append(jd.Tasks, domain.Task{
					Name:      task.Name,
					Command:   task.Command,
					Arguments: task.Arguments,
					RunIf:     task.RunIf,
				})
			}
			sd.JobDefinitions = append(sd.JobDefinitions, jd)
		}
		def.StageDefinitions = append(def.StageDefinitions, sd)
	}

	var materials []domain.MaterialDefinition
	for _, m := range f.Materials {
		md := domain.MaterialDefinition{Name: m.Name, Type: m.Type, URL: m.URL, Branch: m.Branch}
		if md.Type == "" {
			md.Type = "git"
		}
		if md.Type == "git" {
			src, err := material.ParseGitURL(m.URL)
			if err != nil {
				return domain.PipelineDefinition{}, nil, err
			}
			if md.Name == "" {
				md.Name = src.DisplayName()
			}
			if md.Branch == "" {
				md.Branch = "master"
			}
		}
		materials = append(materials, md)
	}
	return def, materials, nil
}

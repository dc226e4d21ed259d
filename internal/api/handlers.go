package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rndsolutions/HawkCD/internal/domain"
)

// TriggerRequest starts a new run of a pipeline definition.
type TriggerRequest struct {
	PipelineDefinitionID string `json:"pipelineDefinitionId"`
	TriggerReason        string `json:"triggerReason,omitempty"`
}

// RerunRequest lists the job definitions to include in a stage rerun.
type RerunRequest struct {
	JobDefinitionIDs []string `json:"jobDefinitionIds"`
}

func (s *Server) listPipelines(w http.ResponseWriter, r *http.Request) {
	var (
		pipelines []domain.Pipeline
		err       error
	)
	if def := r.URL.Query().Get("definition"); def != "" {
		pipelines, err = s.pipelines.GetAllByDefinitionID(r.Context(), def)
	} else {
		pipelines, err = s.pipelines.GetAll(r.Context())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, pipelines)
}

func (s *Server) addPipeline(w http.ResponseWriter, r *http.Request) {
	req, err := decode[TriggerRequest](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.PipelineDefinitionID == "" {
		s.fail(w, r, badRequest("pipelineDefinitionId is required"))
		return
	}
	p, err := s.pipelines.Add(r.Context(), domain.Pipeline{
		PipelineDefinitionID: req.PipelineDefinitionID,
		TriggerReason:        req.TriggerReason,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

func (s *Server) getPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipelines.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) updatePipeline(w http.ResponseWriter, r *http.Request) {
	p, err := decode[domain.Pipeline](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p.ID = chi.URLParam(r, "id")
	updated, err := s.pipelines.Update(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, updated)
}

func (s *Server) deletePipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.pipelines.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipelines.CancelPipeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) pausePipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipelines.PausePipeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) pipelineHistory(w http.ResponseWriter, r *http.Request) {
	limit, cursor, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	def := r.URL.Query().Get("definition")
	if def == "" {
		s.fail(w, r, badRequest("definition is required"))
		return
	}
	pipelines, err := s.pipelines.GetAllPipelineHistory(r.Context(), def, limit, cursor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, pipelines)
}

func (s *Server) pipelineArtifacts(w http.ResponseWriter, r *http.Request) {
	limit, cursor, err := pageParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pipelines, err := s.pipelines.GetAllPipelineArtifacts(r.Context(), r.URL.Query().Get("search"), limit, cursor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, pipelines)
}

func (s *Server) lastRun(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipelines.GetLastRun(r.Context(), r.URL.Query().Get("definition"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) nonupdatedPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.pipelines.GetAllNonupdatedPipelines(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, pipelines)
}

func (s *Server) awaitingPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.pipelines.GetAllPreparedAwaitingPipelines(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, pipelines)
}

func (s *Server) listStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.stages.GetAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, stages)
}

func (s *Server) getStage(w http.ResponseWriter, r *http.Request) {
	stage, err := s.stages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, stage)
}

func (s *Server) updateStage(w http.ResponseWriter, r *http.Request) {
	stage, err := decode[domain.Stage](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stage.ID = chi.URLParam(r, "id")
	updated, err := s.stages.Update(r.Context(), stage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, updated)
}

func (s *Server) rerunStage(w http.ResponseWriter, r *http.Request) {
	req, err := decode[RerunRequest](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stage, err := s.stages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.pipelines.RerunStageWithSpecificJobs(r.Context(), stage, req.JobDefinitionIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.GetAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, jobs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, job)
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	job, err := decode[domain.Job](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	job.ID = chi.URLParam(r, "id")
	updated, err := s.jobs.Update(r.Context(), job)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, updated)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.GetAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, agents)
}

func (s *Server) assignableAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.GetAllAssignableAgents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, agents)
}

func (s *Server) addAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := decode[domain.Agent](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	added, err := s.agents.Add(r.Context(), agent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, added)
}

func (s *Server) updateAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := decode[domain.Agent](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if agent.ID == "" {
		s.fail(w, r, badRequest("agent id is required"))
		return
	}
	updated, err := s.agents.Update(r.Context(), agent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, updated)
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.agents.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, agent)
}

func (s *Server) deleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.agents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) workInfo(w http.ResponseWriter, r *http.Request) {
	work, assigned, err := s.agents.GetWorkInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !assigned {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ok(w, http.StatusOK, work)
}

func (s *Server) listPipelineDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.pipelineDefinitions.GetAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, defs)
}

func (s *Server) addPipelineDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := decode[domain.PipelineDefinition](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	added, err := s.pipelineDefinitions.Add(r.Context(), def)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, added)
}

func (s *Server) getPipelineDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.pipelineDefinitions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, def)
}

func (s *Server) listMaterialDefinitions(w http.ResponseWriter, r *http.Request) {
	var (
		defs []domain.MaterialDefinition
		err  error
	)
	if pipeline := r.URL.Query().Get("pipeline"); pipeline != "" {
		defs, err = s.materialDefinitions.GetAllFromPipelineDefinition(r.Context(), pipeline)
	} else {
		defs, err = s.materialDefinitions.GetAll(r.Context())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, defs)
}

func (s *Server) addMaterialDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := decode[domain.MaterialDefinition](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	added, err := s.materialDefinitions.Add(r.Context(), def)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, added)
}

func (s *Server) addMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := decode[domain.Material](r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if m.ID == "" || m.MaterialDefinition.ID == "" {
		s.fail(w, r, badRequest("material id and materialDefinition.id are required"))
		return
	}
	added, err := s.materials.Add(r.Context(), m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, added)
}

func (s *Server) latestMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := s.materials.GetLatestMaterial(r.Context(), r.URL.Query().Get("definition"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, m)
}

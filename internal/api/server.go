package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rndsolutions/HawkCD/internal/definition"
	"github.com/rndsolutions/HawkCD/internal/logging"
	"github.com/rndsolutions/HawkCD/internal/material"
	"github.com/rndsolutions/HawkCD/internal/service"
)

const defaultPageSize = 10

// Deps are the services the API serves.
type Deps struct {
	Pipelines           *service.PipelineService
	Stages              *service.StageService
	Jobs                *service.JobService
	Agents              *service.AgentService
	PipelineDefinitions *definition.PipelineDefinitions
	MaterialDefinitions *definition.MaterialDefinitions
	Materials           *material.Service
	Logger              *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	pipelines           *service.PipelineService
	stages              *service.StageService
	jobs                *service.JobService
	agents              *service.AgentService
	pipelineDefinitions *definition.PipelineDefinitions
	materialDefinitions *definition.MaterialDefinitions
	materials           *material.Service
	logger              *slog.Logger
}

func NewServer(deps Deps) *Server {
	return &Server{
		pipelines:           deps.Pipelines,
		stages:              deps.Stages,
		jobs:                deps.Jobs,
		agents:              deps.Agents,
		pipelineDefinitions: deps.PipelineDefinitions,
		materialDefinitions: deps.MaterialDefinitions,
		materials:           deps.Materials,
		logger:              logging.OrDiscard(deps.Logger),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/pipelines", func(r chi.Router) {
		r.Get("/", s.listPipelines)
		r.Post("/", s.addPipeline)
		r.Get("/history", s.pipelineHistory)
		r.Get("/artifacts", s.pipelineArtifacts)
		r.Get("/last", s.lastRun)
		r.Get("/nonupdated", s.nonupdatedPipelines)
		r.Get("/awaiting", s.awaitingPipelines)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getPipeline)
			r.Put("/", s.updatePipeline)
			r.Delete("/", s.deletePipeline)
			r.Post("/cancel", s.cancelPipeline)
			r.Post("/pause", s.pausePipeline)
		})
	})

	r.Route("/stages", func(r chi.Router) {
		r.Get("/", s.listStages)
		r.Get("/{id}", s.getStage)
		r.Put("/{id}", s.updateStage)
		r.Post("/{id}/rerun", s.rerunStage)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Get("/{id}", s.getJob)
		r.Put("/{id}", s.updateJob)
	})

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", s.listAgents)
		r.Post("/", s.addAgent)
		r.Put("/", s.updateAgent)
		r.Get("/assignable", s.assignableAgents)
		r.Get("/{id}", s.getAgent)
		r.Delete("/{id}", s.deleteAgent)
		r.Get("/{id}/work", s.workInfo)
	})

	r.Route("/definitions", func(r chi.Router) {
		r.Get("/pipelines", s.listPipelineDefinitions)
		r.Post("/pipelines", s.addPipelineDefinition)
		r.Get("/pipelines/{id}", s.getPipelineDefinition)
		r.Get("/materials", s.listMaterialDefinitions)
		r.Post("/materials", s.addMaterialDefinition)
	})

	r.Route("/materials", func(r chi.Router) {
		r.Post("/", s.addMaterial)
		r.Get("/latest", s.latestMaterial)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// pageParams reads limit and cursor query parameters.
func pageParams(r *http.Request) (int, string, error) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, "", badRequest("limit must be a number: " + raw)
		}
		limit = n
	}
	return limit, r.URL.Query().Get("cursor"), nil
}

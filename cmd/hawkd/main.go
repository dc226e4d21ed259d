package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/pflag"

	"github.com/rndsolutions/HawkCD/internal/api"
	"github.com/rndsolutions/HawkCD/internal/config"
	"github.com/rndsolutions/HawkCD/internal/definition"
	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/event"
	"github.com/rndsolutions/HawkCD/internal/logging"
	"github.com/rndsolutions/HawkCD/internal/material"
	"github.com/rndsolutions/HawkCD/internal/scheduler"
	"github.com/rndsolutions/HawkCD/internal/service"
	"github.com/rndsolutions/HawkCD/internal/store"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hawkd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		addr        string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("hawkd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")
	flagSet.StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("hawkd", version)
		return nil
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openRepositories(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := event.NewBus(logger)
	bus.SubscribeAll(func(c domain.Change) {
		logger.Debug("entity changed", "entity_type", c.EntityType, "operation", c.Operation)
	})

	pipelineDefinitions := definition.NewPipelineDefinitions(repos.pipelineDefinitions)
	materialDefinitions := definition.NewMaterialDefinitions(repos.materialDefinitions)

	// One lock guards every pipeline read-modify-write and the agent work
	// handout.
	lock := &sync.Mutex{}
	pipelines := service.NewPipelineService(service.PipelineDeps{
		Repository:          repos.pipelines,
		Definitions:         pipelineDefinitions,
		MaterialDefinitions: materialDefinitions,
		Notifier:            bus,
		Lock:                lock,
		Logger:              logger,
	})
	agents := service.NewAgentService(service.AgentDeps{
		Repository: repos.agents,
		Pipelines:  pipelines,
		Notifier:   bus,
		Logger:     logger,
	})

	importer := definition.NewImporter(pipelineDefinitions, materialDefinitions, logger)
	if dir := cfg.Definitions.Dir; dir != "" {
		n, err := importer.ImportDir(ctx, dir)
		if err != nil {
			return fmt.Errorf("importing definitions: %w", err)
		}
		logger.Info("definitions imported", "dir", dir, "count", n)
	}

	srv := api.NewServer(api.Deps{
		Pipelines:           pipelines,
		Stages:              service.NewStageService(pipelines),
		Jobs:                service.NewJobService(pipelines),
		Agents:              agents,
		PipelineDefinitions: pipelineDefinitions,
		MaterialDefinitions: materialDefinitions,
		Materials:           material.NewService(repos.materials),
		Logger:              logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return scheduler.NewPreparer(pipelines, pipelineDefinitions, cfg.Scheduler.PrepareInterval.Duration, logger).Run(ctx)
	})
	p.Go(func(ctx context.Context) error {
		return scheduler.NewAssigner(pipelines, agents, cfg.Scheduler.AssignInterval.Duration, logger).Run(ctx)
	})
	if cfg.Definitions.Dir != "" && cfg.Definitions.Watch {
		watcher, err := definition.NewWatcher(cfg.Definitions.Dir, importer, logger)
		if err != nil {
			return fmt.Errorf("watching definitions: %w", err)
		}
		p.Go(watcher.Run)
	}
	p.Go(func(ctx context.Context) error {
		logger.Info("hawkd listening", "addr", cfg.Server.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = p.Wait()
	logger.Info("hawkd stopped")
	return err
}

type repositories struct {
	pipelines           domain.Repository[domain.Pipeline]
	agents              domain.Repository[domain.Agent]
	pipelineDefinitions domain.Repository[domain.PipelineDefinition]
	materialDefinitions domain.Repository[domain.MaterialDefinition]
	materials           domain.Repository[domain.Material]
}

// openRepositories builds the repositories for the configured driver. The
// returned func releases the backing store.
func openRepositories(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (repositories, func(), error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, state is lost on exit")
		return repositories{
			pipelines:           store.NewMemory[domain.Pipeline]("pipeline"),
			agents:              store.NewMemory[domain.Agent]("agent"),
			pipelineDefinitions: store.NewMemory[domain.PipelineDefinition]("pipeline definition"),
			materialDefinitions: store.NewMemory[domain.MaterialDefinition]("material definition"),
			materials:           store.NewMemory[domain.Material]("material"),
		}, func() {}, nil
	}

	db, err := store.Open(store.Config{Path: cfg.Path, PoolSize: cfg.PoolSize, Logger: logger})
	if err != nil {
		return repositories{}, nil, fmt.Errorf("opening store: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}

	var repos repositories
	if repos.pipelines, err = store.NewSQLite[domain.Pipeline](ctx, db, "pipelines", "pipeline"); err != nil {
		closeDB()
		return repositories{}, nil, err
	}
	if repos.agents, err = store.NewSQLite[domain.Agent](ctx, db, "agents", "agent"); err != nil {
		closeDB()
		return repositories{}, nil, err
	}
	if repos.pipelineDefinitions, err = store.NewSQLite[domain.PipelineDefinition](ctx, db, "pipeline_definitions", "pipeline definition"); err != nil {
		closeDB()
		return repositories{}, nil, err
	}
	if repos.materialDefinitions, err = store.NewSQLite[domain.MaterialDefinition](ctx, db, "material_definitions", "material definition"); err != nil {
		closeDB()
		return repositories{}, nil, err
	}
	if repos.materials, err = store.NewSQLite[domain.Material](ctx, db, "materials", "material"); err != nil {
		closeDB()
		return repositories{}, nil, err
	}
	return repos, closeDB, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cschleiden/go-workflows/backend"
	wfsqlite "github.com/cschleiden/go-workflows/backend/sqlite"
	wfclient "github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/worker"
	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/rs/zerolog/log"

	"github.com/vellankikoti/cutover/internal/application"
	"github.com/vellankikoti/cutover/internal/config"
	"github.com/vellankikoti/cutover/internal/domain"
	"github.com/vellankikoti/cutover/internal/infrastructure/dbosworkflows"
	"github.com/vellankikoti/cutover/internal/infrastructure/goworkflows"
	"github.com/vellankikoti/cutover/internal/infrastructure/kube"
	"github.com/vellankikoti/cutover/internal/infrastructure/sqlite"
	"github.com/vellankikoti/cutover/internal/infrastructure/syncworkflow"
)

// buildOrchestrator assembles the full stack from configuration. The
// returned cleanup must run after the command finishes.
func buildOrchestrator(ctx context.Context) (*application.Orchestrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	setupLogging(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	client, err := kube.NewClient(cfg.Kubeconfig, cfg.Namespace, cfg.App, log.Logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	fleet := &domain.FleetState{Client: client}
	prober := &domain.ReadinessProber{
		Fleet:        fleet,
		PollInterval: cfg.PollInterval,
		Deadline:     cfg.ReadinessDeadline,
	}

	runner, stopEngine, err := buildDeployRunner(ctx, cfg, &domain.DeployWorkflow{
		Client: client,
		Prober: prober,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &application.Orchestrator{
			Fleet: fleet,
			Switcher: &domain.TrafficSwitchController{
				Client:          client,
				Fleet:           fleet,
				Traffic:         &sqlite.TrafficStateRepo{DB: db},
				Ops:             &sqlite.SwitchOperationRepo{DB: db},
				MinReady:        cfg.MinReady,
				RequireAllReady: cfg.RequireAllReady,
			},
			Ops:     &sqlite.SwitchOperationRepo{DB: db},
			Deploys: runner,
			Log:     log.Logger,
		}, func() {
			stopEngine()
			cleanup()
		}, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return nil, err
	}
	if flagKubeconfig != "" {
		cfg.Kubeconfig = flagKubeconfig
	}
	if flagNamespace != "" {
		cfg.Namespace = flagNamespace
	}
	if flagApp != "" {
		cfg.App = flagApp
	}
	if flagEngine != "" {
		cfg.Engine = flagEngine
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, cfg.Validate()
}

func buildDeployRunner(ctx context.Context, cfg *config.Config, wf *domain.DeployWorkflow) (domain.DeployRunner, func(), error) {
	noop := func() {}

	switch cfg.Engine {
	case config.EngineSync:
		engine := &syncworkflow.Engine{}
		runner, err := engine.DeployRunner(wf)
		return runner, noop, err

	case config.EngineDurable:
		var b backend.Backend = wfsqlite.NewInMemoryBackend()
		if cfg.WorkflowDB != "" {
			b = wfsqlite.NewSqliteBackend(cfg.WorkflowDB)
		}
		w := worker.New(b, nil)

		engine := &goworkflows.Engine{
			Worker:  w,
			Client:  wfclient.New(b),
			Timeout: cfg.ReadinessDeadline + 30*time.Second,
		}
		runner, err := engine.DeployRunner(wf)
		if err != nil {
			return nil, noop, err
		}

		workerCtx, cancel := context.WithCancel(ctx)
		if err := w.Start(workerCtx); err != nil {
			cancel()
			return nil, noop, fmt.Errorf("start workflow worker: %w", err)
		}
		return runner, func() {
			cancel()
			_ = w.WaitForCompletion()
		}, nil

	case config.EngineDBOS:
		dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
			AppName:     "cutover",
			DatabaseURL: cfg.DatabaseURL,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("create DBOS context: %w", err)
		}
		engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
		runner, err := engine.DeployRunner(wf)
		if err != nil {
			return nil, noop, err
		}
		if err := dbos.Launch(dbosCtx); err != nil {
			return nil, noop, fmt.Errorf("launch DBOS: %w", err)
		}
		return runner, func() { dbos.Shutdown(dbosCtx, 5*time.Second) }, nil

	default:
		return nil, noop, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mealmind/e2eharness/internal/agent"
	"github.com/mealmind/e2eharness/internal/config"
	"github.com/mealmind/e2eharness/internal/group"
	"github.com/mealmind/e2eharness/internal/metrics"
	"github.com/mealmind/e2eharness/internal/onboarding"
	"github.com/mealmind/e2eharness/internal/probe"
	"github.com/mealmind/e2eharness/internal/report"
	"github.com/mealmind/e2eharness/internal/scenario"
	"github.com/mealmind/e2eharness/internal/store"
	"github.com/mealmind/e2eharness/internal/suite"
	"github.com/mealmind/e2eharness/internal/supervisor"
	"github.com/mealmind/e2eharness/internal/tracing"
)

const lockFileName = "e2eharness.lock"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Normalize()

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// One run at a time per data dir. Concurrent runs would race on
	// the database reset phase.
	runLock := flock.New(filepath.Join(cfg.DataDir, lockFileName))
	locked, err := runLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run is already using %s", cfg.DataDir)
	}
	defer func() { _ = runLock.Unlock() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	users, err := loadScenario(cfg)
	if err != nil {
		return err
	}

	stores, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn("closing stores", zap.Error(err))
		}
	}()

	agents := agent.NewService(stores.Personal, log)
	worker := agent.NewWorker(stores.Personal, log)
	groups := group.NewService(stores.Group, log)
	userOnboarding := onboarding.NewUserService(stores.UserOnboarding, agents, log)
	groupOnboarding := onboarding.NewGroupService(stores.GroupOnboarding, log)
	workers := supervisor.New(log)
	collector := metrics.NewCollector()
	pacer := suite.NewPacer(cfg.RateLimit)
	scheduler := suite.NewScheduler(stores.Personal, pacer, collector, cfg.RateLimit, log).WithTracer(tracer.Tracer())
	battery := probe.NewBattery(agents, stores.Personal, cfg.Probes, log)

	harness := &suite.Harness{
		Stores:          stores,
		Agents:          agents,
		Worker:          worker,
		Groups:          groups,
		UserOnboarding:  userOnboarding,
		GroupOnboarding: groupOnboarding,
		Workers:         workers,
		Scheduler:       scheduler,
		Battery:         battery,
		Log:             log,
	}

	rc := suite.NewRunContext(users, *cfg)
	orchestrator := suite.NewOrchestrator(harness.Phases(), harness.Cleanup, tracer.Tracer(), log)

	startedAt := time.Now()
	log.Info("run starting",
		zap.Int("users", len(users)),
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("fast", cfg.Fast))
	orchestrator.Run(ctx, rc)

	result := report.Build(ctx, rc, stores, collector, cfg.Readiness, startedAt)

	if cfg.JSONOutput {
		if err := report.PrintJSON(os.Stdout, result); err != nil {
			return err
		}
	} else {
		report.Print(os.Stdout, result)
	}

	if result.Readiness == report.ReadinessNeedsWork {
		return fmt.Errorf("%d of %d phases failed", result.Failed, result.Total)
	}
	return nil
}

func loadScenario(cfg *config.Config) ([]scenario.User, error) {
	if cfg.ScenarioFile == "" {
		return scenario.Default(), nil
	}
	return scenario.Load(cfg.ScenarioFile)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if !cfg.JSONOutput {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return zc.Build()
}

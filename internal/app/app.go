// Package app wires the taskmind components together: config, logging,
// storage, the job lifecycle engine and runner, the LLM provider, the
// executor registry, and the scheduler controller.
package app

import (
	"context"
	"net/http"

	"github.com/aatumaykin/taskmind/internal/config"
	"github.com/aatumaykin/taskmind/internal/executor"
	"github.com/aatumaykin/taskmind/internal/job"
	"github.com/aatumaykin/taskmind/internal/llm"
	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/scheduler"
	"github.com/aatumaykin/taskmind/internal/store"
)

// App holds references to all major components and manages their lifecycle.
type App struct {
	config *config.Config
	logger *logger.Logger

	store   store.Store
	metrics *job.Metrics
	engine  *job.Engine
	runner  *job.Runner
	sweeper *job.Sweeper

	provider   llm.Provider
	registry   *executor.Registry
	controller *scheduler.Controller

	metricsServer *http.Server
}

// New creates an App. Components are built in Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{config: cfg, logger: log}
}

// Controller returns the scheduler controller.
func (a *App) Controller() *scheduler.Controller {
	return a.controller
}

// Engine returns the job lifecycle engine.
func (a *App) Engine() *job.Engine {
	return a.engine
}

// Runner returns the async job runner.
func (a *App) Runner() *job.Runner {
	return a.runner
}

// Sweeper returns the retention sweeper, or nil when retention is disabled.
func (a *App) Sweeper() *job.Sweeper {
	return a.sweeper
}

// Run initializes all components and blocks until the context is cancelled,
// then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	a.logger.Info("Application is running")
	<-ctx.Done()

	return a.Shutdown()
}

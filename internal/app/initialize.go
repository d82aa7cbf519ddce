package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/taskmind/internal/executor"
	"github.com/aatumaykin/taskmind/internal/job"
	"github.com/aatumaykin/taskmind/internal/llm"
	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/scheduler"
	"github.com/aatumaykin/taskmind/internal/store"
	"github.com/aatumaykin/taskmind/internal/workspace"
)

// PrimaryExecutorName is the name the built-in LLM executor registers under.
const PrimaryExecutorName = "llm"

// Initialize builds all components in dependency order.
func (a *App) Initialize(ctx context.Context) error {
	ws := workspace.New(a.config.Workspace)
	if err := ws.EnsureSubpath(workspace.SubdirPrompts); err != nil {
		return fmt.Errorf("failed to prepare workspace: %w", err)
	}

	if a.config.Metrics.Enabled {
		a.metrics = job.InitMetrics("taskmind", nil)
		a.startMetricsServer()
	}

	st, err := store.Open(store.Config{
		Path:        a.config.Storage.Path,
		BusyTimeout: time.Duration(a.config.Storage.BusyTimeoutMS) * time.Millisecond,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st

	a.engine = job.NewEngine(a.store, a.logger, a.metrics)
	a.runner = job.NewRunner(a.engine, a.logger, a.metrics, nil)

	provider, err := a.buildProvider()
	if err != nil {
		return err
	}
	a.provider = provider

	a.registry = executor.NewRegistry(a.config.Scheduler.Executors)
	if err := a.registry.Register(executor.NewLLMExecutor(PrimaryExecutorName, a.provider, a.logger)); err != nil {
		return fmt.Errorf("failed to register executor: %w", err)
	}

	promptsDir := a.config.Scheduler.PromptsDir
	if promptsDir == "" {
		promptsDir = ws.Subpath(workspace.SubdirPrompts)
	}
	templates, err := scheduler.LoadTemplates(promptsDir)
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}

	a.controller = scheduler.NewController(a.provider, a.registry, templates, a.logger, scheduler.Config{
		MaxIterations: a.config.Scheduler.MaxIterations,
	})

	if a.config.Retention.Enabled {
		sweeper, err := job.NewSweeper(a.store, a.logger, a.metrics,
			a.config.Retention.Schedule, a.config.Retention.MaxAgeDuration())
		if err != nil {
			return fmt.Errorf("failed to create retention sweeper: %w", err)
		}
		a.sweeper = sweeper
		a.sweeper.Start()
	}

	a.logger.InfoCtx(ctx, "components initialized",
		logger.Field{Key: "provider", Value: a.config.LLM.Provider},
		logger.Field{Key: "storage", Value: a.config.Storage.Path})
	return nil
}

func (a *App) buildProvider() (llm.Provider, error) {
	var provider llm.Provider

	switch a.config.LLM.Provider {
	case "openai":
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:         a.config.LLM.OpenAI.APIKey,
			BaseURL:        a.config.LLM.OpenAI.BaseURL,
			Model:          a.config.LLM.OpenAI.Model,
			MaxTokens:      a.config.LLM.OpenAI.MaxTokens,
			Temperature:    a.config.LLM.OpenAI.Temperature,
			TimeoutSeconds: a.config.LLM.OpenAI.TimeoutSeconds,
		}, a.logger)
	case "mock":
		provider = llm.NewEchoProvider()
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", a.config.LLM.Provider)
	}

	if a.config.LLM.RateLimit > 0 {
		provider = llm.NewRateLimitedProvider(provider, a.config.LLM.RateLimit)
	}
	return provider, nil
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsServer = &http.Server{
		Addr:              a.config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics server listening",
			logger.Field{Key: "addr", Value: a.config.Metrics.Listen})
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", err)
		}
	}()
}

package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

// Runner supervises async job executions. The in-flight map keyed by job id
// is the single enforcement point guaranteeing at most one supervising
// execution per job.
type Runner struct {
	engine  *Engine
	log     *logger.Logger
	metrics *Metrics
	handler TaskHandler

	mu       sync.Mutex
	inFlight map[string]*supervision
}

type supervision struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner over the engine. When handler is nil the
// built-in demonstration handler is used; real deployments plug tool or
// agent dispatch in here.
func NewRunner(engine *Engine, log *logger.Logger, metrics *Metrics, handler TaskHandler) *Runner {
	r := &Runner{
		engine:   engine,
		log:      log,
		metrics:  metrics,
		handler:  handler,
		inFlight: make(map[string]*supervision),
	}
	if r.handler == nil {
		r.handler = r.demoHandler
	}
	return r
}

// StartJob schedules an async execution of the job. Returns false when the
// job is unknown or already tracked in-flight.
func (r *Runner) StartJob(ctx context.Context, jobID string) (bool, error) {
	if _, err := r.engine.GetJob(ctx, jobID); err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	r.mu.Lock()
	if _, tracked := r.inFlight[jobID]; tracked {
		r.mu.Unlock()
		return false, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &supervision{cancel: cancel, done: make(chan struct{})}
	r.inFlight[jobID] = s
	r.metrics.SetInFlight(len(r.inFlight))
	r.mu.Unlock()

	go r.supervise(runCtx, jobID, s)

	r.log.InfoCtx(ctx, "job started", logger.Field{Key: "job_id", Value: jobID})
	return true, nil
}

func (r *Runner) supervise(ctx context.Context, jobID string, s *supervision) {
	defer func() {
		r.mu.Lock()
		if r.inFlight[jobID] == s {
			delete(r.inFlight, jobID)
		}
		r.metrics.SetInFlight(len(r.inFlight))
		r.mu.Unlock()
		s.cancel()
		close(s.done)
	}()

	if _, err := r.engine.RunJob(ctx, jobID, r.handler); err != nil {
		r.log.Error("job run failed", err, logger.Field{Key: "job_id", Value: jobID})
	}
}

// CancelJob cancels a tracked job: engine-level cancellation first, then the
// async handle, then awaits settlement. Untracked jobs fall through to the
// engine directly, covering jobs never started by this runner.
func (r *Runner) CancelJob(ctx context.Context, jobID string) (bool, error) {
	r.mu.Lock()
	s, tracked := r.inFlight[jobID]
	r.mu.Unlock()

	if !tracked {
		return r.engine.CancelJob(ctx, jobID)
	}

	cancelled, err := r.engine.CancelJob(ctx, jobID)
	s.cancel()
	<-s.done
	if err != nil {
		return false, err
	}
	return cancelled, nil
}

// Running returns the job ids currently tracked in-flight.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.inFlight))
	for id := range r.inFlight {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every tracked job sequentially, then shuts down the
// engine.
func (r *Runner) Shutdown(ctx context.Context) error {
	for {
		r.mu.Lock()
		var jobID string
		var s *supervision
		for id, sv := range r.inFlight {
			jobID, s = id, sv
			break
		}
		r.mu.Unlock()

		if s == nil {
			break
		}

		if _, err := r.engine.CancelJob(ctx, jobID); err != nil {
			r.log.Error("failed to cancel job during shutdown", err,
				logger.Field{Key: "job_id", Value: jobID})
		}
		s.cancel()
		<-s.done
	}

	return r.engine.Shutdown(ctx)
}

// demoHandler is the placeholder task handler: it records a demonstration
// tool use before doing the work and backfills its result after.
func (r *Runner) demoHandler(ctx context.Context, taskID int64, content string) error {
	toolUseID, err := r.engine.RecordToolUse(ctx, taskID, "demo_tool",
		map[string]any{"query": content}, nil)
	if err != nil {
		return err
	}

	result, err := json.Marshal(map[string]any{
		"status": "success",
		"query":  content,
	})
	if err != nil {
		return err
	}

	return r.engine.UpdateToolResult(ctx, toolUseID, string(result))
}

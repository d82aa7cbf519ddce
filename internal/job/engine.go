// Package job implements the durable job lifecycle: jobs own ordered tasks,
// tasks own append-only tool use records, and a runner supervises async
// execution with cooperative cancellation.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

// TaskHandler executes one task. A non-nil error marks the task failed;
// the job keeps iterating over the remaining tasks.
type TaskHandler func(ctx context.Context, taskID int64, content string) error

// Engine owns the job lifecycle semantics on top of the store. It is
// constructed once at startup and passed by handle to its collaborators.
type Engine struct {
	store   store.Store
	log     *logger.Logger
	metrics *Metrics
	stopped atomic.Bool
}

// NewEngine creates a lifecycle engine. metrics may be nil.
func NewEngine(st store.Store, log *logger.Logger, metrics *Metrics) *Engine {
	return &Engine{store: st, log: log, metrics: metrics}
}

// NewJobID generates a short unique job identifier.
func NewJobID() string {
	return "job_" + uuid.NewString()[:8]
}

// CreateJob inserts a new pending job and returns its snapshot.
func (e *Engine) CreateJob(ctx context.Context, description string) (*store.Job, error) {
	jobID := NewJobID()
	if _, err := e.store.CreateJob(ctx, jobID, description); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	e.metrics.JobCreated()
	e.log.InfoCtx(ctx, "job created",
		logger.Field{Key: "job_id", Value: jobID},
		logger.Field{Key: "description", Value: description})

	return e.store.GetJob(ctx, jobID)
}

// AddTask appends a pending task to a job.
func (e *Engine) AddTask(ctx context.Context, jobID, content string) (int64, error) {
	taskID, err := e.store.AddTask(ctx, jobID, content)
	if err != nil {
		return 0, err
	}

	e.log.DebugCtx(ctx, "task added",
		logger.Field{Key: "job_id", Value: jobID},
		logger.Field{Key: "task_id", Value: taskID})
	return taskID, nil
}

// RecordToolUse appends a tool use record to a task. result may be nil and
// backfilled later via UpdateToolResult.
func (e *Engine) RecordToolUse(ctx context.Context, taskID int64, toolName string, args map[string]any, result *string) (int64, error) {
	id, err := e.store.RecordToolUse(ctx, taskID, toolName, args, result)
	if err != nil {
		return 0, err
	}
	e.metrics.ToolUseRecorded()
	return id, nil
}

// UpdateToolResult backfills the result of a recorded tool use.
func (e *Engine) UpdateToolResult(ctx context.Context, toolUseID int64, result string) error {
	return e.store.UpdateToolResult(ctx, toolUseID, result)
}

// GetJob returns the full nested snapshot of a job.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*store.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// ListJobs returns nested job snapshots, newest first. An empty status
// returns all jobs.
func (e *Engine) ListJobs(ctx context.Context, status store.Status) ([]*store.Job, error) {
	return e.store.ListJobs(ctx, status)
}

// CancelJob cancels a running job and its running tasks. Returns false when
// the job is missing or not running.
func (e *Engine) CancelJob(ctx context.Context, jobID string) (bool, error) {
	cancelled, err := e.store.CancelRunningJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if cancelled {
		e.log.InfoCtx(ctx, "job cancelled", logger.Field{Key: "job_id", Value: jobID})
	}
	return cancelled, nil
}

// Stats summarizes job counts per status.
type Stats struct {
	Total     int64                  `json:"total"`
	ByStatus  map[store.Status]int64 `json:"by_status"`
	Timestamp time.Time              `json:"timestamp"`
}

// GetStats returns job counts grouped by status.
func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := e.store.CountJobsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStatus: counts, Timestamp: time.Now().UTC()}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// JobStats summarizes one job's task progress.
type JobStats struct {
	JobID          string       `json:"job_id"`
	Status         store.Status `json:"status"`
	TotalTasks     int          `json:"total_tasks"`
	CompletedTasks int          `json:"completed_tasks"`
	FailedTasks    int          `json:"failed_tasks"`
	Runtime        string       `json:"runtime,omitempty"`
}

// GetJobStats returns task counts and runtime for a single job.
func (e *Engine) GetJobStats(ctx context.Context, jobID string) (*JobStats, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	stats := &JobStats{
		JobID:      job.JobID,
		Status:     job.Status,
		TotalTasks: len(job.Tasks),
	}
	for _, task := range job.Tasks {
		switch task.Status {
		case store.StatusCompleted:
			stats.CompletedTasks++
		case store.StatusFailed:
			stats.FailedTasks++
		}
	}
	if job.StartTime != nil {
		end := time.Now().UTC()
		if job.EndTime != nil {
			end = *job.EndTime
		}
		stats.Runtime = end.Sub(*job.StartTime).String()
	}
	return stats, nil
}

// RunJob executes a job's tasks strictly in creation order, never
// concurrently. Task failures do not stop iteration; every task is
// attempted. A cancellation signal is polled between tasks and stops the
// loop early, leaving the remaining tasks cancelled. The final status
// precedence is cancelled over failed over completed.
func (e *Engine) RunJob(ctx context.Context, jobID string, handler TaskHandler) (store.Status, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status.Terminal() {
		return job.Status, nil
	}

	if err := e.store.MarkJobRunning(ctx, jobID); err != nil {
		return "", err
	}
	start := time.Now()

	tasks, err := e.store.TasksForJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	var anyFailed, cancelled bool
	for i, task := range tasks {
		if task.Status.Terminal() {
			continue
		}

		if e.cancelObserved(ctx, jobID) {
			cancelled = true
			e.cancelRemaining(jobID, tasks[i:])
			break
		}

		if err := e.store.MarkTaskRunning(ctx, task.ID); err != nil {
			return "", err
		}

		if err := e.invoke(ctx, handler, task); err != nil {
			// An abort at the handler's suspension point is a
			// cancellation, not a task failure.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				cancelled = true
				e.cancelRemaining(jobID, tasks[i:])
				break
			}

			anyFailed = true
			_ = e.store.FinishTask(ctx, task.ID, store.StatusFailed)
			e.metrics.TaskFinished(string(store.StatusFailed))
			e.log.WarnCtx(ctx, "task failed",
				logger.Field{Key: "job_id", Value: jobID},
				logger.Field{Key: "task_id", Value: task.ID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}

		if err := e.store.FinishTask(ctx, task.ID, store.StatusCompleted); err != nil {
			return "", err
		}
		e.metrics.TaskFinished(string(store.StatusCompleted))
	}

	// Cancellation arriving after the last task still wins over completion.
	if !cancelled && e.cancelObserved(ctx, jobID) {
		cancelled = true
	}

	final := store.StatusCompleted
	switch {
	case cancelled:
		final = store.StatusCancelled
	case anyFailed:
		final = store.StatusFailed
	}

	if err := e.store.FinishJob(context.WithoutCancel(ctx), jobID, final); err != nil {
		return "", err
	}

	e.metrics.JobFinished(string(final), time.Since(start))
	e.log.InfoCtx(ctx, "job finished",
		logger.Field{Key: "job_id", Value: jobID},
		logger.Field{Key: "status", Value: string(final)},
		logger.Field{Key: "duration", Value: time.Since(start).String()})

	return final, nil
}

// Shutdown stops accepting new runs and cancels every running job together
// with its running tasks.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return e.store.CancelAllRunning(ctx)
}

func (e *Engine) invoke(ctx context.Context, handler TaskHandler, task store.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return handler(ctx, task.ID, task.Content)
}

func (e *Engine) cancelObserved(ctx context.Context, jobID string) bool {
	if e.stopped.Load() || ctx.Err() != nil {
		return true
	}
	status, err := e.store.JobStatus(context.WithoutCancel(ctx), jobID)
	if err != nil {
		return false
	}
	return status == store.StatusCancelled
}

func (e *Engine) cancelRemaining(jobID string, tasks []store.Task) {
	// The run context may already be cancelled at this point.
	ctx := context.Background()
	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}
		if err := e.store.FinishTask(ctx, task.ID, store.StatusCancelled); err != nil {
			e.log.Warn("failed to cancel remaining task",
				logger.Field{Key: "job_id", Value: jobID},
				logger.Field{Key: "task_id", Value: task.ID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		e.metrics.TaskFinished(string(store.StatusCancelled))
	}
}

// Package store provides durable persistence for jobs, tasks and tool uses.
// The backing store is sqlite; every method is one short acquire-use-release
// unit of work with no cross-call transactions.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state shared by jobs and tasks.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a final one.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Typed not-found errors surfaced to engine callers.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrToolUseNotFound = errors.New("tool use not found")
)

// Job is a top-level durable unit of work owning an ordered set of tasks.
type Job struct {
	ID          int64      `json:"id"`
	JobID       string     `json:"job_id"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Tasks       []Task     `json:"tasks"`
}

// Task is one instruction within a job.
type Task struct {
	ID        int64      `json:"id"`
	JobRowID  int64      `json:"job_id"`
	Content   string     `json:"content"`
	Think     string     `json:"think,omitempty"`
	Status    Status     `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ToolUses  []ToolUse  `json:"tool_uses"`
}

// ToolUse is an append-only record of one tool call within a task.
// Result stays nil until it is backfilled.
type ToolUse struct {
	ID        int64          `json:"id"`
	TaskID    int64          `json:"task_id"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args,omitempty"`
	Result    *string        `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the persistence API consumed by the job engine.
type Store interface {
	// CreateJob inserts a new pending job and returns its row id.
	CreateJob(ctx context.Context, jobID, description string) (int64, error)

	// GetJob returns the full nested snapshot (job, tasks, tool uses).
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// JobStatus returns just the job's status. Used as the cheap
	// cancellation poll between tasks.
	JobStatus(ctx context.Context, jobID string) (Status, error)

	// CountJobsByStatus returns the number of jobs per status.
	CountJobsByStatus(ctx context.Context) (map[Status]int64, error)

	// ListJobs returns nested snapshots ordered by creation descending.
	// An empty status returns all jobs.
	ListJobs(ctx context.Context, status Status) ([]*Job, error)

	// AddTask appends a pending task to a job.
	AddTask(ctx context.Context, jobID, content string) (int64, error)

	// TasksForJob returns a job's tasks in creation order.
	TasksForJob(ctx context.Context, jobID string) ([]Task, error)

	// MarkJobRunning transitions a job to running and stamps start_time.
	MarkJobRunning(ctx context.Context, jobID string) error

	// FinishJob sets a terminal status. end_time is stamped only if not
	// already set, so the first terminal transition wins.
	FinishJob(ctx context.Context, jobID string, status Status) error

	// MarkTaskRunning transitions a task to running and stamps start_time.
	MarkTaskRunning(ctx context.Context, taskID int64) error

	// FinishTask sets a terminal task status, stamping end_time once.
	FinishTask(ctx context.Context, taskID int64, status Status) error

	// CancelRunningJob cancels a job and its running tasks in one
	// transaction. Returns false when the job is missing or not running.
	CancelRunningJob(ctx context.Context, jobID string) (bool, error)

	// CancelAllRunning cancels every running job and its running tasks.
	CancelAllRunning(ctx context.Context) error

	// RecordToolUse appends a tool use record to a task.
	RecordToolUse(ctx context.Context, taskID int64, toolName string, args map[string]any, result *string) (int64, error)

	// UpdateToolResult backfills the result of a recorded tool use.
	UpdateToolResult(ctx context.Context, toolUseID int64, result string) error

	// PruneJobsBefore deletes terminal jobs that ended before the cutoff,
	// cascading to their tasks and tool uses. Returns the number of jobs
	// removed.
	PruneJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

package job

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	st, err := store.Open(store.Config{
		Path:        filepath.Join(t.TempDir(), "taskmind.db"),
		BusyTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return NewEngine(st, logger.Nop(), nil)
}

func TestNewJobID_Format(t *testing.T) {
	id := NewJobID()
	assert.True(t, strings.HasPrefix(id, "job_"))
	assert.Len(t, id, len("job_")+8)
	assert.NotEqual(t, id, NewJobID())
}

func TestRunJob_AllTasksSucceed(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "three step job")
	require.NoError(t, err)
	for _, content := range []string{"step one", "step two", "step three"} {
		_, err := e.AddTask(ctx, job.JobID, content)
		require.NoError(t, err)
	}

	var executed []string
	handler := func(ctx context.Context, taskID int64, content string) error {
		executed = append(executed, content)
		return nil
	}

	final, err := e.RunJob(ctx, job.JobID, handler)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, final)
	assert.Equal(t, []string{"step one", "step two", "step three"}, executed)

	got, err := e.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	require.NotNil(t, got.StartTime)
	require.NotNil(t, got.EndTime)
	assert.False(t, got.EndTime.Before(*got.StartTime))
	require.Len(t, got.Tasks, 3)
	for _, task := range got.Tasks {
		assert.Equal(t, store.StatusCompleted, task.Status)
	}
}

func TestRunJob_FailureDoesNotStopIteration(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	for _, content := range []string{"ok", "boom", "ok"} {
		_, err := e.AddTask(ctx, job.JobID, content)
		require.NoError(t, err)
	}

	handler := func(ctx context.Context, taskID int64, content string) error {
		if content == "boom" {
			return errors.New("handler exploded")
		}
		return nil
	}

	final, err := e.RunJob(ctx, job.JobID, handler)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, final)

	got, err := e.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 3)
	assert.Equal(t, store.StatusCompleted, got.Tasks[0].Status)
	assert.Equal(t, store.StatusFailed, got.Tasks[1].Status)
	assert.Equal(t, store.StatusCompleted, got.Tasks[2].Status)
}

func TestRunJob_PanicConvertsToTaskFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	_, err = e.AddTask(ctx, job.JobID, "panics")
	require.NoError(t, err)
	_, err = e.AddTask(ctx, job.JobID, "fine")
	require.NoError(t, err)

	handler := func(ctx context.Context, taskID int64, content string) error {
		if content == "panics" {
			panic("unexpected state")
		}
		return nil
	}

	final, err := e.RunJob(ctx, job.JobID, handler)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, final)

	got, err := e.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Tasks[0].Status)
	assert.Equal(t, store.StatusCompleted, got.Tasks[1].Status)
}

func TestRunJob_CancelBetweenTasks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	for _, content := range []string{"first", "second", "third"} {
		_, err := e.AddTask(ctx, job.JobID, content)
		require.NoError(t, err)
	}

	// The first task requests cancellation while running; the poll between
	// tasks must observe it before the second task starts.
	handler := func(ctx context.Context, taskID int64, content string) error {
		if content == "first" {
			_, err := e.CancelJob(ctx, job.JobID)
			return err
		}
		return errors.New("task should not have started")
	}

	final, err := e.RunJob(ctx, job.JobID, handler)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, final)

	got, err := e.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 3)
	assert.Equal(t, store.StatusCompleted, got.Tasks[0].Status)
	assert.Equal(t, store.StatusCancelled, got.Tasks[1].Status)
	assert.Equal(t, store.StatusCancelled, got.Tasks[2].Status)
	require.NotNil(t, got.EndTime)
}

func TestRunJob_TerminalJobIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	_, err = e.AddTask(ctx, job.JobID, "never runs")
	require.NoError(t, err)

	_, err = e.RunJob(ctx, job.JobID, func(context.Context, int64, string) error { return nil })
	require.NoError(t, err)

	calls := 0
	final, err := e.RunJob(ctx, job.JobID, func(context.Context, int64, string) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, final)
	assert.Zero(t, calls)
}

func TestRunJob_UnknownJob(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.RunJob(context.Background(), "job_missing1",
		func(context.Context, int64, string) error { return nil })
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestCancelJob_OnlyEffectiveWhileRunning(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)

	cancelled, err := e.CancelJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.False(t, cancelled, "pending job must not be cancellable")

	got, err := e.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, got.Status)
}

func TestShutdown_CancelsRunningJobs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	taskID, err := e.AddTask(ctx, job.JobID, "interrupted")
	require.NoError(t, err)

	st := e.store
	require.NoError(t, st.MarkJobRunning(ctx, job.JobID))
	require.NoError(t, st.MarkTaskRunning(ctx, taskID))

	require.NoError(t, e.Shutdown(ctx))

	got, err := e.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, got.Status)
	assert.Equal(t, store.StatusCancelled, got.Tasks[0].Status)
}

func TestGetStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	jobA, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	_, err = e.CreateJob(ctx, "")
	require.NoError(t, err)

	_, err = e.RunJob(ctx, jobA.JobID, func(context.Context, int64, string) error { return nil })
	require.NoError(t, err)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[store.StatusCompleted])
	assert.Equal(t, int64(1), stats.ByStatus[store.StatusPending])
}

func TestGetJobStats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	job, err := e.CreateJob(ctx, "")
	require.NoError(t, err)
	for _, content := range []string{"ok", "boom", "ok"} {
		_, err := e.AddTask(ctx, job.JobID, content)
		require.NoError(t, err)
	}

	_, err = e.RunJob(ctx, job.JobID, func(_ context.Context, _ int64, content string) error {
		if content == "boom" {
			return errors.New("handler exploded")
		}
		return nil
	})
	require.NoError(t, err)

	stats, err := e.GetJobStats(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, stats.JobID)
	assert.Equal(t, store.StatusFailed, stats.Status)
	assert.Equal(t, 3, stats.TotalTasks)
	assert.Equal(t, 2, stats.CompletedTasks)
	assert.Equal(t, 1, stats.FailedTasks)
	assert.NotEmpty(t, stats.Runtime)

	_, err = e.GetJobStats(ctx, "job_missing1")
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

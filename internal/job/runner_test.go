package job

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

func newTestRunner(t *testing.T, handler TaskHandler) (*Runner, *Engine) {
	t.Helper()

	st, err := store.Open(store.Config{
		Path:        filepath.Join(t.TempDir(), "taskmind.db"),
		BusyTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engine := NewEngine(st, logger.Nop(), nil)
	return NewRunner(engine, logger.Nop(), nil, handler), engine
}

func waitForStatus(t *testing.T, engine *Engine, jobID string, want store.Status) *store.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := engine.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestRunner_StartJobRunsToCompletion(t *testing.T) {
	r, engine := newTestRunner(t, nil)
	ctx := context.Background()

	job, err := engine.CreateJob(ctx, "supervised job")
	require.NoError(t, err)
	_, err = engine.AddTask(ctx, job.JobID, "look up the answer")
	require.NoError(t, err)

	started, err := r.StartJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.True(t, started)

	got := waitForStatus(t, engine, job.JobID, store.StatusCompleted)

	// The demo handler records a tool use and backfills its result.
	require.Len(t, got.Tasks, 1)
	require.Len(t, got.Tasks[0].ToolUses, 1)
	tu := got.Tasks[0].ToolUses[0]
	assert.Equal(t, "demo_tool", tu.ToolName)
	assert.Equal(t, map[string]any{"query": "look up the answer"}, tu.Args)
	require.NotNil(t, tu.Result)
	assert.Contains(t, *tu.Result, "success")
}

func TestRunner_StartJob_UnknownJob(t *testing.T) {
	r, _ := newTestRunner(t, nil)

	started, err := r.StartJob(context.Background(), "job_missing1")
	require.NoError(t, err)
	assert.False(t, started)
}

func TestRunner_AtMostOneSupervisionPerJob(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	handler := func(ctx context.Context, taskID int64, content string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	t.Cleanup(func() { once.Do(func() { close(release) }) })

	r, engine := newTestRunner(t, handler)
	ctx := context.Background()

	job, err := engine.CreateJob(ctx, "")
	require.NoError(t, err)
	_, err = engine.AddTask(ctx, job.JobID, "blocked until released")
	require.NoError(t, err)

	started, err := r.StartJob(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, started)

	started, err = r.StartJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.False(t, started, "second supervision of the same job must be rejected")
	assert.Equal(t, []string{job.JobID}, r.Running())

	once.Do(func() { close(release) })
	waitForStatus(t, engine, job.JobID, store.StatusCompleted)
	assert.Empty(t, r.Running())
}

func TestRunner_CancelTrackedJob(t *testing.T) {
	entered := make(chan struct{})
	handler := func(ctx context.Context, taskID int64, content string) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}

	r, engine := newTestRunner(t, handler)
	ctx := context.Background()

	job, err := engine.CreateJob(ctx, "")
	require.NoError(t, err)
	_, err = engine.AddTask(ctx, job.JobID, "runs until cancelled")
	require.NoError(t, err)

	started, err := r.StartJob(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, started)
	<-entered

	cancelled, err := r.CancelJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Empty(t, r.Running())

	got, err := engine.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, got.Status)
	assert.Equal(t, store.StatusCancelled, got.Tasks[0].Status)
}

func TestRunner_CancelUntrackedFallsThroughToEngine(t *testing.T) {
	r, engine := newTestRunner(t, nil)
	ctx := context.Background()

	job, err := engine.CreateJob(ctx, "")
	require.NoError(t, err)
	require.NoError(t, engine.store.MarkJobRunning(ctx, job.JobID))

	cancelled, err := r.CancelJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = r.CancelJob(ctx, "job_missing1")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestRunner_ShutdownCancelsInFlight(t *testing.T) {
	entered := make(chan struct{})
	handler := func(ctx context.Context, taskID int64, content string) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}

	r, engine := newTestRunner(t, handler)
	ctx := context.Background()

	job, err := engine.CreateJob(ctx, "")
	require.NoError(t, err)
	_, err = engine.AddTask(ctx, job.JobID, "interrupted by shutdown")
	require.NoError(t, err)

	started, err := r.StartJob(ctx, job.JobID)
	require.NoError(t, err)
	require.True(t, started)
	<-entered

	require.NoError(t, r.Shutdown(ctx))
	assert.Empty(t, r.Running())

	got, err := engine.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, got.Status)
}

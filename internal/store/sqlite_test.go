package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskmind/internal/logger"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	st, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "taskmind.db"),
		BusyTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func TestCreateAndGetJob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_ab12cd34", "summarize quarterly report")
	require.NoError(t, err)

	job, err := st.GetJob(ctx, "job_ab12cd34")
	require.NoError(t, err)

	assert.Equal(t, "job_ab12cd34", job.JobID)
	assert.Equal(t, "summarize quarterly report", job.Description)
	assert.Equal(t, StatusPending, job.Status)
	assert.Nil(t, job.StartTime)
	assert.Nil(t, job.EndTime)
	assert.Empty(t, job.Tasks)
}

func TestGetJob_NotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetJob(context.Background(), "job_missing1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestAddTask_UnknownJob(t *testing.T) {
	st := newTestStore(t)

	_, err := st.AddTask(context.Background(), "job_missing1", "do something")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestTasksKeepInsertionOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_0001aaaa", "")
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err := st.AddTask(ctx, "job_0001aaaa", content)
		require.NoError(t, err)
	}

	tasks, err := st.TasksForJob(ctx, "job_0001aaaa")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "first", tasks[0].Content)
	assert.Equal(t, "second", tasks[1].Content)
	assert.Equal(t, "third", tasks[2].Content)
}

func TestFinishJob_EndTimeStampedOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_end1time", "")
	require.NoError(t, err)
	require.NoError(t, st.MarkJobRunning(ctx, "job_end1time"))

	require.NoError(t, st.FinishJob(ctx, "job_end1time", StatusCancelled))
	job, err := st.GetJob(ctx, "job_end1time")
	require.NoError(t, err)
	require.NotNil(t, job.EndTime)
	first := *job.EndTime

	time.Sleep(10 * time.Millisecond)

	// A later terminal transition must not move end_time.
	require.NoError(t, st.FinishJob(ctx, "job_end1time", StatusCancelled))
	job, err = st.GetJob(ctx, "job_end1time")
	require.NoError(t, err)
	assert.True(t, job.EndTime.Equal(first))
}

func TestCancelRunningJob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_cancel01", "")
	require.NoError(t, err)
	taskID, err := st.AddTask(ctx, "job_cancel01", "long running work")
	require.NoError(t, err)

	require.NoError(t, st.MarkJobRunning(ctx, "job_cancel01"))
	require.NoError(t, st.MarkTaskRunning(ctx, taskID))

	cancelled, err := st.CancelRunningJob(ctx, "job_cancel01")
	require.NoError(t, err)
	assert.True(t, cancelled)

	job, err := st.GetJob(ctx, "job_cancel01")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
	require.Len(t, job.Tasks, 1)
	assert.Equal(t, StatusCancelled, job.Tasks[0].Status)
	assert.NotNil(t, job.Tasks[0].EndTime)
}

func TestCancelRunningJob_NotRunning(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_pending1", "")
	require.NoError(t, err)

	cancelled, err := st.CancelRunningJob(ctx, "job_pending1")
	require.NoError(t, err)
	assert.False(t, cancelled)

	cancelled, err = st.CancelRunningJob(ctx, "job_missing1")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestCancelAllRunning(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_run00001", "")
	require.NoError(t, err)
	require.NoError(t, st.MarkJobRunning(ctx, "job_run00001"))

	_, err = st.CreateJob(ctx, "job_done0001", "")
	require.NoError(t, err)
	require.NoError(t, st.MarkJobRunning(ctx, "job_done0001"))
	require.NoError(t, st.FinishJob(ctx, "job_done0001", StatusCompleted))

	require.NoError(t, st.CancelAllRunning(ctx))

	job, err := st.GetJob(ctx, "job_run00001")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)

	job, err = st.GetJob(ctx, "job_done0001")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestToolUseRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_tools001", "")
	require.NoError(t, err)
	taskID, err := st.AddTask(ctx, "job_tools001", "look something up")
	require.NoError(t, err)

	toolUseID, err := st.RecordToolUse(ctx, taskID, "demo_tool",
		map[string]any{"query": "look something up"}, nil)
	require.NoError(t, err)

	require.NoError(t, st.UpdateToolResult(ctx, toolUseID, `{"status":"ok"}`))

	job, err := st.GetJob(ctx, "job_tools001")
	require.NoError(t, err)
	require.Len(t, job.Tasks, 1)
	require.Len(t, job.Tasks[0].ToolUses, 1)

	tu := job.Tasks[0].ToolUses[0]
	assert.Equal(t, "demo_tool", tu.ToolName)
	assert.Equal(t, map[string]any{"query": "look something up"}, tu.Args)
	require.NotNil(t, tu.Result)
	assert.JSONEq(t, `{"status":"ok"}`, *tu.Result)
}

func TestRecordToolUse_UnknownTask(t *testing.T) {
	st := newTestStore(t)

	_, err := st.RecordToolUse(context.Background(), 9999, "demo_tool", nil, nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateToolResult_Unknown(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateToolResult(context.Background(), 9999, "never")
	assert.ErrorIs(t, err, ErrToolUseNotFound)
}

func TestListJobs_FilterAndOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_older001", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = st.CreateJob(ctx, "job_newer001", "")
	require.NoError(t, err)
	require.NoError(t, st.MarkJobRunning(ctx, "job_newer001"))
	require.NoError(t, st.FinishJob(ctx, "job_newer001", StatusCompleted))

	all, err := st.ListJobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "job_newer001", all[0].JobID)
	assert.Equal(t, "job_older001", all[1].JobID)

	completed, err := st.ListJobs(ctx, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "job_newer001", completed[0].JobID)
}

func TestPruneJobsBefore_CascadesAndSkipsActive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateJob(ctx, "job_old00001", "")
	require.NoError(t, err)
	taskID, err := st.AddTask(ctx, "job_old00001", "archived work")
	require.NoError(t, err)
	_, err = st.RecordToolUse(ctx, taskID, "demo_tool", nil, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkJobRunning(ctx, "job_old00001"))
	require.NoError(t, st.FinishJob(ctx, "job_old00001", StatusCompleted))

	_, err = st.CreateJob(ctx, "job_active01", "")
	require.NoError(t, err)
	require.NoError(t, st.MarkJobRunning(ctx, "job_active01"))

	removed, err := st.PruneJobsBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = st.GetJob(ctx, "job_old00001")
	assert.ErrorIs(t, err, ErrJobNotFound)

	job, err := st.GetJob(ctx, "job_active01")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

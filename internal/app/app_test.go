package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskmind/internal/config"
	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Workspace.Path = dir
	cfg.Storage.Path = filepath.Join(dir, "taskmind.db")
	cfg.LLM.Provider = "mock"
	cfg.Metrics.Enabled = false
	cfg.Retention.Enabled = false

	a := New(cfg, logger.Nop())
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown() })

	return a
}

func TestInitialize_WiresComponents(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.Engine())
	assert.NotNil(t, a.Runner())
	assert.NotNil(t, a.Controller())
	assert.Nil(t, a.Sweeper(), "retention disabled")
}

func TestApp_EndToEndJobFlow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	j, err := a.Engine().CreateJob(ctx, "wired job")
	require.NoError(t, err)
	_, err = a.Engine().AddTask(ctx, j.JobID, "one unit of work")
	require.NoError(t, err)

	final, err := a.Engine().RunJob(ctx, j.JobID, func(context.Context, int64, string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, final)
}

func TestApp_SchedulerUsesMockProvider(t *testing.T) {
	a := newTestApp(t)

	// The echo provider never emits task tags, so the run terminates with
	// the completion marker after the initial prompt and one nudge.
	transcript, err := a.Controller().Execute(context.Background(), "noop requirement")
	require.NoError(t, err)
	assert.Contains(t, transcript, "All tasks completed.")
}

func TestInitialize_UnknownProvider(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Workspace.Path = dir
	cfg.Storage.Path = filepath.Join(dir, "taskmind.db")
	cfg.LLM.Provider = "carrier-pigeon"

	a := New(cfg, logger.Nop())
	err := a.Initialize(context.Background())
	require.Error(t, err)
	_ = a.Shutdown()
}

package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskmind/internal/logger"
	"github.com/aatumaykin/taskmind/internal/store"
)

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "taskmind.db"),
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = NewSweeper(st, logger.Nop(), nil, "not a schedule", time.Hour)
	assert.Error(t, err)
}

func TestSweeper_RemovesOnlyOldTerminalJobs(t *testing.T) {
	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "taskmind.db"),
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engine := NewEngine(st, logger.Nop(), nil)
	ctx := context.Background()

	done, err := engine.CreateJob(ctx, "finished long ago")
	require.NoError(t, err)
	_, err = engine.RunJob(ctx, done.JobID, func(context.Context, int64, string) error { return nil })
	require.NoError(t, err)

	pending, err := engine.CreateJob(ctx, "still waiting")
	require.NoError(t, err)

	// A negative max age makes anything already terminal eligible.
	sweeper, err := NewSweeper(st, logger.Nop(), nil, "* * * * *", -time.Second)
	require.NoError(t, err)

	removed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = engine.GetJob(ctx, done.JobID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	_, err = engine.GetJob(ctx, pending.JobID)
	assert.NoError(t, err)
}

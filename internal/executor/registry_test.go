package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskmind/internal/llm"
	"github.com/aatumaykin/taskmind/internal/logger"
)

type stubExecutor struct {
	name  string
	state State
}

func (s *stubExecutor) Name() string { return s.name }

func (s *stubExecutor) Run(ctx context.Context, prompt string) (string, error) {
	return "done: " + prompt, nil
}

func (s *stubExecutor) State() State { return s.state }

func TestRegistry_ResolveHintFirst(t *testing.T) {
	r := NewRegistry([]string{"browser", "shell"})
	require.NoError(t, r.Register(&stubExecutor{name: "shell"}))
	require.NoError(t, r.Register(&stubExecutor{name: "browser"}))

	e, err := r.Resolve("shell")
	require.NoError(t, err)
	assert.Equal(t, "shell", e.Name())
}

func TestRegistry_UnknownHintFallsBackToDefaultOrder(t *testing.T) {
	r := NewRegistry([]string{"browser", "shell"})
	require.NoError(t, r.Register(&stubExecutor{name: "shell"}))

	// "browser" appears first in the order but is not registered.
	e, err := r.Resolve("no-such-executor")
	require.NoError(t, err)
	assert.Equal(t, "shell", e.Name())
}

func TestRegistry_FallsBackToPrimary(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubExecutor{name: "first"}))
	require.NoError(t, r.Register(&stubExecutor{name: "second"}))

	e, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "first", e.Name(), "first registration is the default primary")

	require.NoError(t, r.SetPrimary("second"))
	e, err = r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "second", e.Name())
}

func TestRegistry_EmptyIsConfigurationError(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Resolve("anything")
	assert.Error(t, err)
}

func TestRegistry_SetPrimaryUnknown(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.SetPrimary("ghost"))
}

func TestFinished(t *testing.T) {
	assert.False(t, Finished(&stubExecutor{name: "a", state: StateRunning}))
	assert.True(t, Finished(&stubExecutor{name: "b", state: StateFinished}))

	// Executors without a state signal never look finished.
	log := logger.Nop()
	assert.False(t, Finished(NewLLMExecutor("llm", llm.NewEchoProvider(), log)))
}

func TestLLMExecutor_Run(t *testing.T) {
	e := NewLLMExecutor("llm", llm.NewFixedProvider("the answer"), logger.Nop())

	out, err := e.Run(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

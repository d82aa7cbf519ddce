package executor

import (
	"context"

	"github.com/aatumaykin/taskmind/internal/llm"
	"github.com/aatumaykin/taskmind/internal/logger"
)

// LLMExecutor carries out tasks by sending the rendered prompt to an LLM
// provider and returning the completion text.
type LLMExecutor struct {
	name     string
	provider llm.Provider
	log      *logger.Logger
}

// NewLLMExecutor creates an executor backed by the given provider.
func NewLLMExecutor(name string, provider llm.Provider, log *logger.Logger) *LLMExecutor {
	return &LLMExecutor{name: name, provider: provider, log: log}
}

func (e *LLMExecutor) Name() string {
	return e.name
}

func (e *LLMExecutor) Run(ctx context.Context, prompt string) (string, error) {
	e.log.DebugCtx(ctx, "executor invoking llm",
		logger.Field{Key: "executor", Value: e.name},
		logger.Field{Key: "prompt_len", Value: len(prompt)})

	return llm.Ask(ctx, e.provider, prompt)
}

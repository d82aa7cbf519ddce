package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/aatumaykin/taskmind/internal/executor"
	"github.com/aatumaykin/taskmind/internal/llm"
	"github.com/aatumaykin/taskmind/internal/logger"
)

// CompletionMarker is appended to the transcript when the run terminates
// normally with an empty pending queue.
const CompletionMarker = "All tasks completed."

// Config tunes the controller loop.
type Config struct {
	// MaxIterations caps planning iterations as a runaway guard.
	// Zero means unlimited.
	MaxIterations int
}

// Controller drives the planning/execution loop: ask the LLM for queue
// operations, apply them, drain the resulting snapshot through resolved
// executors, and repeat until the queue stays empty.
type Controller struct {
	provider  llm.Provider
	registry  *executor.Registry
	templates *PromptTemplates
	log       *logger.Logger
	cfg       Config
}

// NewController wires a controller. The registry must hold at least one
// executor by the time Execute is called.
func NewController(provider llm.Provider, registry *executor.Registry, templates *PromptTemplates, log *logger.Logger, cfg Config) *Controller {
	return &Controller{
		provider:  provider,
		registry:  registry,
		templates: templates,
		log:       log,
		cfg:       cfg,
	}
}

// Execute runs the full planning loop for one user requirement and returns
// the run transcript. An empty executor registry is a configuration error
// and the only failure that aborts without a transcript.
func (c *Controller) Execute(ctx context.Context, requirement string) (string, error) {
	if c.registry.Len() == 0 {
		return "", fmt.Errorf("no executors registered")
	}

	var (
		transcript []string
		pending    []PendingTask
		completed  []CompletedTask
	)

	for iteration := 0; ; iteration++ {
		if c.cfg.MaxIterations > 0 && iteration >= c.cfg.MaxIterations {
			c.log.WarnCtx(ctx, "planning iteration limit reached",
				logger.Field{Key: "iterations", Value: iteration})
			transcript = append(transcript, "Planning iteration limit reached.")
			break
		}

		ops := c.plan(ctx, requirement, pending, completed, false)
		if len(ops) == 0 {
			// One nudge, then accept the outcome either way.
			ops = c.plan(ctx, requirement, pending, completed, true)
		}
		pending = Apply(ops, pending)

		if len(pending) == 0 {
			transcript = append(transcript, CompletionMarker)
			break
		}

		// Drain the snapshot in full; new operations only take effect
		// on the next planning iteration.
		snapshot := pending
		pending = nil
		for _, item := range snapshot {
			if err := ctx.Err(); err != nil {
				return strings.Join(transcript, "\n"), err
			}

			entry, record, finished := c.executeTask(ctx, item, completed)
			completed = append(completed, record)
			transcript = append(transcript, entry)

			if finished {
				c.log.InfoCtx(ctx, "executor signalled finished, aborting batch")
				return strings.Join(transcript, "\n"), nil
			}
		}
	}

	return strings.Join(transcript, "\n"), nil
}

// plan asks the LLM for queue operations. Any failure along the way is
// recovered locally as zero operations.
func (c *Controller) plan(ctx context.Context, requirement string, pending []PendingTask, completed []CompletedTask, nudge bool) []Operation {
	var prompt string
	var err error
	if nudge {
		prompt, err = c.templates.Nudge(requirement, pending, completed)
	} else {
		prompt, err = c.templates.Planning(requirement, pending, completed)
	}
	if err != nil {
		c.log.ErrorCtx(ctx, "failed to render planning prompt", err)
		return nil
	}

	text, err := llm.Ask(ctx, c.provider, prompt)
	if err != nil {
		c.log.WarnCtx(ctx, "llm planning call failed",
			logger.Field{Key: "nudge", Value: nudge},
			logger.Field{Key: "error", Value: err.Error()})
		return nil
	}

	ops := Parse(text)
	c.log.DebugCtx(ctx, "planning reply parsed",
		logger.Field{Key: "nudge", Value: nudge},
		logger.Field{Key: "operations", Value: len(ops)})
	return ops
}

// executeTask resolves an executor and runs one snapshot item. Executor
// failures become failure text in the completed record; the drain continues.
func (c *Controller) executeTask(ctx context.Context, item PendingTask, completed []CompletedTask) (string, CompletedTask, bool) {
	record := CompletedTask{
		Description: item.Description,
		Status:      "completed",
		Priority:    item.Priority,
	}

	exec, err := c.registry.Resolve(item.Executor)
	if err != nil {
		record.Result = "Task failed: " + err.Error()
		return progressEntry(record), record, false
	}

	prompt, err := c.templates.Execution(item.Description, completed)
	if err != nil {
		record.Result = "Task failed: " + err.Error()
		return progressEntry(record), record, false
	}

	result, err := exec.Run(ctx, prompt)
	if err != nil {
		record.Result = "Task failed: " + err.Error()
		c.log.WarnCtx(ctx, "task execution failed",
			logger.Field{Key: "executor", Value: exec.Name()},
			logger.Field{Key: "task", Value: item.Description},
			logger.Field{Key: "error", Value: err.Error()})
	} else {
		record.Result = result
	}

	return progressEntry(record), record, executor.Finished(exec)
}

func progressEntry(record CompletedTask) string {
	return fmt.Sprintf("Task %q (%s): %s", record.Description, record.Status, record.Result)
}

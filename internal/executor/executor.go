// Package executor defines the interchangeable task executor interface and
// the registry the scheduler resolves executors from.
package executor

import (
	"context"
)

// State is the optional lifecycle signal an executor can expose.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Executor carries out one scheduler task described by a prompt.
type Executor interface {
	// Name returns the unique name the executor is registered under.
	Name() string

	// Run executes the prompt and returns the result text.
	Run(ctx context.Context, prompt string) (string, error)
}

// Stateful is optionally implemented by executors that expose a terminal
// condition. The scheduler aborts its current batch when it observes
// StateFinished after an invocation.
type Stateful interface {
	State() State
}

// Finished reports whether the executor signals a terminal condition.
func Finished(e Executor) bool {
	s, ok := e.(Stateful)
	return ok && s.State() == StateFinished
}

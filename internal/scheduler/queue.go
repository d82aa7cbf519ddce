// Package scheduler implements the LLM-directed planning loop: parse
// semi-structured model output into queue operations, maintain pending and
// completed task ledgers, and drain each batch through resolved executors.
package scheduler

import (
	"sort"
	"strings"
)

// Priority is the three-value total order used to sort the pending queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// ParsePriority coerces arbitrary text to a priority. Unrecognized values
// become normal.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// PendingTask is one queued scheduler task awaiting execution.
type PendingTask struct {
	Description string
	Priority    Priority
	Executor    string // optional executor hint
}

// CompletedTask is a finished scheduler task fed back into future prompts.
type CompletedTask struct {
	Description string
	Status      string
	Result      string
	Priority    Priority
}

// OpKind discriminates queue operations.
type OpKind int

const (
	OpAdd OpKind = iota
	OpModify
	OpDelete
)

// Operation is one structured queue mutation extracted from LLM text.
// ID is 1-based and only meaningful for modify and delete. Empty Priority
// or Executor on a modify means the field is left untouched.
type Operation struct {
	Kind        OpKind
	ID          int
	Description string
	Priority    string
	Executor    string
}

// Apply processes the operations in order against a single queue snapshot:
// adds append, modifies and deletes address the 1-based index at the time
// the operation is applied, and out-of-range ids are silent no-ops. After
// the whole batch the queue is stably re-sorted by priority rank, so
// equal-rank items keep their prior relative order.
func Apply(ops []Operation, queue []PendingTask) []PendingTask {
	for _, op := range ops {
		switch op.Kind {
		case OpAdd:
			queue = append(queue, PendingTask{
				Description: op.Description,
				Priority:    ParsePriority(op.Priority),
				Executor:    op.Executor,
			})

		case OpModify:
			idx := op.ID - 1
			if idx < 0 || idx >= len(queue) {
				continue
			}
			queue[idx].Description = op.Description
			if op.Priority != "" {
				queue[idx].Priority = ParsePriority(op.Priority)
			}
			if op.Executor != "" {
				queue[idx].Executor = op.Executor
			}

		case OpDelete:
			idx := op.ID - 1
			if idx < 0 || idx >= len(queue) {
				continue
			}
			queue = append(queue[:idx], queue[idx+1:]...)
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Priority.rank() < queue[j].Priority.rank()
	})
	return queue
}

package core

import (
	"context"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// PostedTask: A task record inside a queue's containers
// =============================================================================

// PostedTask carries a task closure together with the bookkeeping the queue
// needs to order it: the desired run time (zero for immediate tasks), the
// per-queue sequence number assigned at post time, the nestable flag, and the
// enqueue order assigned at promotion time.
type PostedTask struct {
	// Run is the closure to execute exactly once.
	Run Task

	// PostedFrom is a free-form call-site tag used for diagnostics.
	PostedFrom string

	// DesiredRunTime is the absolute time the task becomes due. The zero
	// value marks an immediate task.
	DesiredRunTime time.Time

	// SequenceNumber records post order within one queue. It breaks ties
	// between delayed tasks with equal DesiredRunTime.
	SequenceNumber uint64

	// Nestable reports whether the task may run while the run loop is
	// already executing another task (nested work). Non-nestable tasks are
	// deferred until nesting unwinds.
	Nestable bool

	enqueueOrder    EnqueueOrder
	enqueueOrderSet bool
}

// IsDelayed reports whether the task was posted with a meaningful delay.
func (t *PostedTask) IsDelayed() bool {
	return !t.DesiredRunTime.IsZero()
}

// HasEnqueueOrder reports whether the task has been promoted and therefore
// carries its final position in the global order.
func (t *PostedTask) HasEnqueueOrder() bool {
	return t.enqueueOrderSet
}

// EnqueueOrder returns the position assigned at promotion.
// Reading it before promotion is a programming error and panics.
func (t *PostedTask) EnqueueOrder() EnqueueOrder {
	if !t.enqueueOrderSet {
		panic("taskqueue: enqueue order read before it was assigned")
	}
	return t.enqueueOrder
}

// setEnqueueOrder assigns the task's position in the global order.
// It must be called exactly once, at promotion time.
func (t *PostedTask) setEnqueueOrder(order EnqueueOrder) {
	if t.enqueueOrderSet {
		panic("taskqueue: enqueue order assigned twice")
	}
	if order == unsetEnqueueOrder {
		panic("taskqueue: enqueue order generator produced the unset sentinel")
	}
	t.enqueueOrder = order
	t.enqueueOrderSet = true
}

// =============================================================================
// QueuePriority: Weight used by the fairness selector across queues
// =============================================================================

// QueuePriority is the weight the fairness selector uses when choosing among
// multiple queues with ready work. It never affects ordering within a queue.
type QueuePriority int

const (
	// PriorityControl is reserved for queues that must pre-empt everything
	// else (scheduler-internal control work).
	PriorityControl QueuePriority = iota

	// PriorityHigh runs ahead of normal work.
	PriorityHigh

	// PriorityNormal is the default.
	PriorityNormal

	// PriorityBestEffort only runs when nothing else is ready.
	PriorityBestEffort

	queuePriorityCount
)

// String returns a stable label for the priority. Safe to call from any
// goroutine.
func (p QueuePriority) String() string {
	switch p {
	case PriorityControl:
		return "control"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// =============================================================================
// Context Helper
// =============================================================================

type taskQueueKeyType struct{}

var taskQueueKey taskQueueKeyType

// GetCurrentTaskQueue returns the queue whose task is currently executing, or
// nil when ctx does not originate from a manager run loop.
func GetCurrentTaskQueue(ctx context.Context) *TaskQueue {
	if v := ctx.Value(taskQueueKey); v != nil {
		return v.(*TaskQueue)
	}
	return nil
}

// ContextWithTaskQueue marks ctx as executing on behalf of q. The manager
// applies it to every task context so task bodies can find their own queue.
func ContextWithTaskQueue(ctx context.Context, q *TaskQueue) context.Context {
	return context.WithValue(ctx, taskQueueKey, q)
}

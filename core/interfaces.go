package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Owner: The contract a task queue requires from its owning manager
// =============================================================================

// Owner is the narrow interface through which a TaskQueue talks back to the
// component that constructed it. The manager multiplexes many queues, drives
// the run loop, and decides when promotion happens; the queue only reports
// that work may be ready.
//
// All methods except Selector may be called from any goroutine while holding
// at most the calling queue's lock, so implementations must not call back into
// the queue.
type Owner interface {
	// EnqueueOrderGenerator returns the generator shared by every queue of
	// this owner. Promotions on all queues draw from it.
	EnqueueOrderGenerator() *EnqueueOrderGenerator

	// Selector returns the fairness selector the owner's work queues
	// register with. Main-goroutine-only.
	Selector() *WorkQueueSets

	// MaybeScheduleWork requests a scheduling pass. canWake reports whether
	// the request may break an idle wait (the posting queue's wakeup
	// policy); when false the owner only runs a pass if one is already due.
	MaybeScheduleWork(canWake bool)

	// ScheduleDelayedWork tells the owner the earliest time queue needs a
	// wakeup for delayed work. The owner keeps the minimum across queues.
	ScheduleDelayedWork(queue *TaskQueue, runTime time.Time, canWake bool)

	// OnWorkAvailable is the explicit "work available" signal raised by
	// queues with PumpPolicyAutoWithNotification, independent of whether a
	// pass was scheduled.
	OnWorkAvailable(queue *TaskQueue)
}

// =============================================================================
// TaskObserver: Per-queue execution hooks
// =============================================================================

// TaskObserver receives WillProcessTask immediately before and DidProcessTask
// immediately after each task on the queue executes, in registration order.
// Observers may add or remove observers (including themselves) from within a
// notification; the queue iterates over a stable snapshot.
type TaskObserver interface {
	WillProcessTask(task *PostedTask)
	DidProcessTask(task *PostedTask)
}

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// Implementations should be thread-safe.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task
	// - queueName: The name of the queue the task was posted to
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, queueName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, queueName string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Queue %s] Panic: %v\nStack trace:\n%s", queueName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting queue and task metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD,
// etc.). Methods should be non-blocking and fast.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(queueName string, priority QueuePriority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordQueueDepth records the number of tasks currently held in one of
	// the queue's containers. stage is one of "immediate_incoming",
	// "delayed_incoming", "immediate_work", "delayed_work".
	RecordQueueDepth(queueName string, stage string, depth int)

	// RecordTaskRejected records that a post was rejected (e.g., after the
	// queue was unregistered).
	RecordTaskRejected(queueName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(queueName string, priority QueuePriority, duration time.Duration) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(queueName string, stage string, depth int) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(queueName string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected posts
// =============================================================================

// RejectedTaskHandler is called when a post is rejected. This happens when a
// task is posted to a queue that has already been unregistered or whose
// manager is shutting down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	// HandleRejectedTask is called when a post is rejected.
	//
	// Parameters:
	// - queueName: The name of the queue
	// - reason: Why the post was rejected (e.g., "unregistered", "shutdown")
	HandleRejectedTask(queueName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected posts.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected post.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(queueName string, reason string) {
	fmt.Printf("[Queue %s] Task rejected: %s\n", queueName, reason)
}

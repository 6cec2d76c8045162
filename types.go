package taskqueue

import "github.com/arcusq/go-task-queue/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskqueue package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskQueue accepts posted tasks and exposes them to the consumer goroutine
type TaskQueue = core.TaskQueue

// Spec describes a queue at construction time
type Spec = core.Spec

// TimeDomain resolves "now" for the queues that reference it
type TimeDomain = core.TimeDomain

// TaskObserver receives per-task execution notifications
type TaskObserver = core.TaskObserver

// QueuePriority is the fairness selector weight
type QueuePriority = core.QueuePriority

// PumpPolicy selects automatic or manual promotion
type PumpPolicy = core.PumpPolicy

// WakeupPolicy decides whether queue activity may break an idle wait
type WakeupPolicy = core.WakeupPolicy

// Priority constants
const (
	PriorityControl    QueuePriority = core.PriorityControl
	PriorityHigh       QueuePriority = core.PriorityHigh
	PriorityNormal     QueuePriority = core.PriorityNormal
	PriorityBestEffort QueuePriority = core.PriorityBestEffort
)

// Pump policy constants
const (
	PumpPolicyAuto                 PumpPolicy = core.PumpPolicyAuto
	PumpPolicyAutoWithNotification PumpPolicy = core.PumpPolicyAutoWithNotification
	PumpPolicyManual               PumpPolicy = core.PumpPolicyManual
)

// Wakeup policy constants
const (
	WakeupPolicyCanWakeOtherQueues    WakeupPolicy = core.WakeupPolicyCanWakeOtherQueues
	WakeupPolicyCannotWakeOtherQueues WakeupPolicy = core.WakeupPolicyCannotWakeOtherQueues
)

// Convenience re-exports
var (
	NewSpec              = core.NewSpec
	NewRealTimeDomain    = core.NewRealTimeDomain
	NewVirtualTimeDomain = core.NewVirtualTimeDomain
	GetCurrentTaskQueue  = core.GetCurrentTaskQueue
)

package core

import (
	"time"

	"github.com/sugawarayuuta/sonnet"
)

// QueueSnapshot is a point-in-time view of a queue for debugging and metrics
// export. Producing one takes only the queue's single critical section, to
// read the cross-goroutine containers; everything else comes from immutable
// fields and lock-free mirrors.
type QueueSnapshot struct {
	Name         string `json:"name"`
	TimeDomain   string `json:"time_domain"`
	PumpPolicy   string `json:"pump_policy"`
	WakeupPolicy string `json:"wakeup_policy"`
	Priority     string `json:"priority"`

	Enabled            bool `json:"enabled"`
	Unregistered       bool `json:"unregistered"`
	MonitorsQuiescence bool `json:"monitors_quiescence"`

	ImmediateIncomingCount int `json:"immediate_incoming_count"`
	DelayedIncomingCount   int `json:"delayed_incoming_count"`
	ImmediateWorkCount     int `json:"immediate_work_count"`
	DelayedWorkCount       int `json:"delayed_work_count"`

	// OldestDesiredRunTime is the earliest due time among unpromoted delayed
	// tasks, nil when there are none.
	OldestDesiredRunTime *time.Time `json:"oldest_desired_run_time,omitempty"`

	TasksPosted    uint64 `json:"tasks_posted"`
	TasksPromoted  uint64 `json:"tasks_promoted"`
	TasksDiscarded uint64 `json:"tasks_discarded"`
	PostsRejected  uint64 `json:"posts_rejected"`
}

// Snapshot captures the queue's current state. Safe from any goroutine.
func (q *TaskQueue) Snapshot() QueueSnapshot {
	q.mu.Lock()
	snapshot := QueueSnapshot{
		Name:                   q.name,
		PumpPolicy:             q.anyThread.pumpPolicy.String(),
		Unregistered:           q.anyThread.owner == nil,
		ImmediateIncomingCount: len(q.anyThread.immediateIncoming),
		DelayedIncomingCount:   q.anyThread.delayedIncoming.Len(),
	}
	if q.anyThread.timeDomain != nil {
		snapshot.TimeDomain = q.anyThread.timeDomain.Name()
	}
	if q.anyThread.delayedIncoming.Len() > 0 {
		oldest := q.anyThread.delayedIncoming[0].DesiredRunTime
		snapshot.OldestDesiredRunTime = &oldest
	}
	q.mu.Unlock()

	snapshot.WakeupPolicy = q.wakeupPolicy.String()
	snapshot.Priority = QueuePriority(q.priorityMirror.Load()).String()
	snapshot.Enabled = q.enabledMirror.Load()
	snapshot.MonitorsQuiescence = q.shouldMonitorQuiescence
	snapshot.ImmediateWorkCount = int(q.mainThreadOnly.immediateWorkQueue.depth.Load())
	snapshot.DelayedWorkCount = int(q.mainThreadOnly.delayedWorkQueue.depth.Load())
	snapshot.TasksPosted = q.posted.Load()
	snapshot.TasksPromoted = q.promoted.Load()
	snapshot.TasksDiscarded = q.discarded.Load()
	snapshot.PostsRejected = q.rejectedCount.Load()
	return snapshot
}

// AsValue serializes the queue's snapshot to JSON for tracing and debugging.
func (q *TaskQueue) AsValue() ([]byte, error) {
	return sonnet.Marshal(q.Snapshot())
}

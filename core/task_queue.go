package core

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// TaskQueue accepts immediate and delayed work from any goroutine, orders it
// deterministically, and exposes it to the single consumer goroutine through
// two ready work queues that a fairness selector pulls from.
//
// State is split by access discipline, never shared between disciplines:
//
//   - anyThread: producer-visible containers (incoming queues, pump policy,
//     time domain, owner pointer), guarded by exactly one lock.
//   - mainThreadOnly: work queues, priority, enabled flag, observers, guarded
//     by a goroutine-affinity check instead of a lock. The consumer never
//     blocks to read its own ready queues.
//
// The union of incoming and work-queue containers holds each live task exactly
// once: promotion moves tasks, it never copies or drops them.
type TaskQueue struct {
	name                    string
	wakeupPolicy            WakeupPolicy
	shouldNotifyObservers   bool
	shouldMonitorQuiescence bool

	logger   Logger
	metrics  Metrics
	rejected RejectedTaskHandler

	mu        sync.Mutex
	anyThread anyThreadState

	affinity       goroutineAffinity
	mainThreadOnly mainThreadState

	// Lifetime accounting: posted == promoted + discarded once the queue is
	// unregistered. Readable from any goroutine for diagnostics.
	posted        atomic.Uint64
	promoted      atomic.Uint64
	discarded     atomic.Uint64
	rejectedCount atomic.Uint64

	// Mirrors for lock-free diagnostic snapshots.
	enabledMirror  atomic.Bool
	priorityMirror atomic.Int32
}

// anyThreadState is the cross-goroutine section. Every field requires holding
// TaskQueue.mu, from any goroutine including the consumer.
type anyThreadState struct {
	// owner is nil once the queue has been unregistered; posts then fail.
	owner Owner

	immediateIncoming []*PostedTask
	delayedIncoming   delayedTaskHeap
	pumpPolicy        PumpPolicy
	timeDomain        TimeDomain

	// nextSequenceNumber stamps post order within this queue.
	nextSequenceNumber uint64
}

// mainThreadState is only ever touched from the goroutine the queue's affinity
// bound to. No lock protects it; the affinity check does.
type mainThreadState struct {
	// owner is a second copy kept for lock-free reads on the consumer
	// goroutine. Only the main goroutine clears it, at unregistration.
	owner Owner

	immediateWorkQueue *WorkQueue
	delayedWorkQueue   *WorkQueue
	observers          []TaskObserver
	enabled            bool
	priority           QueuePriority

	// lastObservedNow detects a time domain whose now moves backwards,
	// which is logged as a recoverable anomaly.
	lastObservedNow time.Time
}

// Hooks carries the ambient collaborators a queue reports through. Zero-value
// fields are replaced with defaults.
type Hooks struct {
	Logger              Logger
	Metrics             Metrics
	RejectedTaskHandler RejectedTaskHandler
}

func (h Hooks) withDefaults() Hooks {
	if h.Logger == nil {
		h.Logger = NewDefaultLogger()
	}
	if h.Metrics == nil {
		h.Metrics = &NilMetrics{}
	}
	if h.RejectedTaskHandler == nil {
		h.RejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}
	return h
}

// NewTaskQueue creates a queue owned by owner. The time domain is borrowed,
// never owned: it must outlive the queue and may be swapped at runtime via
// SetTimeDomain. Queues are created on the goroutine that will consume them,
// or before the owner's run loop starts.
func NewTaskQueue(owner Owner, timeDomain TimeDomain, spec Spec, hooks Hooks) *TaskQueue {
	if owner == nil {
		panic("taskqueue: NewTaskQueue requires an owner")
	}
	if timeDomain == nil {
		timeDomain = NewRealTimeDomain()
	}
	hooks = hooks.withDefaults()

	q := &TaskQueue{
		name:                    spec.Name,
		wakeupPolicy:            spec.WakeupPolicy,
		shouldNotifyObservers:   spec.ShouldNotifyObservers,
		shouldMonitorQuiescence: spec.ShouldMonitorQuiescence,
		logger:                  hooks.Logger,
		metrics:                 hooks.Metrics,
		rejected:                hooks.RejectedTaskHandler,
		anyThread: anyThreadState{
			owner:             owner,
			immediateIncoming: make([]*PostedTask, 0, defaultWorkQueueCap),
			pumpPolicy:        spec.PumpPolicy,
			timeDomain:        timeDomain,
		},
		mainThreadOnly: mainThreadState{
			owner:    owner,
			enabled:  true,
			priority: spec.Priority,
		},
	}
	q.mainThreadOnly.immediateWorkQueue = newWorkQueue(q, "immediate")
	q.mainThreadOnly.delayedWorkQueue = newWorkQueue(q, "delayed")
	q.mainThreadOnly.immediateWorkQueue.assignWorkQueueSets(owner.Selector(), int(spec.Priority))
	q.mainThreadOnly.delayedWorkQueue.assignWorkQueueSets(owner.Selector(), int(spec.Priority))
	q.enabledMirror.Store(true)
	q.priorityMirror.Store(int32(spec.Priority))
	heap.Init(&q.anyThread.delayedIncoming)
	return q
}

// Name returns the queue's diagnostic label. Safe from any goroutine.
func (q *TaskQueue) Name() string {
	return q.name
}

// WakeupPolicy returns the queue's fixed wakeup policy. Safe from any
// goroutine.
func (q *TaskQueue) WakeupPolicy() WakeupPolicy {
	return q.wakeupPolicy
}

// ShouldNotifyObservers reports whether Will/DidProcessTask fire for this
// queue's tasks.
func (q *TaskQueue) ShouldNotifyObservers() bool {
	return q.shouldNotifyObservers
}

// ShouldMonitorQuiescence reports whether activity on this queue counts
// against quiescence.
func (q *TaskQueue) ShouldMonitorQuiescence() bool {
	return q.shouldMonitorQuiescence
}

// BindToCurrentGoroutine rebinds the queue's main-goroutine affinity to the
// caller. Only the owning manager uses this, once, when its run loop starts;
// configuration done before the loop existed is handed over to it.
func (q *TaskQueue) BindToCurrentGoroutine() {
	q.affinity.bindToCurrent()
}

// =============================================================================
// Posting (any goroutine)
// =============================================================================

type taskType int

const (
	taskTypeNormal taskType = iota
	taskTypeNonNestable
)

// PostTask posts an immediate task. It returns false, and the task is
// discarded, if the queue has been unregistered.
func (q *TaskQueue) PostTask(postedFrom string, task Task) bool {
	return q.postDelayedTaskImpl(postedFrom, task, 0, taskTypeNormal)
}

// PostDelayedTask posts a task that becomes due after delay. A zero or
// negative delay posts an immediate task.
func (q *TaskQueue) PostDelayedTask(postedFrom string, task Task, delay time.Duration) bool {
	return q.postDelayedTaskImpl(postedFrom, task, delay, taskTypeNormal)
}

// PostNonNestableTask posts an immediate task that must not run while the run
// loop is executing nested work; it is deferred until nesting unwinds.
func (q *TaskQueue) PostNonNestableTask(postedFrom string, task Task) bool {
	return q.postDelayedTaskImpl(postedFrom, task, 0, taskTypeNonNestable)
}

// PostNonNestableDelayedTask is the delayed variant of PostNonNestableTask.
func (q *TaskQueue) PostNonNestableDelayedTask(postedFrom string, task Task, delay time.Duration) bool {
	return q.postDelayedTaskImpl(postedFrom, task, delay, taskTypeNonNestable)
}

func (q *TaskQueue) postDelayedTaskImpl(postedFrom string, task Task, delay time.Duration, tt taskType) bool {
	if task == nil {
		return false
	}

	record := &PostedTask{
		Run:        task,
		PostedFrom: postedFrom,
		Nestable:   tt == taskTypeNormal,
	}

	canWake := q.wakeupPolicy == WakeupPolicyCanWakeOtherQueues

	q.mu.Lock()
	owner := q.anyThread.owner
	if owner == nil {
		q.mu.Unlock()
		q.rejectedCount.Add(1)
		q.rejected.HandleRejectedTask(q.name, "unregistered")
		q.metrics.RecordTaskRejected(q.name, "unregistered")
		return false
	}

	q.anyThread.nextSequenceNumber++
	record.SequenceNumber = q.anyThread.nextSequenceNumber

	if delay <= 0 {
		wasEmpty := len(q.anyThread.immediateIncoming) == 0
		pump := q.anyThread.pumpPolicy
		q.anyThread.immediateIncoming = append(q.anyThread.immediateIncoming, record)
		depth := len(q.anyThread.immediateIncoming)
		q.mu.Unlock()

		q.posted.Add(1)
		q.metrics.RecordQueueDepth(q.name, "immediate_incoming", depth)
		if pump == PumpPolicyAutoWithNotification {
			owner.OnWorkAvailable(q)
		}
		if wasEmpty && pump.IsAuto() {
			owner.MaybeScheduleWork(canWake)
		}
		return true
	}

	record.DesiredRunTime = q.anyThread.timeDomain.Now().Add(delay)
	heap.Push(&q.anyThread.delayedIncoming, record)
	newFront := q.anyThread.delayedIncoming[0] == record
	depth := q.anyThread.delayedIncoming.Len()
	q.mu.Unlock()

	q.posted.Add(1)
	q.metrics.RecordQueueDepth(q.name, "delayed_incoming", depth)
	if newFront {
		owner.ScheduleDelayedWork(q, record.DesiredRunTime, canWake)
	}
	return true
}

// =============================================================================
// Promotion (main goroutine only)
// =============================================================================

// UpdateImmediateWorkQueue drains the whole immediate-incoming container into
// the immediate work queue, assigning each task's enqueue order from the
// shared generator at this moment, in post order. Manual-pump queues are
// skipped; only PumpQueue promotes their work. Calling it from any goroutine
// other than the consumer is a no-op.
//
// previousTask, when non-nil, marks a promotion happening in the middle of a
// scheduling pass (right after previousTask ran); such promotions never
// request another pass, the running one will pick the work up.
func (q *TaskQueue) UpdateImmediateWorkQueue(shouldTriggerWakeup bool, previousTask *PostedTask) {
	if !q.affinity.calledOnValidGoroutine() {
		q.logger.Warn("immediate work queue update attempted off the consumer goroutine",
			F("queue", q.name))
		return
	}

	q.mu.Lock()
	if q.anyThread.owner == nil || !q.anyThread.pumpPolicy.IsAuto() {
		q.mu.Unlock()
		return
	}
	moved := q.moveReadyImmediateTasksLocked()
	q.mu.Unlock()

	q.notifyPromotedWork(moved, shouldTriggerWakeup, previousTask)
}

// UpdateDelayedWorkQueue pops every delayed-incoming task whose desired run
// time is at or before now into the delayed work queue, in (desired run time,
// sequence number) order, assigning enqueue orders from the same generator as
// immediate promotions. Manual-pump queues are skipped. Calling it from any
// goroutine other than the consumer is a no-op.
func (q *TaskQueue) UpdateDelayedWorkQueue(now time.Time, shouldTriggerWakeup bool, previousTask *PostedTask) {
	if !q.affinity.calledOnValidGoroutine() {
		q.logger.Warn("delayed work queue update attempted off the consumer goroutine",
			F("queue", q.name))
		return
	}

	q.mu.Lock()
	if q.anyThread.owner == nil || !q.anyThread.pumpPolicy.IsAuto() {
		q.mu.Unlock()
		return
	}
	moved := q.moveReadyDelayedTasksLocked(now)
	q.mu.Unlock()

	q.notifyPromotedWork(moved, shouldTriggerWakeup, previousTask)
}

// PumpQueue promotes everything currently ready, regardless of pump policy:
// delayed tasks due at the queue's time domain's now first, then all immediate
// tasks. When mayScheduleWork is true and work became ready, a scheduling pass
// is requested. No-op off the consumer goroutine.
func (q *TaskQueue) PumpQueue(mayScheduleWork bool) {
	if !q.affinity.calledOnValidGoroutine() {
		q.logger.Warn("pump attempted off the consumer goroutine", F("queue", q.name))
		return
	}

	q.mu.Lock()
	if q.anyThread.owner == nil {
		q.mu.Unlock()
		return
	}
	now := q.anyThread.timeDomain.Now()
	moved := q.moveReadyDelayedTasksLocked(now)
	moved += q.moveReadyImmediateTasksLocked()
	q.mu.Unlock()

	q.notifyPromotedWork(moved, mayScheduleWork, nil)
}

// moveReadyImmediateTasksLocked requires q.mu and the consumer goroutine.
func (q *TaskQueue) moveReadyImmediateTasksLocked() int {
	incoming := q.anyThread.immediateIncoming
	moved := len(incoming)
	if moved == 0 {
		return 0
	}
	q.anyThread.immediateIncoming = make([]*PostedTask, 0, defaultWorkQueueCap)

	generator := q.mainThreadOnly.owner.EnqueueOrderGenerator()
	wq := q.mainThreadOnly.immediateWorkQueue
	for i, task := range incoming {
		task.setEnqueueOrder(generator.Next())
		wq.Push(task)
		incoming[i] = nil
	}
	q.promoted.Add(uint64(moved))
	return moved
}

// moveReadyDelayedTasksLocked requires q.mu and the consumer goroutine.
func (q *TaskQueue) moveReadyDelayedTasksLocked(now time.Time) int {
	if !q.mainThreadOnly.lastObservedNow.IsZero() && now.Before(q.mainThreadOnly.lastObservedNow) {
		q.logger.Warn("time domain now moved backwards",
			F("queue", q.name),
			F("now", now),
			F("previous", q.mainThreadOnly.lastObservedNow))
	}
	q.mainThreadOnly.lastObservedNow = now

	generator := q.mainThreadOnly.owner.EnqueueOrderGenerator()
	wq := q.mainThreadOnly.delayedWorkQueue
	moved := 0
	for q.anyThread.delayedIncoming.Len() > 0 {
		front := q.anyThread.delayedIncoming[0]
		// A desired run time already in the past is still valid work, it
		// promotes immediately.
		if front.DesiredRunTime.After(now) {
			break
		}
		task := heap.Pop(&q.anyThread.delayedIncoming).(*PostedTask)
		task.setEnqueueOrder(generator.Next())
		wq.Push(task)
		moved++
	}
	q.promoted.Add(uint64(moved))
	return moved
}

func (q *TaskQueue) notifyPromotedWork(moved int, shouldTriggerWakeup bool, previousTask *PostedTask) {
	if moved == 0 {
		return
	}
	q.metrics.RecordQueueDepth(q.name, "immediate_work", q.mainThreadOnly.immediateWorkQueue.Len())
	q.metrics.RecordQueueDepth(q.name, "delayed_work", q.mainThreadOnly.delayedWorkQueue.Len())
	if !shouldTriggerWakeup || previousTask != nil {
		return
	}
	if !q.mainThreadOnly.enabled {
		return
	}
	q.mainThreadOnly.owner.MaybeScheduleWork(q.wakeupPolicy == WakeupPolicyCanWakeOtherQueues)
}

// =============================================================================
// Policy / priority / enablement
// =============================================================================

// PumpPolicy returns the queue's current pump policy. Safe from any goroutine.
func (q *TaskQueue) PumpPolicy() PumpPolicy {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.anyThread.pumpPolicy
}

// SetPumpPolicy changes the pump policy. Setting the current policy again is a
// no-op. Switching out of PumpPolicyManual immediately promotes any stranded
// ready work: on the consumer goroutine the promotion happens inline,
// elsewhere a scheduling pass is requested so the loop performs it.
func (q *TaskQueue) SetPumpPolicy(policy PumpPolicy) {
	q.mu.Lock()
	old := q.anyThread.pumpPolicy
	if old == policy || q.anyThread.owner == nil {
		q.mu.Unlock()
		return
	}
	q.anyThread.pumpPolicy = policy
	leftManual := old == PumpPolicyManual && policy.IsAuto()

	if leftManual && q.affinity.calledOnValidGoroutine() {
		now := q.anyThread.timeDomain.Now()
		moved := q.moveReadyDelayedTasksLocked(now)
		moved += q.moveReadyImmediateTasksLocked()
		q.mu.Unlock()
		q.notifyPromotedWork(moved, true, nil)
		return
	}

	owner := q.anyThread.owner
	hasIncoming := len(q.anyThread.immediateIncoming) > 0 || q.anyThread.delayedIncoming.Len() > 0
	q.mu.Unlock()

	if leftManual && hasIncoming {
		owner.MaybeScheduleWork(q.wakeupPolicy == WakeupPolicyCanWakeOtherQueues)
	}
}

// Priority returns the selector weight. Consumer goroutine only.
func (q *TaskQueue) Priority() QueuePriority {
	if !q.affinity.calledOnValidGoroutine() {
		return QueuePriority(q.priorityMirror.Load())
	}
	return q.mainThreadOnly.priority
}

// SetQueuePriority changes the weight the fairness selector uses when choosing
// among queues with ready work. It never reorders tasks within this queue.
// No-op off the consumer goroutine.
func (q *TaskQueue) SetQueuePriority(priority QueuePriority) {
	if !q.affinity.calledOnValidGoroutine() {
		q.logger.Warn("priority change attempted off the consumer goroutine", F("queue", q.name))
		return
	}
	if priority == q.mainThreadOnly.priority || q.mainThreadOnly.owner == nil {
		return
	}
	q.mainThreadOnly.priority = priority
	q.priorityMirror.Store(int32(priority))

	selector := q.mainThreadOnly.owner.Selector()
	selector.ChangeSetIndex(q.mainThreadOnly.immediateWorkQueue, int(priority))
	selector.ChangeSetIndex(q.mainThreadOnly.delayedWorkQueue, int(priority))
}

// IsQueueEnabled reports whether the queue participates in selection.
func (q *TaskQueue) IsQueueEnabled() bool {
	if !q.affinity.calledOnValidGoroutine() {
		return q.enabledMirror.Load()
	}
	return q.mainThreadOnly.enabled
}

// SetQueueEnabled excludes (false) or re-includes (true) the queue's work
// queues from the selector's candidate set. Contents are retained either way:
// re-enabling makes previously promoted tasks selectable again with their
// already-assigned enqueue orders. No-op off the consumer goroutine.
func (q *TaskQueue) SetQueueEnabled(enabled bool) {
	if !q.affinity.calledOnValidGoroutine() {
		q.logger.Warn("enable change attempted off the consumer goroutine", F("queue", q.name))
		return
	}
	if enabled == q.mainThreadOnly.enabled || q.mainThreadOnly.owner == nil {
		return
	}
	q.mainThreadOnly.enabled = enabled
	q.enabledMirror.Store(enabled)

	selector := q.mainThreadOnly.owner.Selector()
	imm := q.mainThreadOnly.immediateWorkQueue
	del := q.mainThreadOnly.delayedWorkQueue
	if enabled {
		selector.AddQueue(imm, int(q.mainThreadOnly.priority))
		selector.AddQueue(del, int(q.mainThreadOnly.priority))
	} else {
		selector.RemoveQueue(imm)
		selector.RemoveQueue(del)
	}
}

func (q *TaskQueue) isEnabledOnMainGoroutine() bool {
	return q.mainThreadOnly.enabled
}

// =============================================================================
// Time domain
// =============================================================================

// TimeDomain returns the domain currently resolving now for this queue.
func (q *TaskQueue) TimeDomain() TimeDomain {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.anyThread.timeDomain
}

// SetTimeDomain swaps the queue's borrowed time domain. Pending delayed tasks
// are kept and re-evaluated against the new domain's now at the next
// promotion; the owner is told about the earliest pending task so its wakeup
// timer reflects the new domain.
func (q *TaskQueue) SetTimeDomain(domain TimeDomain) {
	if domain == nil {
		return
	}
	q.mu.Lock()
	if q.anyThread.timeDomain == domain || q.anyThread.owner == nil {
		q.mu.Unlock()
		return
	}
	q.anyThread.timeDomain = domain
	owner := q.anyThread.owner
	var front *PostedTask
	if q.anyThread.delayedIncoming.Len() > 0 {
		front = q.anyThread.delayedIncoming[0]
	}
	q.mu.Unlock()

	if front != nil {
		owner.ScheduleDelayedWork(q, front.DesiredRunTime,
			q.wakeupPolicy == WakeupPolicyCanWakeOtherQueues)
	}
}

// =============================================================================
// Observers
// =============================================================================

// AddTaskObserver registers observer. Consumer goroutine only; notifications
// arrive in registration order.
func (q *TaskQueue) AddTaskObserver(observer TaskObserver) {
	if observer == nil || !q.affinity.calledOnValidGoroutine() {
		return
	}
	q.mainThreadOnly.observers = append(q.mainThreadOnly.observers, observer)
}

// RemoveTaskObserver removes the first registration of observer. Safe to call
// from within a notification.
func (q *TaskQueue) RemoveTaskObserver(observer TaskObserver) {
	if observer == nil || !q.affinity.calledOnValidGoroutine() {
		return
	}
	observers := q.mainThreadOnly.observers
	for i, o := range observers {
		if o == observer {
			q.mainThreadOnly.observers = append(observers[:i:i], observers[i+1:]...)
			return
		}
	}
}

// NotifyWillProcessTask tells observers the task is about to run. The manager
// calls this immediately before executing each task from this queue.
func (q *TaskQueue) NotifyWillProcessTask(task *PostedTask) {
	if !q.shouldNotifyObservers || !q.affinity.calledOnValidGoroutine() {
		return
	}
	// Snapshot so observers may mutate the observer set mid-notification.
	snapshot := append([]TaskObserver(nil), q.mainThreadOnly.observers...)
	for _, o := range snapshot {
		o.WillProcessTask(task)
	}
}

// NotifyDidProcessTask tells observers the task finished running.
func (q *TaskQueue) NotifyDidProcessTask(task *PostedTask) {
	if !q.shouldNotifyObservers || !q.affinity.calledOnValidGoroutine() {
		return
	}
	snapshot := append([]TaskObserver(nil), q.mainThreadOnly.observers...)
	for _, o := range snapshot {
		o.DidProcessTask(task)
	}
}

// =============================================================================
// Observations
// =============================================================================

// ImmediateWorkQueue exposes the ready immediate buffer to the selector and
// the manager. Consumer goroutine only.
func (q *TaskQueue) ImmediateWorkQueue() *WorkQueue {
	return q.mainThreadOnly.immediateWorkQueue
}

// DelayedWorkQueue exposes the ready delayed buffer. Consumer goroutine only.
func (q *TaskQueue) DelayedWorkQueue() *WorkQueue {
	return q.mainThreadOnly.delayedWorkQueue
}

// IsEmpty reports whether the queue holds no tasks in any container.
func (q *TaskQueue) IsEmpty() bool {
	q.mu.Lock()
	incoming := len(q.anyThread.immediateIncoming) + q.anyThread.delayedIncoming.Len()
	q.mu.Unlock()
	if incoming > 0 {
		return false
	}
	return q.mainThreadOnly.immediateWorkQueue.depth.Load() == 0 &&
		q.mainThreadOnly.delayedWorkQueue.depth.Load() == 0
}

// HasPendingImmediateWork reports whether unpromoted or promoted immediate
// work exists.
func (q *TaskQueue) HasPendingImmediateWork() bool {
	q.mu.Lock()
	incoming := len(q.anyThread.immediateIncoming)
	q.mu.Unlock()
	return incoming > 0 || q.mainThreadOnly.immediateWorkQueue.depth.Load() > 0
}

// NeedsPumping reports whether a manual-pump queue is sitting on incoming work
// that only PumpQueue will promote.
func (q *TaskQueue) NeedsPumping() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.anyThread.pumpPolicy != PumpPolicyManual {
		return false
	}
	if len(q.anyThread.immediateIncoming) > 0 {
		return true
	}
	if q.anyThread.delayedIncoming.Len() == 0 {
		return false
	}
	return !q.anyThread.delayedIncoming[0].DesiredRunTime.After(q.anyThread.timeDomain.Now())
}

// NextDelayedRunTime returns the earliest desired run time among unpromoted
// delayed tasks. Safe from any goroutine.
func (q *TaskQueue) NextDelayedRunTime() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.anyThread.delayedIncoming.Len() == 0 {
		return time.Time{}, false
	}
	return q.anyThread.delayedIncoming[0].DesiredRunTime, true
}

// =============================================================================
// Unregistration
// =============================================================================

// Unregister detaches the queue from its manager. Every pending task, incoming
// or already promoted, is discarded and will never execute; later posts return
// false. Repeated calls are no-ops. When called off the consumer goroutine the
// ready buffers cannot be touched here; the manager's next scheduling pass
// observes the dead queue and discards them through DiscardReadyWork.
func (q *TaskQueue) Unregister() {
	q.mu.Lock()
	if q.anyThread.owner == nil {
		q.mu.Unlock()
		return
	}
	q.anyThread.owner = nil
	dropped := len(q.anyThread.immediateIncoming) + q.anyThread.delayedIncoming.Len()
	q.anyThread.immediateIncoming = nil
	q.anyThread.delayedIncoming = nil
	q.mu.Unlock()

	q.discarded.Add(uint64(dropped))

	if !q.affinity.calledOnValidGoroutine() {
		q.logger.Warn("queue unregistered off the consumer goroutine", F("queue", q.name))
		return
	}
	q.discardReadyWork()
}

// DiscardReadyWork drops every already-promoted task and withdraws the ready
// buffers from the fairness selector. The manager calls it when a scheduling
// pass encounters a queue that was unregistered off the consumer goroutine;
// it is the consumer-side half of Unregister. No-op on any other goroutine.
func (q *TaskQueue) DiscardReadyWork() {
	if !q.affinity.calledOnValidGoroutine() {
		return
	}
	q.discardReadyWork()
}

// discardReadyWork requires the consumer goroutine.
func (q *TaskQueue) discardReadyWork() {
	q.mainThreadOnly.owner = nil
	// Cleared work-queue tasks were already counted as promoted; counting
	// them as discarded too would break posted == promoted + discarded.
	q.mainThreadOnly.immediateWorkQueue.Clear()
	q.mainThreadOnly.delayedWorkQueue.Clear()
	q.mainThreadOnly.observers = nil
}

// IsUnregistered reports whether the queue has been detached from its manager.
func (q *TaskQueue) IsUnregistered() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.anyThread.owner == nil
}

// =============================================================================
// Delayed incoming heap: ordered by (desired run time, sequence number)
// =============================================================================

type delayedTaskHeap []*PostedTask

func (h delayedTaskHeap) Len() int { return len(h) }

func (h delayedTaskHeap) Less(i, j int) bool {
	if !h[i].DesiredRunTime.Equal(h[j].DesiredRunTime) {
		return h[i].DesiredRunTime.Before(h[j].DesiredRunTime)
	}
	// Equal run times: the one posted first promotes first.
	return h[i].SequenceNumber < h[j].SequenceNumber
}

func (h delayedTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *delayedTaskHeap) Push(x any) {
	*h = append(*h, x.(*PostedTask))
}

func (h *delayedTaskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[0 : n-1]
	return task
}

package taskqueue

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcusq/go-task-queue/core"
)

// =============================================================================
// ManagerConfig: Configuration for QueueManager
// =============================================================================

// ManagerConfig holds configuration options for QueueManager.
// All handlers are optional; if not provided, default implementations will be
// used.
type ManagerConfig struct {
	// PanicHandler is called when a task panics. Defaults to
	// core.DefaultPanicHandler.
	PanicHandler core.PanicHandler

	// Metrics records task execution metrics. Defaults to core.NilMetrics.
	Metrics core.Metrics

	// RejectedTaskHandler is called when a post is rejected. Defaults to
	// core.DefaultRejectedTaskHandler.
	RejectedTaskHandler core.RejectedTaskHandler

	// Logger receives recoverable anomalies. Defaults to core.DefaultLogger.
	Logger core.Logger

	// DefaultTimeDomain resolves now for queues whose Spec does not name a
	// domain. Defaults to the real time domain.
	DefaultTimeDomain core.TimeDomain

	// OnWorkAvailable receives the explicit signal raised by queues with
	// core.PumpPolicyAutoWithNotification. Optional; may be called from any
	// goroutine.
	OnWorkAvailable func(queue *core.TaskQueue)
}

// DefaultManagerConfig returns a config with default handlers.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		PanicHandler:        &core.DefaultPanicHandler{},
		Metrics:             &core.NilMetrics{},
		RejectedTaskHandler: &core.DefaultRejectedTaskHandler{},
		Logger:              core.NewDefaultLogger(),
		DefaultTimeDomain:   core.NewRealTimeDomain(),
	}
}

// =============================================================================
// QueueManager: Multiplexes many task queues over one consumer goroutine
// =============================================================================

// QueueManager owns a set of task queues, shares one enqueue order generator
// and one fairness selector among them, and drains their work queues on a
// single consumer goroutine. Producer goroutines only ever touch the queues'
// posting API; everything else happens on the run loop.
//
// Queues are created before Start or from tasks running on the loop. A
// manager that is never started can instead be driven synchronously with
// RunUntilIdle, which is how deterministic tests and virtual-time setups use
// it.
type QueueManager struct {
	panicHandler    core.PanicHandler
	metrics         core.Metrics
	rejectedHandler core.RejectedTaskHandler
	logger          core.Logger
	defaultDomain   core.TimeDomain
	onWorkAvailable func(queue *core.TaskQueue)

	generator *core.EnqueueOrderGenerator
	selector  *core.WorkQueueSets

	queuesMu sync.Mutex
	queues   []*core.TaskQueue

	// signal: a scheduling pass is due. timerReset: the earliest delayed
	// run time may have changed, recompute the wakeup timer.
	signal     chan struct{}
	timerReset chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	started      atomic.Bool
	shuttingDown atomic.Bool
	stopped      chan struct{}
	stopOnce     sync.Once

	// Main-goroutine-only: nested run loop depth and the non-nestable tasks
	// parked until nesting unwinds.
	nestingDepth        int
	deferredNonNestable []deferredWork

	executedTasks atomic.Uint64
}

type deferredWork struct {
	queue *core.TaskQueue
	task  *core.PostedTask
}

var _ core.Owner = (*QueueManager)(nil)

// NewQueueManager creates a manager with the given config (nil uses defaults).
func NewQueueManager(config *ManagerConfig) *QueueManager {
	defaults := DefaultManagerConfig()
	if config == nil {
		config = defaults
	}

	m := &QueueManager{
		panicHandler:    config.PanicHandler,
		metrics:         config.Metrics,
		rejectedHandler: config.RejectedTaskHandler,
		logger:          config.Logger,
		defaultDomain:   config.DefaultTimeDomain,
		onWorkAvailable: config.OnWorkAvailable,
		generator:       core.NewEnqueueOrderGenerator(),
		selector:        core.NewWorkQueueSets(),
		signal:          make(chan struct{}, 1),
		timerReset:      make(chan struct{}, 1),
		stopped:         make(chan struct{}),
	}
	if m.panicHandler == nil {
		m.panicHandler = defaults.PanicHandler
	}
	if m.metrics == nil {
		m.metrics = defaults.Metrics
	}
	if m.rejectedHandler == nil {
		m.rejectedHandler = defaults.RejectedTaskHandler
	}
	if m.logger == nil {
		m.logger = defaults.Logger
	}
	if m.defaultDomain == nil {
		m.defaultDomain = defaults.DefaultTimeDomain
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// CreateTaskQueue constructs and registers a queue. Call it before Start, or
// from a task already running on the loop.
func (m *QueueManager) CreateTaskQueue(spec core.Spec) *core.TaskQueue {
	domain := spec.TimeDomain
	if domain == nil {
		domain = m.defaultDomain
	}
	q := core.NewTaskQueue(m, domain, spec, core.Hooks{
		Logger:              m.logger,
		Metrics:             m.metrics,
		RejectedTaskHandler: m.rejectedHandler,
	})

	m.queuesMu.Lock()
	m.queues = append(m.queues, q)
	m.queuesMu.Unlock()
	return q
}

// UnregisterTaskQueue detaches the queue from this manager, discarding all of
// its pending tasks. Call it exactly once per queue, on the loop (or on the
// driving goroutine when the manager is used synchronously).
func (m *QueueManager) UnregisterTaskQueue(q *core.TaskQueue) {
	q.Unregister()

	m.queuesMu.Lock()
	for i, registered := range m.queues {
		if registered == q {
			m.queues = append(m.queues[:i:i], m.queues[i+1:]...)
			break
		}
	}
	m.queuesMu.Unlock()
}

// =============================================================================
// core.Owner implementation
// =============================================================================

// EnqueueOrderGenerator returns the generator shared by all of this manager's
// queues.
func (m *QueueManager) EnqueueOrderGenerator() *core.EnqueueOrderGenerator {
	return m.generator
}

// Selector returns the fairness selector. Main-goroutine-only.
func (m *QueueManager) Selector() *core.WorkQueueSets {
	return m.selector
}

// MaybeScheduleWork requests a scheduling pass. Requests that may not wake the
// loop (canWake false) are dropped; that work is observed at the next pass
// caused by some other queue or timer.
func (m *QueueManager) MaybeScheduleWork(canWake bool) {
	if !canWake {
		return
	}
	select {
	case m.signal <- struct{}{}:
	default:
		// A pass is already pending.
	}
}

// ScheduleDelayedWork notes that a queue's earliest delayed run time changed.
// The loop recomputes its wakeup timer from the queues themselves, so only a
// nudge is needed here.
func (m *QueueManager) ScheduleDelayedWork(queue *core.TaskQueue, runTime time.Time, canWake bool) {
	if !canWake {
		return
	}
	select {
	case m.timerReset <- struct{}{}:
	default:
	}
}

// OnWorkAvailable forwards the explicit work-available signal from
// auto-with-notification queues.
func (m *QueueManager) OnWorkAvailable(queue *core.TaskQueue) {
	if m.onWorkAvailable != nil {
		m.onWorkAvailable(queue)
		return
	}
	m.logger.Debug("work available", core.F("queue", queue.Name()))
}

// ScheduleWork unconditionally requests a scheduling pass. Virtual-time setups
// call this after advancing the clock.
func (m *QueueManager) ScheduleWork() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// =============================================================================
// Run loop
// =============================================================================

// Start launches the consumer goroutine. Repeated calls are no-ops.
func (m *QueueManager) Start() {
	if m.started.Swap(true) {
		return
	}
	go m.runLoop()
}

// Stop terminates the run loop and waits for it to finish the task in flight.
// Queues keep their contents; use Shutdown to also discard pending work.
func (m *QueueManager) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		if m.started.Load() {
			<-m.stopped
		}
	})
}

// Shutdown stops the loop and unregisters every queue, discarding all pending
// tasks. Posts made afterwards return false.
func (m *QueueManager) Shutdown() {
	m.shuttingDown.Store(true)
	m.Stop()

	m.queuesMu.Lock()
	queues := append([]*core.TaskQueue(nil), m.queues...)
	m.queues = nil
	m.queuesMu.Unlock()

	// The loop is gone; main-goroutine ownership returns to the caller.
	for _, q := range queues {
		q.BindToCurrentGoroutine()
		q.Unregister()
	}
}

// ShutdownGraceful waits for every queue to drain before shutting down.
// Returns an error if timeout is exceeded first; pending tasks are then
// discarded anyway.
func (m *QueueManager) ShutdownGraceful(timeout time.Duration) error {
	m.shuttingDown.Store(true)

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			m.Shutdown()
			return context.DeadlineExceeded
		case <-ticker.C:
			if m.allQueuesEmpty() {
				m.Shutdown()
				return nil
			}
		}
	}
}

func (m *QueueManager) allQueuesEmpty() bool {
	m.queuesMu.Lock()
	defer m.queuesMu.Unlock()
	for _, q := range m.queues {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}

func (m *QueueManager) runLoop() {
	defer close(m.stopped)

	// Main-goroutine ownership of every queue configured so far moves to
	// this goroutine.
	m.queuesMu.Lock()
	for _, q := range m.queues {
		q.BindToCurrentGoroutine()
	}
	m.queuesMu.Unlock()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		m.doWorkPass(m.ctx)

		delay, hasDelayed := m.nextDelayedDelay()
		if hasDelayed && delay <= 0 {
			// Delayed work became due during the pass.
			continue
		}

		var timerC <-chan time.Time
		if hasDelayed {
			timer.Reset(delay)
			timerC = timer.C
		}

		select {
		case <-m.ctx.Done():
			if hasDelayed {
				stopTimer(timer)
			}
			return
		case <-m.signal:
		case <-m.timerReset:
		case <-timerC:
		}
		if hasDelayed {
			stopTimer(timer)
		}
	}
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// nextDelayedDelay computes how long until the earliest delayed task across
// all queues becomes due, measured in each queue's own time domain. Virtual
// domains do not advance on their own; their owners advance them and call
// ScheduleWork.
func (m *QueueManager) nextDelayedDelay() (time.Duration, bool) {
	m.queuesMu.Lock()
	defer m.queuesMu.Unlock()

	var best time.Duration
	found := false
	for _, q := range m.queues {
		runTime, ok := q.NextDelayedRunTime()
		if !ok {
			continue
		}
		d := runTime.Sub(q.TimeDomain().Now())
		if d < 0 {
			d = 0
		}
		if !found || d < best {
			best = d
			found = true
		}
	}
	return best, found
}

// RunUntilIdle drives scheduling passes synchronously on the calling goroutine
// until no ready work remains, and returns the number of tasks executed. It is
// the deterministic alternative to Start for tests and virtual-time setups; it
// must not be mixed with a started loop.
func (m *QueueManager) RunUntilIdle(ctx context.Context) int {
	if m.started.Load() {
		m.logger.Error("RunUntilIdle called on a started manager")
		return 0
	}
	total := 0
	for {
		n := m.doWorkPass(ctx)
		total += n
		if n == 0 {
			return total
		}
	}
}

// RunNestedLoopUntilIdle runs a nested scheduling pass from within a task.
// Non-nestable tasks selected while nested are parked and executed after the
// nested loop unwinds. Main-goroutine-only.
func (m *QueueManager) RunNestedLoopUntilIdle(ctx context.Context) int {
	m.nestingDepth++
	total := 0
	for {
		n := m.doWorkPass(ctx)
		total += n
		if n == 0 {
			break
		}
	}
	m.nestingDepth--
	return total
}

// doWorkPass promotes ready work on every queue, then drains the selector.
// Delayed promotions run before immediate ones so the shared enqueue order
// reflects due time first; this ordering is fixed and tested.
func (m *QueueManager) doWorkPass(ctx context.Context) int {
	executed := 0
	m.updateWorkQueues(nil)

	for {
		if ctx.Err() != nil {
			return executed
		}

		if m.nestingDepth == 0 && len(m.deferredNonNestable) > 0 {
			dw := m.deferredNonNestable[0]
			m.deferredNonNestable = m.deferredNonNestable[1:]
			if dw.queue.IsUnregistered() {
				// The queue died while the task was parked; it must
				// never run now.
				continue
			}
			m.runTask(ctx, dw.queue, dw.task)
			executed++
			m.updateWorkQueues(dw.task)
			continue
		}

		wq, ok := m.selector.SelectWorkQueueToService()
		if !ok {
			return executed
		}
		task := wq.PopFront()
		queue := wq.Queue()

		if queue.IsUnregistered() {
			// Unregister ran off the consumer goroutine and could not
			// touch the ready buffers; drop the popped task and sweep
			// the rest here.
			queue.DiscardReadyWork()
			continue
		}

		if !task.Nestable && m.nestingDepth > 0 {
			m.deferredNonNestable = append(m.deferredNonNestable, deferredWork{queue, task})
			continue
		}

		m.runTask(ctx, queue, task)
		executed++
		m.updateWorkQueues(task)
	}
}

func (m *QueueManager) updateWorkQueues(previousTask *core.PostedTask) {
	m.queuesMu.Lock()
	queues := append([]*core.TaskQueue(nil), m.queues...)
	m.queuesMu.Unlock()

	for _, q := range queues {
		q.UpdateDelayedWorkQueue(q.TimeDomain().Now(), false, previousTask)
	}
	for _, q := range queues {
		q.UpdateImmediateWorkQueue(false, previousTask)
	}
}

func (m *QueueManager) runTask(ctx context.Context, q *core.TaskQueue, task *core.PostedTask) {
	taskCtx := core.ContextWithTaskQueue(ctx, q)
	q.NotifyWillProcessTask(task)
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				m.metrics.RecordTaskPanic(q.Name(), r)
				m.panicHandler.HandlePanic(taskCtx, q.Name(), r, debug.Stack())
			}
		}()
		task.Run(taskCtx)
	}()

	m.metrics.RecordTaskDuration(q.Name(), q.Priority(), time.Since(start))
	q.NotifyDidProcessTask(task)
	m.executedTasks.Add(1)
}

// =============================================================================
// Stats
// =============================================================================

// ManagerStats is a point-in-time view of the manager for observability.
type ManagerStats struct {
	QueueCount    int
	ExecutedTasks uint64
	Running       bool
}

// Stats returns current manager statistics. Safe from any goroutine.
func (m *QueueManager) Stats() ManagerStats {
	m.queuesMu.Lock()
	count := len(m.queues)
	m.queuesMu.Unlock()

	return ManagerStats{
		QueueCount:    count,
		ExecutedTasks: m.executedTasks.Load(),
		Running:       m.started.Load() && m.ctx.Err() == nil,
	}
}

// Queues returns a snapshot of the currently registered queues.
func (m *QueueManager) Queues() []*core.TaskQueue {
	m.queuesMu.Lock()
	defer m.queuesMu.Unlock()
	return append([]*core.TaskQueue(nil), m.queues...)
}

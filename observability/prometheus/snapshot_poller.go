package prometheus

import (
	"context"
	"sync"
	"time"

	taskqueue "github.com/arcusq/go-task-queue"
	"github.com/arcusq/go-task-queue/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// QueueSnapshotProvider provides point-in-time queue snapshots.
// *core.TaskQueue satisfies it.
type QueueSnapshotProvider interface {
	Snapshot() core.QueueSnapshot
}

// ManagerSnapshotProvider provides current manager stats snapshots.
// *taskqueue.QueueManager satisfies it.
type ManagerSnapshotProvider interface {
	Stats() taskqueue.ManagerStats
}

// SnapshotPoller periodically exports queue and manager snapshots into
// Prometheus gauges. Snapshots are lock-light on the queue side, so polling
// never stalls producers or the run loop.
type SnapshotPoller struct {
	interval time.Duration

	queuesMu sync.RWMutex
	queues   map[string]QueueSnapshotProvider

	managersMu sync.RWMutex
	managers   map[string]ManagerSnapshotProvider

	queueTasks          *prom.GaugeVec
	queueEnabled        *prom.GaugeVec
	queueUnregistered   *prom.GaugeVec
	queueTasksPosted    *prom.GaugeVec
	queueTasksPromoted  *prom.GaugeVec
	queueTasksDiscarded *prom.GaugeVec
	queuePostsRejected  *prom.GaugeVec

	managerQueues   *prom.GaugeVec
	managerExecuted *prom.GaugeVec
	managerRunning  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	queueTasks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_tasks",
		Help:      "Tasks currently held per queue container.",
	}, []string{"queue", "stage"})
	queueEnabled := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_enabled",
		Help:      "Queue enabled state (1=enabled, 0=disabled).",
	}, []string{"queue"})
	queueUnregistered := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_unregistered",
		Help:      "Queue unregistered state (1=unregistered, 0=live).",
	}, []string{"queue"})
	queueTasksPosted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_tasks_posted_total",
		Help:      "Lifetime posted task count snapshot.",
	}, []string{"queue"})
	queueTasksPromoted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_tasks_promoted_total",
		Help:      "Lifetime promoted task count snapshot.",
	}, []string{"queue"})
	queueTasksDiscarded := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_tasks_discarded_total",
		Help:      "Lifetime discarded task count snapshot.",
	}, []string{"queue"})
	queuePostsRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "queue_posts_rejected_total",
		Help:      "Lifetime rejected post count snapshot.",
	}, []string{"queue"})

	managerQueues := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "manager_queues",
		Help:      "Registered queue count per manager.",
	}, []string{"manager"})
	managerExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "manager_executed_tasks_total",
		Help:      "Lifetime executed task count snapshot.",
	}, []string{"manager"})
	managerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskqueue",
		Name:      "manager_running",
		Help:      "Manager run loop state (1=running, 0=stopped).",
	}, []string{"manager"})

	var err error
	if queueTasks, err = registerCollector(reg, queueTasks); err != nil {
		return nil, err
	}
	if queueEnabled, err = registerCollector(reg, queueEnabled); err != nil {
		return nil, err
	}
	if queueUnregistered, err = registerCollector(reg, queueUnregistered); err != nil {
		return nil, err
	}
	if queueTasksPosted, err = registerCollector(reg, queueTasksPosted); err != nil {
		return nil, err
	}
	if queueTasksPromoted, err = registerCollector(reg, queueTasksPromoted); err != nil {
		return nil, err
	}
	if queueTasksDiscarded, err = registerCollector(reg, queueTasksDiscarded); err != nil {
		return nil, err
	}
	if queuePostsRejected, err = registerCollector(reg, queuePostsRejected); err != nil {
		return nil, err
	}
	if managerQueues, err = registerCollector(reg, managerQueues); err != nil {
		return nil, err
	}
	if managerExecuted, err = registerCollector(reg, managerExecuted); err != nil {
		return nil, err
	}
	if managerRunning, err = registerCollector(reg, managerRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:            interval,
		queues:              make(map[string]QueueSnapshotProvider),
		managers:            make(map[string]ManagerSnapshotProvider),
		queueTasks:          queueTasks,
		queueEnabled:        queueEnabled,
		queueUnregistered:   queueUnregistered,
		queueTasksPosted:    queueTasksPosted,
		queueTasksPromoted:  queueTasksPromoted,
		queueTasksDiscarded: queueTasksDiscarded,
		queuePostsRejected:  queuePostsRejected,
		managerQueues:       managerQueues,
		managerExecuted:     managerExecuted,
		managerRunning:      managerRunning,
	}, nil
}

// AddQueue adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	p.queues[name] = provider
	p.queuesMu.Unlock()
}

// AddManager adds or replaces a manager snapshot provider by name.
func (p *SnapshotPoller) AddManager(name string, provider ManagerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.managersMu.Lock()
	p.managers[name] = provider
	p.managersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.queuesMu.RLock()
	for name, provider := range p.queues {
		snapshot := provider.Snapshot()
		p.queueTasks.WithLabelValues(name, "immediate_incoming").Set(float64(snapshot.ImmediateIncomingCount))
		p.queueTasks.WithLabelValues(name, "delayed_incoming").Set(float64(snapshot.DelayedIncomingCount))
		p.queueTasks.WithLabelValues(name, "immediate_work").Set(float64(snapshot.ImmediateWorkCount))
		p.queueTasks.WithLabelValues(name, "delayed_work").Set(float64(snapshot.DelayedWorkCount))
		p.queueEnabled.WithLabelValues(name).Set(boolGauge(snapshot.Enabled))
		p.queueUnregistered.WithLabelValues(name).Set(boolGauge(snapshot.Unregistered))
		p.queueTasksPosted.WithLabelValues(name).Set(float64(snapshot.TasksPosted))
		p.queueTasksPromoted.WithLabelValues(name).Set(float64(snapshot.TasksPromoted))
		p.queueTasksDiscarded.WithLabelValues(name).Set(float64(snapshot.TasksDiscarded))
		p.queuePostsRejected.WithLabelValues(name).Set(float64(snapshot.PostsRejected))
	}
	p.queuesMu.RUnlock()

	p.managersMu.RLock()
	for name, provider := range p.managers {
		stats := provider.Stats()
		p.managerQueues.WithLabelValues(name).Set(float64(stats.QueueCount))
		p.managerExecuted.WithLabelValues(name).Set(float64(stats.ExecutedTasks))
		p.managerRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.managersMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

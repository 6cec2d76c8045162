package core

import (
	"sync"
	"time"
)

// stubOwner implements Owner for unit tests. It records every notification so
// tests can assert on wakeup behavior without a real run loop.
type stubOwner struct {
	generator *EnqueueOrderGenerator
	selector  *WorkQueueSets

	mu               sync.Mutex
	scheduleWork     []bool // canWake values, in call order
	delayedSchedules []time.Time
	workAvailable    []string // queue names
}

func newStubOwner() *stubOwner {
	return &stubOwner{
		generator: NewEnqueueOrderGenerator(),
		selector:  NewWorkQueueSets(),
	}
}

func (o *stubOwner) EnqueueOrderGenerator() *EnqueueOrderGenerator { return o.generator }

func (o *stubOwner) Selector() *WorkQueueSets { return o.selector }

func (o *stubOwner) MaybeScheduleWork(canWake bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheduleWork = append(o.scheduleWork, canWake)
}

func (o *stubOwner) ScheduleDelayedWork(queue *TaskQueue, runTime time.Time, canWake bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delayedSchedules = append(o.delayedSchedules, runTime)
}

func (o *stubOwner) OnWorkAvailable(queue *TaskQueue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workAvailable = append(o.workAvailable, queue.Name())
}

func (o *stubOwner) scheduleWorkCalls() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.scheduleWork...)
}

func (o *stubOwner) delayedScheduleCalls() []time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Time(nil), o.delayedSchedules...)
}

func (o *stubOwner) workAvailableCalls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.workAvailable...)
}

// drainWorkQueue pops every promoted task, in selection order for one queue.
func drainWorkQueue(w *WorkQueue) []*PostedTask {
	var tasks []*PostedTask
	for !w.Empty() {
		tasks = append(tasks, w.PopFront())
	}
	return tasks
}

package core

import "sync/atomic"

const (
	defaultWorkQueueCap = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// WorkQueue is a queue's ready-to-run buffer. Tasks land here at promotion,
// already carrying their final enqueue order, and wait for the fairness
// selector to pick them.
//
// A WorkQueue is main-goroutine-only: it is read and written exclusively on
// the run loop (or whichever goroutine the owning queue's affinity bound to),
// which is why there is no lock. Only the depth mirror is readable from other
// goroutines, for diagnostics.
type WorkQueue struct {
	tasks []*PostedTask
	queue *TaskQueue
	name  string

	sets      *WorkQueueSets
	setIndex  int
	heapIndex int // position inside the selector's set, -1 when not enqueued

	// depth mirrors len(tasks) so diagnostic snapshots taken off the main
	// goroutine never touch the slice.
	depth atomic.Int64
}

func newWorkQueue(queue *TaskQueue, name string) *WorkQueue {
	return &WorkQueue{
		tasks:     make([]*PostedTask, 0, defaultWorkQueueCap),
		queue:     queue,
		name:      name,
		heapIndex: -1,
	}
}

// Name reports which buffer this is ("immediate" or "delayed").
func (w *WorkQueue) Name() string {
	return w.name
}

// Queue returns the task queue this buffer belongs to.
func (w *WorkQueue) Queue() *TaskQueue {
	return w.queue
}

// Empty reports whether no promoted task is waiting.
func (w *WorkQueue) Empty() bool {
	return len(w.tasks) == 0
}

// Len returns the number of promoted tasks waiting.
func (w *WorkQueue) Len() int {
	return len(w.tasks)
}

// Front returns the oldest promoted task without removing it.
func (w *WorkQueue) Front() (*PostedTask, bool) {
	if len(w.tasks) == 0 {
		return nil, false
	}
	return w.tasks[0], true
}

// frontEnqueueOrder is the selector's sort key. Only valid when non-empty.
func (w *WorkQueue) frontEnqueueOrder() EnqueueOrder {
	return w.tasks[0].EnqueueOrder()
}

// Push appends a promoted task. The task must already carry its enqueue order;
// promotion assigns it before pushing. If the buffer transitions from empty to
// non-empty, the selector is told this queue has ready work again.
func (w *WorkQueue) Push(task *PostedTask) {
	if !task.HasEnqueueOrder() {
		panic("taskqueue: task pushed onto a work queue without an enqueue order")
	}
	wasEmpty := len(w.tasks) == 0
	w.tasks = append(w.tasks, task)
	w.depth.Store(int64(len(w.tasks)))

	if wasEmpty && w.sets != nil && w.queue.isEnabledOnMainGoroutine() {
		w.sets.OnPushQueue(w)
	}
}

// PopFront removes and returns the oldest promoted task. Popping an empty
// buffer is a programming error.
func (w *WorkQueue) PopFront() *PostedTask {
	if len(w.tasks) == 0 {
		panic("taskqueue: PopFront on an empty work queue")
	}

	task := w.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	w.tasks[0] = nil
	w.tasks = w.tasks[1:]
	w.maybeCompact()
	w.depth.Store(int64(len(w.tasks)))

	if w.sets != nil && w.heapIndex >= 0 {
		w.sets.OnPopQueue(w)
	}
	return task
}

// Clear discards every promoted task. Used when the queue is unregistered.
// Returns the number of tasks discarded.
func (w *WorkQueue) Clear() int {
	n := len(w.tasks)
	w.tasks = make([]*PostedTask, 0, defaultWorkQueueCap)
	w.depth.Store(0)
	if w.sets != nil && w.heapIndex >= 0 {
		w.sets.RemoveQueue(w)
	}
	return n
}

// assignWorkQueueSets registers the buffer with the fairness selector under
// the given set index. Called when the owning queue is registered with its
// manager.
func (w *WorkQueue) assignWorkQueueSets(sets *WorkQueueSets, setIndex int) {
	w.sets = sets
	w.setIndex = setIndex
	if sets != nil && len(w.tasks) > 0 && w.queue.isEnabledOnMainGoroutine() {
		sets.OnPushQueue(w)
	}
}

func (w *WorkQueue) maybeCompact() {
	n := len(w.tasks)
	c := cap(w.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		w.tasks = make([]*PostedTask, 0, defaultWorkQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultWorkQueueCap), n)
	newSlice := make([]*PostedTask, n, newCap)
	copy(newSlice, w.tasks)
	w.tasks = newSlice
}

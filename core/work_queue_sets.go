package core

import "container/heap"

// WorkQueueSets is the fairness selector's bookkeeping: one set of non-empty
// work queues per priority level, each set ordered by the enqueue order of the
// queue's front task. Selection walks priorities from most to least urgent and
// picks the queue whose front task is globally oldest within that priority,
// which keeps interleaving across queues deterministic.
//
// WorkQueueSets is main-goroutine-only, like the work queues it tracks.
type WorkQueueSets struct {
	sets [queuePriorityCount]workQueueHeap
}

// NewWorkQueueSets creates an empty selector structure.
func NewWorkQueueSets() *WorkQueueSets {
	return &WorkQueueSets{}
}

// AddQueue registers a work queue under setIndex. Empty buffers are recorded
// lazily: they join the candidate set on their first push.
func (s *WorkQueueSets) AddQueue(w *WorkQueue, setIndex int) {
	if w.heapIndex >= 0 {
		s.removeFromSet(w)
	}
	w.setIndex = setIndex
	if !w.Empty() {
		heap.Push(&s.sets[setIndex], w)
	}
}

// RemoveQueue withdraws a work queue from its candidate set. The buffer keeps
// its contents; this is how disabled and unregistered queues disappear from
// selection.
func (s *WorkQueueSets) RemoveQueue(w *WorkQueue) {
	if w.heapIndex >= 0 {
		s.removeFromSet(w)
	}
}

// ChangeSetIndex moves a work queue to a different priority set, preserving
// its front task's enqueue order as the sort key.
func (s *WorkQueueSets) ChangeSetIndex(w *WorkQueue, setIndex int) {
	inSet := w.heapIndex >= 0
	if inSet {
		s.removeFromSet(w)
	}
	w.setIndex = setIndex
	if inSet && !w.Empty() {
		heap.Push(&s.sets[setIndex], w)
	}
}

// OnPushQueue records that a previously empty work queue now has ready work.
func (s *WorkQueueSets) OnPushQueue(w *WorkQueue) {
	if w.heapIndex >= 0 {
		return
	}
	heap.Push(&s.sets[w.setIndex], w)
}

// OnPopQueue re-ranks a work queue after its front task was popped, dropping
// it from the candidate set when it drained.
func (s *WorkQueueSets) OnPopQueue(w *WorkQueue) {
	if w.heapIndex < 0 {
		return
	}
	if w.Empty() {
		s.removeFromSet(w)
		return
	}
	heap.Fix(&s.sets[w.setIndex], w.heapIndex)
}

// SelectWorkQueueToService returns the work queue whose front task should run
// next: the oldest front task in the most urgent non-empty set. Returns false
// when no registered queue has ready work.
func (s *WorkQueueSets) SelectWorkQueueToService() (*WorkQueue, bool) {
	for i := range s.sets {
		if len(s.sets[i]) > 0 {
			return s.sets[i][0], true
		}
	}
	return nil, false
}

// HasReadyWork reports whether any candidate set is non-empty.
func (s *WorkQueueSets) HasReadyWork() bool {
	for i := range s.sets {
		if len(s.sets[i]) > 0 {
			return true
		}
	}
	return false
}

func (s *WorkQueueSets) removeFromSet(w *WorkQueue) {
	heap.Remove(&s.sets[w.setIndex], w.heapIndex)
}

// workQueueHeap implements heap.Interface ordered by front enqueue order.
// Enqueue orders are unique, so the ordering is total.
type workQueueHeap []*WorkQueue

func (h workQueueHeap) Len() int { return len(h) }

func (h workQueueHeap) Less(i, j int) bool {
	return h[i].frontEnqueueOrder() < h[j].frontEnqueueOrder()
}

func (h workQueueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *workQueueHeap) Push(x any) {
	w := x.(*WorkQueue)
	w.heapIndex = len(*h)
	*h = append(*h, w)
}

func (h *workQueueHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil // avoid memory leak
	w.heapIndex = -1
	*h = old[0 : n-1]
	return w
}

// Package taskqueue provides a Chromium-inspired cooperative task queue
// scheduler for Go.
//
// The model is one consumer goroutine draining many named task queues.
// Producer goroutines post immediate or delayed closures to any queue; each
// queue keeps its own deterministic internal order, and a fairness selector
// interleaves ready work across queues by priority and global enqueue order.
//
// # Quick Start
//
// Create a manager, a queue, and start the loop:
//
//	manager := taskqueue.NewQueueManager(nil)
//	queue := manager.CreateTaskQueue(core.NewSpec("default"))
//	manager.Start()
//	defer manager.Shutdown()
//
//	queue.PostTask("example", func(ctx context.Context) {
//		// Runs on the manager's consumer goroutine.
//	})
//
// # Key Concepts
//
// TaskQueue: accepts posts from any goroutine. Immediate tasks keep FIFO
// order; delayed tasks are ordered by desired run time, then post order.
//
// Promotion: when the loop looks for work, ready tasks move from the
// producer-visible incoming containers into consumer-only work queues and
// receive their enqueue order, a globally monotonic tie-break shared by
// every queue of one manager. Delayed tasks are ordered into the global
// sequence only once they become due, never at post time.
//
// Policies: a queue's pump policy chooses automatic promotion or explicit
// pumping; its wakeup policy decides whether activity on the queue may break
// the loop's idle wait.
//
// # Determinism
//
// For tests and simulations, skip Start and drive the manager synchronously
// with RunUntilIdle, optionally on a core.VirtualTimeDomain that only
// advances when told to.
package taskqueue

package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arcusq/go-task-queue/core"
)

func quietConfig() *ManagerConfig {
	config := DefaultManagerConfig()
	config.Logger = &core.NilLogger{}
	return config
}

func appendMarker(log *[]string, label string) core.Task {
	return func(ctx context.Context) { *log = append(*log, label) }
}

// TestQueueManager_RunUntilIdle verifies synchronous draining
// Given: A never-started manager with three posted tasks
// When: RunUntilIdle drives the loop on the calling goroutine
// Then: All three execute in post order and the call reports three tasks
func TestQueueManager_RunUntilIdle(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("work"))

	var log []string
	q.PostTask("test", appendMarker(&log, "t1"))
	q.PostTask("test", appendMarker(&log, "t2"))
	q.PostTask("test", appendMarker(&log, "t3"))

	n := m.RunUntilIdle(context.Background())
	if n != 3 {
		t.Fatalf("RunUntilIdle() = %d, want 3", n)
	}
	want := []string{"t1", "t2", "t3"}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
	if got := m.Stats().ExecutedTasks; got != 3 {
		t.Errorf("Stats().ExecutedTasks = %d, want 3", got)
	}
}

// TestQueueManager_PromotionPassOrder verifies the fixed promotion ordering
// Given: A due delayed task and an immediate task on the same virtual-time
// queue
// When: One scheduling pass promotes and drains both
// Then: The delayed task runs first, because delayed promotions draw enqueue
// orders before immediate promotions within a pass
func TestQueueManager_PromotionPassOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	domain := core.NewVirtualTimeDomain(start)

	m := NewQueueManager(quietConfig())
	spec := core.NewSpec("mixed")
	spec.TimeDomain = domain
	q := m.CreateTaskQueue(spec)

	var log []string
	q.PostDelayedTask("test", appendMarker(&log, "delayed"), 10*time.Millisecond)
	q.PostTask("test", appendMarker(&log, "immediate"))
	domain.AdvanceBy(10 * time.Millisecond)

	if n := m.RunUntilIdle(context.Background()); n != 2 {
		t.Fatalf("RunUntilIdle() = %d, want 2", n)
	}
	if len(log) != 2 || log[0] != "delayed" || log[1] != "immediate" {
		t.Errorf("execution log = %v, want [delayed immediate]", log)
	}
}

// TestQueueManager_PriorityPreemption verifies cross-queue priority
// Given: Tasks posted first to a best-effort queue, then to a control queue
// When: The manager drains both
// Then: Control tasks run before best-effort tasks despite posting later
func TestQueueManager_PriorityPreemption(t *testing.T) {
	m := NewQueueManager(quietConfig())

	background := core.NewSpec("background")
	background.Priority = core.PriorityBestEffort
	urgent := core.NewSpec("urgent")
	urgent.Priority = core.PriorityControl

	bg := m.CreateTaskQueue(background)
	ctl := m.CreateTaskQueue(urgent)

	var log []string
	bg.PostTask("test", appendMarker(&log, "bg1"))
	bg.PostTask("test", appendMarker(&log, "bg2"))
	ctl.PostTask("test", appendMarker(&log, "ctl1"))

	m.RunUntilIdle(context.Background())

	want := []string{"ctl1", "bg1", "bg2"}
	if len(log) != len(want) {
		t.Fatalf("execution log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

// TestQueueManager_VirtualTimeAdvance verifies delayed gating without a loop
// Given: A delayed task under a virtual domain
// When: RunUntilIdle runs before and after advancing the clock past the delay
// Then: The task executes only after the advance
func TestQueueManager_VirtualTimeAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	domain := core.NewVirtualTimeDomain(start)

	m := NewQueueManager(quietConfig())
	spec := core.NewSpec("timed")
	spec.TimeDomain = domain
	q := m.CreateTaskQueue(spec)

	executed := false
	q.PostDelayedTask("test", func(ctx context.Context) { executed = true }, 100*time.Millisecond)

	if n := m.RunUntilIdle(context.Background()); n != 0 {
		t.Fatalf("RunUntilIdle() before advance = %d, want 0", n)
	}
	if executed {
		t.Fatal("delayed task executed before its due time")
	}

	domain.AdvanceBy(100 * time.Millisecond)
	if n := m.RunUntilIdle(context.Background()); n != 1 {
		t.Fatalf("RunUntilIdle() after advance = %d, want 1", n)
	}
	if !executed {
		t.Error("delayed task did not execute after advancing past its due time")
	}
}

// TestQueueManager_StartStop verifies the asynchronous run loop
// Given: A started manager
// When: Tasks are posted from the test goroutine
// Then: The loop executes them, and Stop waits for the loop to exit
func TestQueueManager_StartStop(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("live"))

	m.Start()

	done := make(chan struct{})
	q.PostTask("test", func(ctx context.Context) {})
	q.PostTask("test", func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not execute posted tasks within 2s")
	}

	m.Stop()
	if m.Stats().Running {
		t.Error("Stats().Running = true after Stop")
	}
}

// TestQueueManager_DelayedWakeup verifies the loop's timer path
// Given: A started manager on the real time domain
// When: A task is posted with a short delay
// Then: The loop wakes up on its own and executes it
func TestQueueManager_DelayedWakeup(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("timer"))

	m.Start()
	defer m.Stop()

	done := make(chan struct{})
	q.PostDelayedTask("test", func(ctx context.Context) { close(done) }, 20*time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task did not execute within 2s")
	}
}

// TestQueueManager_TaskContextCarriesQueue verifies context tagging
// Given: A task posted to a named queue
// When: It executes
// Then: Its context identifies the queue it was posted to
func TestQueueManager_TaskContextCarriesQueue(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("tagged"))

	var seen *core.TaskQueue
	q.PostTask("test", func(ctx context.Context) {
		seen = core.GetCurrentTaskQueue(ctx)
	})
	m.RunUntilIdle(context.Background())

	if seen != q {
		t.Errorf("GetCurrentTaskQueue inside task = %v, want the posting queue", seen)
	}
}

type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, queueName string, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, panicInfo)
}

func (h *recordingPanicHandler) recorded() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]any(nil), h.panics...)
}

// TestQueueManager_PanicIsolation verifies panic containment
// Given: A panicking task followed by a normal task
// When: The manager drains the queue
// Then: The panic reaches the handler and the following task still executes
func TestQueueManager_PanicIsolation(t *testing.T) {
	handler := &recordingPanicHandler{}
	config := quietConfig()
	config.PanicHandler = handler

	m := NewQueueManager(config)
	q := m.CreateTaskQueue(core.NewSpec("fallible"))

	survived := false
	q.PostTask("test", func(ctx context.Context) { panic("boom") })
	q.PostTask("test", func(ctx context.Context) { survived = true })

	if n := m.RunUntilIdle(context.Background()); n != 2 {
		t.Fatalf("RunUntilIdle() = %d, want 2", n)
	}
	if !survived {
		t.Error("task after the panic did not execute")
	}

	panics := handler.recorded()
	if len(panics) != 1 {
		t.Fatalf("handler recorded %d panics, want 1", len(panics))
	}
	if panics[0] != "boom" {
		t.Errorf("recorded panic = %v, want \"boom\"", panics[0])
	}
}

// TestQueueManager_NonNestableDeferred verifies nested-loop deferral
// Given: A task that posts a non-nestable and a nestable task, then runs a
// nested loop
// When: The outer pass resumes after the nested loop unwinds
// Then: The nestable task ran inside the nested loop; the non-nestable task
// ran only after unwinding
func TestQueueManager_NonNestableDeferred(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("nesting"))

	var log []string
	q.PostTask("test", func(ctx context.Context) {
		log = append(log, "outer:begin")
		q.PostNonNestableTask("test", appendMarker(&log, "deferred"))
		q.PostTask("test", appendMarker(&log, "nested"))
		m.RunNestedLoopUntilIdle(ctx)
		log = append(log, "outer:end")
	})

	m.RunUntilIdle(context.Background())

	want := []string{"outer:begin", "nested", "outer:end", "deferred"}
	if len(log) != len(want) {
		t.Fatalf("execution log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

// TestQueueManager_OnWorkAvailableForwarded verifies the notification hook
// Given: A manager configured with an OnWorkAvailable callback and a
// notifying queue
// When: Immediate tasks are posted
// Then: The callback fires once per post with the posting queue
func TestQueueManager_OnWorkAvailableForwarded(t *testing.T) {
	var mu sync.Mutex
	var notified []string

	config := quietConfig()
	config.OnWorkAvailable = func(queue *core.TaskQueue) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, queue.Name())
	}

	m := NewQueueManager(config)
	spec := core.NewSpec("signaled")
	spec.PumpPolicy = core.PumpPolicyAutoWithNotification
	q := m.CreateTaskQueue(spec)

	q.PostTask("test", func(ctx context.Context) {})
	q.PostTask("test", func(ctx context.Context) {})

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 2 {
		t.Fatalf("OnWorkAvailable fired %d times, want 2", len(notified))
	}
	for _, name := range notified {
		if name != "signaled" {
			t.Errorf("notified queue = %q, want \"signaled\"", name)
		}
	}
}

// TestQueueManager_UnregisterRemovesQueue verifies registry bookkeeping
// Given: A manager with two queues
// When: One is unregistered
// Then: Stats and Queues reflect the removal, and the queue rejects posts
func TestQueueManager_UnregisterRemovesQueue(t *testing.T) {
	m := NewQueueManager(quietConfig())
	keep := m.CreateTaskQueue(core.NewSpec("keep"))
	drop := m.CreateTaskQueue(core.NewSpec("drop"))

	m.UnregisterTaskQueue(drop)

	if got := m.Stats().QueueCount; got != 1 {
		t.Errorf("QueueCount = %d, want 1", got)
	}
	remaining := m.Queues()
	if len(remaining) != 1 || remaining[0] != keep {
		t.Errorf("Queues() = %v, want just the kept queue", remaining)
	}
	if drop.PostTask("test", func(ctx context.Context) {}) {
		t.Error("post to an unregistered queue returned true")
	}
}

// TestQueueManager_UnregisterOffLoopDiscardsPromotedWork verifies the
// consumer-side sweep of a queue unregistered from a producer goroutine
// Given: A queue whose task was already promoted to the ready buffers
// When: Unregister runs on another goroutine, then the loop drains
// Then: The task never executes and the ready buffers end up empty
func TestQueueManager_UnregisterOffLoopDiscardsPromotedWork(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("abandoned"))

	executed := false
	q.PostTask("test", func(ctx context.Context) { executed = true })
	q.UpdateImmediateWorkQueue(false, nil)

	done := make(chan struct{})
	go func() {
		q.Unregister()
		close(done)
	}()
	<-done

	if n := m.RunUntilIdle(context.Background()); n != 0 {
		t.Fatalf("RunUntilIdle() = %d, want 0", n)
	}
	if executed {
		t.Error("promoted task executed after Unregister")
	}
	if got := q.Snapshot().ImmediateWorkCount; got != 0 {
		t.Errorf("ImmediateWorkCount = %d after the sweep, want 0", got)
	}
}

// TestQueueManager_UnregisterDropsDeferredTask verifies parked-task teardown
// Given: A non-nestable task parked by a nested loop
// When: Its queue is unregistered before the outer pass resumes
// Then: The parked task never executes
func TestQueueManager_UnregisterDropsDeferredTask(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("parked"))

	executed := false
	q.PostTask("test", func(ctx context.Context) {
		q.PostNonNestableTask("test", func(ctx context.Context) { executed = true })
		m.RunNestedLoopUntilIdle(ctx)
		m.UnregisterTaskQueue(q)
	})

	if n := m.RunUntilIdle(context.Background()); n != 1 {
		t.Fatalf("RunUntilIdle() = %d, want 1", n)
	}
	if executed {
		t.Error("deferred non-nestable task executed after its queue was unregistered")
	}
}

// TestQueueManager_ShutdownDiscardsPending verifies full teardown
// Given: A never-started manager with pending tasks
// When: Shutdown runs
// Then: Pending tasks never execute and later posts fail
func TestQueueManager_ShutdownDiscardsPending(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("teardown"))

	executed := false
	q.PostTask("test", func(ctx context.Context) { executed = true })

	m.Shutdown()

	if executed {
		t.Error("pending task executed during Shutdown")
	}
	if q.PostTask("test", func(ctx context.Context) {}) {
		t.Error("post after Shutdown returned true")
	}
	if got := m.Stats().QueueCount; got != 0 {
		t.Errorf("QueueCount = %d after Shutdown, want 0", got)
	}
}

// TestQueueManager_ShutdownGraceful verifies the drain-then-stop path
// Given: A started manager whose queues empty out
// When: ShutdownGraceful runs with a generous timeout
// Then: It returns nil once everything drained
func TestQueueManager_ShutdownGraceful(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("drain"))

	m.Start()

	done := make(chan struct{})
	q.PostTask("test", func(ctx context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not execute within 2s")
	}

	if err := m.ShutdownGraceful(2 * time.Second); err != nil {
		t.Errorf("ShutdownGraceful() = %v, want nil", err)
	}
}

// TestQueueManager_ShutdownGracefulTimeout verifies the deadline path
// Given: A never-started manager sitting on work that will never drain
// When: ShutdownGraceful runs with a short timeout
// Then: It returns context.DeadlineExceeded and still discards everything
func TestQueueManager_ShutdownGracefulTimeout(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("stuck"))

	q.PostTask("test", func(ctx context.Context) {})

	err := m.ShutdownGraceful(50 * time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ShutdownGraceful() = %v, want context.DeadlineExceeded", err)
	}
	if got := m.Stats().QueueCount; got != 0 {
		t.Errorf("QueueCount = %d after timed-out graceful shutdown, want 0", got)
	}
}

// TestQueueManager_PostsFromManyGoroutines verifies producer concurrency
// Given: Many goroutines posting to one queue
// When: The manager drains everything
// Then: Every post executes exactly once
func TestQueueManager_PostsFromManyGoroutines(t *testing.T) {
	m := NewQueueManager(quietConfig())
	q := m.CreateTaskQueue(core.NewSpec("hammered"))

	const producers = 8
	const perProducer = 100

	var executed sync.Map
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				key := producer*perProducer + i
				q.PostTask("test", func(ctx context.Context) {
					if _, loaded := executed.LoadOrStore(key, true); loaded {
						t.Errorf("task %d executed twice", key)
					}
				})
			}
		}(p)
	}
	wg.Wait()

	if n := m.RunUntilIdle(context.Background()); n != producers*perProducer {
		t.Fatalf("RunUntilIdle() = %d, want %d", n, producers*perProducer)
	}

	count := 0
	executed.Range(func(key, value any) bool { count++; return true })
	if count != producers*perProducer {
		t.Errorf("%d distinct tasks executed, want %d", count, producers*perProducer)
	}
}

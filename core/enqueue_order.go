package core

import "sync/atomic"

// EnqueueOrder is the globally monotonic position a task receives when it is
// promoted into a work queue. It is the ultimate tie-break when the selector
// interleaves ready tasks from many queues.
//
// The zero value means "not yet assigned". A task only receives its
// EnqueueOrder at promotion time, never at post time, so a delayed task posted
// far in advance does not reserve an early position in the global order.
type EnqueueOrder uint64

// unsetEnqueueOrder is the sentinel carried by tasks that have not been
// promoted yet. The generator never produces it.
const unsetEnqueueOrder EnqueueOrder = 0

// EnqueueOrderGenerator produces strictly increasing EnqueueOrder values.
// Next is safe to call concurrently from any goroutine.
//
// A single generator is shared by every queue owned by one manager so that
// immediate and delayed promotions across all queues draw from one total
// order. It is a plain struct (not a package global) so tests can inject a
// fresh generator and assert exact values.
type EnqueueOrderGenerator struct {
	counter atomic.Uint64
}

// NewEnqueueOrderGenerator creates a generator whose first value is 1.
func NewEnqueueOrderGenerator() *EnqueueOrderGenerator {
	return &EnqueueOrderGenerator{}
}

// Next returns a value strictly greater than every value it has previously
// returned. Exhaustion of the 64-bit space is treated as unreachable.
func (g *EnqueueOrderGenerator) Next() EnqueueOrder {
	return EnqueueOrder(g.counter.Add(1))
}

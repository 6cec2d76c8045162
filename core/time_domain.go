package core

import (
	"sync"
	"time"
)

// TimeDomain answers "what is the current time" for the queues that reference
// it. A queue never owns its time domain: the owner of the domain must outlive
// every queue referencing it, and swapping a queue's domain is a first-class
// operation (TaskQueue.SetTimeDomain) that re-validates pending delayed tasks
// against the new domain's now instead of discarding them.
type TimeDomain interface {
	// Now returns the domain's current time. Must be safe to call from any
	// goroutine and must never move backwards within one domain.
	Now() time.Time

	// Name identifies the domain in diagnostics.
	Name() string
}

// =============================================================================
// RealTimeDomain: Wall-clock time
// =============================================================================

// RealTimeDomain resolves now via the system monotonic clock.
type RealTimeDomain struct{}

// NewRealTimeDomain returns the wall-clock time domain.
func NewRealTimeDomain() *RealTimeDomain {
	return &RealTimeDomain{}
}

// Now returns the current wall-clock time.
func (d *RealTimeDomain) Now() time.Time {
	return time.Now()
}

// Name identifies the domain in diagnostics.
func (d *RealTimeDomain) Name() string {
	return "real"
}

// =============================================================================
// VirtualTimeDomain: Manually advanced time, for tests and deterministic runs
// =============================================================================

// VirtualTimeDomain is a time domain whose now only moves when told to.
// It lets tests assert delayed-task promotion without sleeping.
type VirtualTimeDomain struct {
	mu  sync.Mutex
	now time.Time
}

// NewVirtualTimeDomain creates a virtual domain starting at start.
func NewVirtualTimeDomain(start time.Time) *VirtualTimeDomain {
	return &VirtualTimeDomain{now: start}
}

// Now returns the domain's current virtual time.
func (d *VirtualTimeDomain) Now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// Name identifies the domain in diagnostics.
func (d *VirtualTimeDomain) Name() string {
	return "virtual"
}

// AdvanceBy moves the virtual clock forward. Negative deltas are ignored so
// the domain keeps its monotonicity contract.
func (d *VirtualTimeDomain) AdvanceBy(delta time.Duration) {
	if delta < 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = d.now.Add(delta)
}

package core

// =============================================================================
// PumpPolicy: Whether a queue auto-promotes work or requires explicit pumping
// =============================================================================

// PumpPolicy controls how incoming tasks become ready to run.
type PumpPolicy int

const (
	// PumpPolicyAuto promotes work whenever a scheduling pass runs, and
	// posting immediate work requests a new pass.
	PumpPolicyAuto PumpPolicy = iota

	// PumpPolicyAutoWithNotification behaves like PumpPolicyAuto and
	// additionally raises an explicit "work available" signal to the owner
	// on every immediate post, independent of scheduling a pass.
	PumpPolicyAutoWithNotification

	// PumpPolicyManual promotes work only when PumpQueue is called.
	PumpPolicyManual
)

// IsAuto reports whether the policy promotes without an explicit pump.
func (p PumpPolicy) IsAuto() bool {
	return p == PumpPolicyAuto || p == PumpPolicyAutoWithNotification
}

// String returns a stable label for the pump policy. Safe to call from any
// goroutine.
func (p PumpPolicy) String() string {
	switch p {
	case PumpPolicyAuto:
		return "auto"
	case PumpPolicyAutoWithNotification:
		return "auto_with_notification"
	case PumpPolicyManual:
		return "manual"
	default:
		return "unknown"
	}
}

// =============================================================================
// WakeupPolicy: Whether activity on a queue may end an idle wait
// =============================================================================

// WakeupPolicy determines whether posting to or promoting on this queue is
// eligible to break an idle wait on the owning run loop. It is fixed at queue
// construction.
type WakeupPolicy int

const (
	// WakeupPolicyCanWakeOtherQueues lets activity on this queue wake the
	// run loop out of an idle wait.
	WakeupPolicyCanWakeOtherQueues WakeupPolicy = iota

	// WakeupPolicyCannotWakeOtherQueues enqueues silently; the work is
	// observed at the next scheduling pass caused by some other queue or a
	// timer.
	WakeupPolicyCannotWakeOtherQueues
)

// String returns a stable label for the wakeup policy. Safe to call from any
// goroutine.
func (p WakeupPolicy) String() string {
	switch p {
	case WakeupPolicyCanWakeOtherQueues:
		return "can_wake_other_queues"
	case WakeupPolicyCannotWakeOtherQueues:
		return "cannot_wake_other_queues"
	default:
		return "unknown"
	}
}

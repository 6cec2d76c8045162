package core

// Spec describes a queue at construction time. Create one with NewSpec and
// override fields as needed before passing it to the manager.
type Spec struct {
	// Name is a stable diagnostic label. Names are not reused after a queue
	// is unregistered.
	Name string

	// PumpPolicy selects automatic or manual promotion. Defaults to
	// PumpPolicyAuto.
	PumpPolicy PumpPolicy

	// WakeupPolicy is fixed for the queue's lifetime. Defaults to
	// WakeupPolicyCanWakeOtherQueues.
	WakeupPolicy WakeupPolicy

	// Priority is the initial selector weight. Defaults to PriorityNormal.
	Priority QueuePriority

	// TimeDomain resolves now for delayed tasks. Nil selects the owner's
	// default domain.
	TimeDomain TimeDomain

	// ShouldNotifyObservers enables Will/DidProcessTask notifications.
	ShouldNotifyObservers bool

	// ShouldMonitorQuiescence marks the queue's activity as relevant to
	// quiescence detection. Surfaced in diagnostics only.
	ShouldMonitorQuiescence bool
}

// NewSpec returns a Spec with the defaults used by most queues: auto pump,
// can-wake wakeup policy, normal priority, observer notifications on.
func NewSpec(name string) Spec {
	return Spec{
		Name:                  name,
		PumpPolicy:            PumpPolicyAuto,
		WakeupPolicy:          WakeupPolicyCanWakeOtherQueues,
		Priority:              PriorityNormal,
		ShouldNotifyObservers: true,
	}
}

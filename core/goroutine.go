package core

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
)

// currentGoroutineID extracts the running goroutine's ID from the first line
// of runtime.Stack ("goroutine 123 [running]:"). Only used on the guarded
// paths below, never on the hot path of a bound goroutine's own reads.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	space := strings.IndexByte(header, ' ')
	if space < 0 {
		return 0
	}
	id, err := strconv.ParseUint(header[:space], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// goroutineAffinity guards state that must only be touched from a single
// goroutine. It binds to the first goroutine that checks it, mirroring the
// bind-on-first-use behavior of a thread checker. There is no lock on this
// path: main-goroutine-only state is protected by this check, not a mutex.
type goroutineAffinity struct {
	id atomic.Uint64
}

// calledOnValidGoroutine reports whether the caller is the bound goroutine,
// binding to the caller if nothing is bound yet.
func (a *goroutineAffinity) calledOnValidGoroutine() bool {
	gid := currentGoroutineID()
	if a.id.CompareAndSwap(0, gid) {
		return true
	}
	return a.id.Load() == gid
}

// bindToCurrent rebinds the affinity to the calling goroutine. Only the run
// loop uses this, once, when it starts: queues are configured before the loop
// exists and ownership of their main-goroutine state moves to the loop.
func (a *goroutineAffinity) bindToCurrent() {
	a.id.Store(currentGoroutineID())
}

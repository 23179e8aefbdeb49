package sync

import (
	"sync/atomic"

	"glenda/internal/arch"
)

// Barrier rendezvouses a fixed number of harts. The boot orchestrator
// and the self-test do not use it; only this package's tests exercise
// it.
type Barrier struct {
	total    atomic.Uint64
	started  atomic.Bool
	arrived  atomic.Uint64
	finished atomic.Uint64
}

// Init sets the participant count. Re-initializing with a different n
// is a programming error and panics; re-initializing with the same n is
// a harmless no-op, since idempotent re-entry across harts is the norm
// for every once-gated subsystem in this kernel.
func (b *Barrier) Init(n uint64) {
	if b.total.CompareAndSwap(0, n) {
		return
	}
	if b.total.Load() != n {
		panic("sync: barrier re-initialized with different participant count")
	}
}

// WaitStart increments the arrival counter and spins until every
// participant has arrived. The participant whose increment reaches
// total is the one that publishes started=true; everyone else observes
// it via an acquire load.
func (b *Barrier) WaitStart() {
	total := b.total.Load()
	if total == 0 {
		panic("sync: barrier used before Init")
	}
	if b.arrived.Add(1) == total {
		b.started.Store(true)
		return
	}
	for !b.started.Load() {
		arch.Pause()
	}
}

// FinishAndLast increments the completion counter and reports whether
// this call was the one that reached total — exactly one caller ever
// observes true.
func (b *Barrier) FinishAndLast() bool {
	total := b.total.Load()
	return b.finished.Add(1) == total
}

package sync

import (
	"sync/atomic"

	"glenda/internal/arch"
)

// Once runs a side-effecting closure exactly once across any number of
// concurrent harts. Unlike stdlib sync.Once it never blocks on a mutex:
// the first hart to flip inProgress false->true runs f, then publishes
// done with release ordering; everyone else spins on done with acquire.
type Once struct {
	inProgress atomic.Bool
	done       atomic.Bool
}

// Do runs f if this is the first call across all harts; otherwise it
// blocks until the winning call's f has returned.
func (o *Once) Do(f func()) {
	if o.done.Load() {
		return
	}
	if !o.inProgress.Swap(true) {
		f()
		o.done.Store(true)
		return
	}
	for !o.done.Load() {
		arch.Pause()
	}
}

// onceState is the three-state machine backing OnceValue.
type onceState uint32

const (
	onceUninitialized onceState = iota
	onceInitializing
	onceReady
)

// OnceValue is a try-init cell: get_or_try_init runs a fallible
// initializer exactly once, and on failure resets the cell so a later
// caller may retry. Readers only ever observe the payload once the
// state is onceReady.
type OnceValue[T any] struct {
	state   atomic.Uint32
	payload T
}

// GetOrTryInit returns the cached value if already initialized.
// Otherwise it races to become the initializing hart; the winner runs
// init and either publishes the result (state=READY, release) or resets
// to UNINITIALIZED on error so a subsequent caller can retry. Losers
// spin until the state leaves INITIALIZING, then retry from the top.
func (c *OnceValue[T]) GetOrTryInit(init func() (T, error)) (T, error) {
	for {
		switch onceState(c.state.Load()) {
		case onceReady:
			return c.payload, nil
		case onceInitializing:
			arch.Pause()
		default:
			if c.state.CompareAndSwap(uint32(onceUninitialized), uint32(onceInitializing)) {
				v, err := init()
				if err != nil {
					c.state.Store(uint32(onceUninitialized))
					var zero T
					return zero, err
				}
				c.payload = v
				c.state.Store(uint32(onceReady))
				return v, nil
			}
		}
	}
}

// Get returns the cached value and true if the cell is READY, without
// attempting initialization.
func (c *OnceValue[T]) Get() (T, bool) {
	if onceState(c.state.Load()) == onceReady {
		return c.payload, true
	}
	var zero T
	return zero, false
}

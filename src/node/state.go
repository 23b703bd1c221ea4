package node

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle state of a fractis node: Gating, Bootstrapping,
// Serving, or Shutdown
type State uint32

const (
	// Gating is the initial state, the stake check is running and no socket
	// is bound.
	Gating State = iota
	// Bootstrapping means the listener is bound and seeds are being dialled.
	Bootstrapping
	// Serving means every seed has been tried and only the accept loop runs.
	Serving
	// Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Gating:
		return "Gating"
	case Bootstrapping:
		return "Bootstrapping"
	case Serving:
		return "Serving"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// casState moves from old to new only if the current state is old. It keeps a
// late transition from overriding Shutdown.
func (b *state) casState(old, new State) bool {
	stateAddr := (*uint32)(&b.state)
	return atomic.CompareAndSwapUint32(stateAddr, uint32(old), uint32(new))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}

package vault

import "sync/atomic"

// reentrancyGuard is the single in-flight-call latch shared by every mutating
// entry point. It deliberately fails instead of blocking: a second mutating
// call while one is in flight is a protocol violation, not contention to wait
// out. One latch for the whole vault is an intentional serialization point.
type reentrancyGuard struct {
	held atomic.Bool
}

func (g *reentrancyGuard) enter() error {
	if !g.held.CompareAndSwap(false, true) {
		return ErrReentrancy
	}

	return nil
}

func (g *reentrancyGuard) exit() {
	g.held.Store(false)
}

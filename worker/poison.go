package worker

import (
	"sync"

	"github.com/signum-network/gopoc-miner/persist"
)

// poisonableMutex approximates the poisoned-mutex behavior the source
// relies on: if the critical section panics while holding the lock, the
// lock must still be usable afterward rather than leaving every future
// locker stuck. Go's sync.Mutex has no poisoning concept (a panicking
// holder still unlocks normally as long as the unlock is deferred), so
// this type's only real job is to recover the panic, log it, and let the
// caller continue with whatever partial state resulted — mirroring the
// source's "take the poisoned guard as-is with a logged error" policy.
type poisonableMutex struct {
	mu sync.Mutex
}

// withLock runs fn while holding the lock. If fn panics, the panic is
// recovered and logged as critical rather than propagated, and withLock
// returns normally. It reports whether a panic was recovered so the caller
// can attribute the failure to whatever unit of work fn was operating on.
func (p *poisonableMutex) withLock(log *persist.Logger, fn func()) (recovered bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			recovered = true
			if log != nil {
				log.Critical("recovered panic in guarded section:", r)
			}
		}
	}()
	fn()
	return
}

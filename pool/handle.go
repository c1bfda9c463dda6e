package pool

import "sync"

// Handle allows a unit of work to interact with the Pool running it.
//
// It is permitted to call Handle methods in goroutines separate from the
// unit's own. In the terminology of the Go memory model, the return of every
// Handle call must be synchronized before the unit's completion.
type Handle struct {
	detach   func()
	reattach func()

	// The worker loans its goroutine's work grant to the unit of work. The
	// unit may relinquish or reobtain it in a controlled manner, and the
	// worker takes its work grant back if the Handle still holds it.
	//
	// mu protects the invariant that this Handle contains a work grant iff
	// !detached && !terminated. detached marks the temporary loss of a work
	// grant through the unit's actions, while terminated marks its permanent
	// loss.
	mu         sync.Mutex
	detached   bool
	terminated bool
}

// Detach unbounds the calling unit of work from the concurrency limit of the
// [Pool] that invoked it, allowing the pool to immediately start other work.
// It returns true if this call detached the unit, or false if the unit had
// already detached.
func (h *Handle) Detach() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.terminated {
		panic("pool: attempted Detach outside the unit of work's lifetime")
	}
	if !h.detached {
		h.detach()
		h.detached = true
		return true
	}
	return false
}

// Reattach blocks the calling unit of work until it can continue executing
// within the concurrency limit of the [Pool] that invoked it, taking priority
// over queued work that has not started. It has no effect if the unit is
// already attached.
func (h *Handle) Reattach() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.terminated {
		panic("pool: attempted Reattach outside the unit of work's lifetime")
	}
	if h.detached {
		h.reattach()
		h.detached = false
	}
}

// terminate extracts the work grant, if any, currently held by h. The
// goroutine that loaned h its work grant is trusted to call terminate exactly
// once and rely on that single return value.
func (h *Handle) terminate() (wasDetached bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.terminated = true
	return h.detached
}

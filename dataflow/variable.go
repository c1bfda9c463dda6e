/*
Package dataflow provides single-assignment variables for implicit
synchronization between concurrent producers and consumers.

A Variable starts unbound. Readers block until the first (and only) Bind,
which releases all of them at once; the bind is synchronized before every
subsequent read, so the value may be consumed without further locking.
*/
package dataflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tandem-go/tandem/pool"
)

// ErrAlreadyBound is returned by [Variable.Bind] when the variable already
// holds a value. The originally bound value is unchanged.
var ErrAlreadyBound = errors.New("dataflow: variable is already bound")

// ErrUnbound is returned by the bounded-wait reads when their deadline
// expires before the variable is bound.
var ErrUnbound = errors.New("dataflow: variable is not bound")

// Variable is a single-assignment cell. The zero Variable is not usable;
// create one with [New].
type Variable[V any] struct {
	mu    sync.Mutex
	bound chan struct{} // closed on first Bind
	value V
}

// New creates an unbound Variable.
func New[V any]() *Variable[V] {
	return &Variable[V]{bound: make(chan struct{})}
}

// Bind assigns the variable's value and releases every blocked reader, in no
// guaranteed order. A second Bind fails with [ErrAlreadyBound] and leaves the
// value untouched.
func (v *Variable[V]) Bind(value V) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	select {
	case <-v.bound:
		return ErrAlreadyBound
	default:
	}
	v.value = value
	close(v.bound)
	return nil
}

// Get blocks the calling goroutine until the variable is bound, then returns
// the value.
func (v *Variable[V]) Get() V {
	<-v.bound
	return v.value
}

// GetDetached behaves like [Variable.Get], but detaches from the pool whose
// worker is running the caller while it blocks, and reattaches before
// returning. Use it inside pool-submitted work so that a parked reader does
// not occupy a worker.
func (v *Variable[V]) GetDetached(h *pool.Handle) V {
	select {
	case <-v.bound:
		return v.value
	default:
	}
	if h.Detach() {
		defer h.Reattach()
	}
	<-v.bound
	return v.value
}

// GetContext blocks until the variable is bound or ctx is canceled. On
// cancellation it returns the zero value and ctx's cause. A variable that is
// already bound is readable even under a canceled context.
func (v *Variable[V]) GetContext(ctx context.Context) (V, error) {
	select {
	case <-v.bound:
		return v.value, nil
	default:
	}
	select {
	case <-v.bound:
		return v.value, nil
	case <-ctx.Done():
		var zero V
		return zero, context.Cause(ctx)
	}
}

// GetTimeout blocks until the variable is bound or the timeout elapses. On
// timeout it returns the zero value and [ErrUnbound].
func (v *Variable[V]) GetTimeout(d time.Duration) (V, error) {
	select {
	case <-v.bound:
		return v.value, nil
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-v.bound:
		return v.value, nil
	case <-timer.C:
		var zero V
		return zero, ErrUnbound
	}
}

// TryGet returns the value and true if the variable is bound, or the zero
// value and false otherwise.
func (v *Variable[V]) TryGet() (V, bool) {
	select {
	case <-v.bound:
		return v.value, true
	default:
		var zero V
		return zero, false
	}
}

// Bound reports whether the variable has been bound.
func (v *Variable[V]) Bound() bool {
	select {
	case <-v.bound:
		return true
	default:
		return false
	}
}

// WhenBound runs fn with the variable's value in a new goroutine as soon as
// the variable is bound, or immediately if it already is.
func (v *Variable[V]) WhenBound(fn func(V)) {
	go func() {
		<-v.bound
		fn(v.value)
	}()
}

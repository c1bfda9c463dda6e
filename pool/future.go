package pool

import (
	"errors"
	"fmt"

	"github.com/tandem-go/tandem/internal/trap"
)

// ErrPoolClosed is the error observed by futures for work submitted after a
// pool was shut down.
var ErrPoolClosed = errors.New("pool is shut down")

// ErrTaskEjected is the error observed by futures for queued work discarded
// by a non-draining shutdown.
var ErrTaskEjected = errors.New("task ejected from pool")

// TaskError wraps the abnormal exit of a submitted unit of work. A unit that
// panics or calls [runtime.Goexit] never crashes its worker; the abnormal
// exit is captured here and surfaces from [Future.Wait].
type TaskError struct {
	// Recovered is the captured panic value, or nil if the unit called
	// runtime.Goexit instead of panicking.
	Recovered any
	// Goexited reports that the unit called runtime.Goexit.
	Goexited bool
}

func (e *TaskError) Error() string {
	if e.Goexited {
		return "task executed runtime.Goexit"
	}
	return fmt.Sprintf("task panicked: %v", e.Recovered)
}

// Func is a unit of work submitted to a [Pool]. The Handle lets it detach
// from the pool's concurrency limit while blocked; see [Handle.Detach].
type Func[V any] func(*Handle) (V, error)

// Future is the completion handle for one submitted unit of work.
type Future[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Wait blocks until the unit of work has settled, then returns its result.
// The error is a *[TaskError] if the unit panicked or called
// [runtime.Goexit], [ErrTaskEjected] if it was discarded by a non-draining
// shutdown, or [ErrPoolClosed] if it was submitted to a closed pool.
func (f *Future[V]) Wait() (V, error) {
	<-f.done
	return f.value, f.err
}

// Done returns a channel that is closed when the unit of work has settled.
func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[V]) complete(value V, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Submit schedules fn to run on a worker of p and returns a [Future] for its
// result. Submit never blocks: if the pool's concurrency limit is saturated,
// the unit is queued in submission order.
func Submit[V any](p *Pool, fn Func[V]) *Future[V] {
	f := &Future[V]{done: make(chan struct{})}
	j := &job{
		run: func(h *Handle) {
			out := trap.Goexit[V]()
			defer func() {
				switch {
				case out.Returned():
					f.complete(out.Unpack())
				case out.Panicked():
					var zero V
					f.complete(zero, &TaskError{Recovered: out.Recovered()})
				default:
					var zero V
					f.complete(zero, &TaskError{Goexited: true})
				}
			}()
			out = trap.Run(func() (V, error) { return fn(h) })
		},
		eject: func() {
			var zero V
			f.complete(zero, ErrTaskEjected)
			// An ejected job settles without reaching a worker, so the
			// bookkeeping runJob would have done happens here.
			p.completed.Add(1)
			p.wg.Done()
		},
	}
	if !p.enqueue(j) {
		var zero V
		f.complete(zero, ErrPoolClosed)
	}
	return f
}

// Go is the error-only analog of [Submit], for units of work that produce no
// value.
func (p *Pool) Go(fn func(*Handle) error) *Future[struct{}] {
	return Submit(p, func(h *Handle) (_ struct{}, err error) {
		err = fn(h)
		return
	})
}

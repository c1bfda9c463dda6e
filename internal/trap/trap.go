// Package trap captures the exit behavior of functions run on pool workers,
// so that a panic or [runtime.Goexit] in submitted work never unwinds through
// the worker's own scheduling loop.
package trap

import "fmt"

// Outcome records how a trapped function exited: a normal return, a panic,
// or a call to [runtime.Goexit]. The zero Outcome behaves as a normal return
// of a zero value and nil error.
type Outcome[V any] struct {
	started   bool
	returned  bool
	recovered bool
	value     V
	err       error
	panicval  any
}

// Run executes fn in the current goroutine and captures its return value or
// panic. If fn calls [runtime.Goexit], Run does not return; callers that must
// observe Goexit should seed their outcome with [Goexit] before calling Run:
//
//	out := trap.Goexit[V]()
//	out = trap.Run(fn)
//
// so that a deferred inspection of out sees the Goexit sentinel.
func Run[V any](fn func() (V, error)) (o Outcome[V]) {
	o.started = true
	func() {
		defer func() { o.panicval = recover() }()
		o.value, o.err = fn()
		o.returned = true
	}()
	o.recovered = true
	return
}

// Goexit constructs an Outcome that records a [runtime.Goexit] call.
func Goexit[V any]() Outcome[V] {
	return Outcome[V]{started: true}
}

// Returned reports whether the function returned normally.
func (o Outcome[V]) Returned() bool {
	return !o.started || o.returned
}

// Panicked reports whether the function panicked.
//
// A "panic(nil)" under GODEBUG=panicnil=1 is still reported as a panic, even
// though [Outcome.Recovered] returns nil for it.
func (o Outcome[V]) Panicked() bool {
	return o.started && !o.returned && o.recovered
}

// Goexited reports whether the function called [runtime.Goexit].
func (o Outcome[V]) Goexited() bool {
	return o.started && !o.returned && !o.recovered
}

// Recovered returns the captured panic value, if any.
func (o Outcome[V]) Recovered() any {
	return o.panicval
}

// Unpack returns the captured return values. It panics if the outcome does
// not record a normal return; callers must check [Outcome.Returned] first.
func (o Outcome[V]) Unpack() (V, error) {
	if !o.Returned() {
		panic(fmt.Sprintf("trap: Unpack of abnormal outcome %+v", o))
	}
	return o.value, o.err
}

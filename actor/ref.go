package actor

import (
	"errors"
	"fmt"
	"time"
)

// ErrCallTimeout is wrapped by [Ref.SendAndWait] when no reply arrives in
// time.
var ErrCallTimeout = errors.New("actor: call timed out")

// Ref is the handle through which other code communicates with an actor. An
// actor has no methods of its own; it can only be reached by passing
// messages to its Ref.
type Ref struct {
	a *actor
}

// Name returns the actor's name.
func (r *Ref) Name() string {
	return r.a.name
}

// State returns the actor's lifecycle state as of the time of the call.
func (r *Ref) State() State {
	return State(r.a.state.Load())
}

// Send enqueues data in the actor's mailbox without blocking. It returns
// [ErrMailboxClosed] if the actor has stopped; a message accepted before a
// stop may still be discarded unprocessed.
func (r *Ref) Send(data Message) error {
	return r.deliverFrom(data, nil)
}

// SendFrom is [Ref.Send] with an explicit sender, enabling the receiving
// handler to respond via [Context.Reply].
func (r *Ref) SendFrom(data Message, sender *Ref) error {
	return r.deliverFrom(data, sender)
}

func (r *Ref) deliverFrom(data Message, sender *Ref) error {
	return r.a.deliver(&envelope{data: data, sender: sender})
}

// SendAndWait sends data and blocks until the actor answers with
// [Context.Reply], the actor terminates, or the timeout elapses.
func (r *Ref) SendAndWait(data Message, timeout time.Duration) (Message, error) {
	reply := make(chan callReply, 1)
	if err := r.a.deliver(&envelope{data: data, reply: reply}); err != nil {
		return nil, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rsp := <-reply:
		return rsp.value, rsp.err
	case <-timer.C:
		return nil, fmt.Errorf("call to %s after %v: %w", r.a.name, timeout, ErrCallTimeout)
	}
}

// Stop asks the actor to stop: the in-flight message (if any) finishes,
// queued messages are discarded, and further sends fail. Stop is idempotent
// and returns without waiting; use [Ref.Join] to wait.
func (r *Ref) Stop() {
	a := r.a
	a.beginStop(nil)
	if a.body != nil {
		return // The body observes the stop and exits; its runner finalizes.
	}
	if a.scheduled.CompareAndSwap(false, true) {
		// No turn is in flight, so nothing else will finalize.
		a.finalize()
		a.scheduled.Store(false)
	}
}

// Join blocks until the actor has fully stopped and returns its termination
// result: nil for a normal stop, or the error or captured panic that
// terminated it.
func (r *Ref) Join() error {
	<-r.a.done
	return r.a.err
}

// Err returns the actor's termination result, or nil if it has not stopped.
func (r *Ref) Err() error {
	select {
	case <-r.a.done:
		return r.a.err
	default:
		return nil
	}
}

// TypedRef is a send handle bound to a single message type. Dispatch needs
// no runtime type inspection, and sending any other type is a compile error.
type TypedRef[T any] struct {
	ref *Ref
}

// Send enqueues msg in the actor's mailbox without blocking.
func (r *TypedRef[T]) Send(msg T) error {
	return r.ref.Send(msg)
}

// SendAndWait sends msg and blocks for the actor's reply.
func (r *TypedRef[T]) SendAndWait(msg T, timeout time.Duration) (Message, error) {
	return r.ref.SendAndWait(msg, timeout)
}

// Stop is equivalent to [Ref.Stop].
func (r *TypedRef[T]) Stop() { r.ref.Stop() }

// Join is equivalent to [Ref.Join].
func (r *TypedRef[T]) Join() error { return r.ref.Join() }

// Untyped returns the actor's plain [Ref], for use as a sender or
// supervisor. Sends through the plain Ref bypass the compile-time type
// check; a message of the wrong type terminates the actor.
func (r *TypedRef[T]) Untyped() *Ref { return r.ref }

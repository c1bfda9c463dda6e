package actor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/tandem-go/tandem/pool"
)

// ErrMailboxClosed is returned by sends to an actor that has stopped or is
// stopping.
var ErrMailboxClosed = errors.New("actor: mailbox is closed")

// ErrDispatchNotFound terminates a dynamic dispatch actor that receives a
// message with no matching handler and no catch-all.
var ErrDispatchNotFound = errors.New("actor: no handler for message")

// ErrStopped is returned by [Context.Receive] when the actor is stopping.
// A loop actor body that returns it (or wraps it) stops normally.
var ErrStopped = errors.New("actor: stopped")

// State is an actor's lifecycle state.
type State int32

const (
	// StateNew means the actor exists but its mailbox is not yet processing.
	StateNew State = iota
	// StateActive means the actor's processing loop is scheduled on the pool.
	StateActive
	// StateStopped is terminal; no further messages are accepted.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminated is the message forwarded to an actor's supervisor when the
// actor stops because of an unhandled error or panic.
type Terminated struct {
	Name string
	Err  error
}

type actor struct {
	group      *Group
	name       string
	fair       bool
	supervisor *Ref

	mb     mailbox
	signal chan struct{} // loop actors: wakeups for a parked Receive

	// Exactly one of body and handle is set: body for loop actors, handle
	// for the mailbox-driven kinds (dynamic, typed, reactive).
	body     func(*Context) error
	handle   func(*Context, Message) error
	behavior *Behavior // dynamic actors only; owned by the processing turn

	scheduled atomic.Bool
	stopping  atomic.Bool
	state     atomic.Int32

	causeMu   sync.Mutex
	stopCause error

	done chan struct{}
	err  error // termination result; written before done closes
}

func newActor(g *Group, name string, opts []Option) *actor {
	a := &actor{
		group: g,
		name:  name,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Option configures an actor at spawn time.
type Option func(*actor)

// WithFair makes the actor yield its pool worker after each processed
// message, rather than draining its mailbox first. See the package
// documentation for the trade-off.
func WithFair(fair bool) Option {
	return func(a *actor) { a.fair = fair }
}

// WithSupervisor designates an actor to receive a [Terminated] message when
// this actor stops because of an error.
func WithSupervisor(s *Ref) Option {
	return func(a *actor) { a.supervisor = s }
}

func (a *actor) ref() *Ref {
	return &Ref{a: a}
}

// deliver is the single entry point for all sends.
func (a *actor) deliver(e *envelope) error {
	if a.stopping.Load() || !a.mb.push(e) {
		return ErrMailboxClosed
	}
	a.notify()
	return nil
}

// notify wakes the actor's processing loop after a push. Loop actors are
// parked on a 1-buffered signal channel; driven actors are rescheduled onto
// the pool.
func (a *actor) notify() {
	if a.body != nil {
		select {
		case a.signal <- struct{}{}:
		default:
		}
		return
	}
	a.schedule()
}

// schedule submits one processing turn to the pool unless one is already
// pending or running.
func (a *actor) schedule() {
	if !a.scheduled.CompareAndSwap(false, true) {
		return
	}
	fut := a.group.pool.Go(func(*pool.Handle) error {
		a.turn()
		return nil
	})
	select {
	case <-fut.Done():
		// A rejected turn settles synchronously. The pool is gone, so the
		// actor can never run again; terminate it rather than strand Join.
		if _, err := fut.Wait(); err != nil {
			a.scheduled.Store(false)
			a.beginStop(err)
			a.finalize()
		}
	default:
	}
}

// turn processes mailbox messages on a pool worker: one for a fair actor,
// the whole backlog for a non-fair one.
func (a *actor) turn() {
	budget := math.MaxInt
	if a.fair {
		budget = 1
	}
	for range budget {
		if a.stopping.Load() {
			break // Queued messages are discarded, not processed.
		}
		e, ok := a.mb.pop()
		if !ok {
			break
		}
		if err := a.process(e); err != nil {
			a.beginStop(err)
			break
		}
	}

	a.scheduled.Store(false)
	if a.stopping.Load() {
		a.finalize()
		return
	}
	if a.mb.size() > 0 {
		a.schedule()
	}
}

// process runs the actor's handler for one message, converting a panic into
// an error. A failed synchronous call is answered with the error so the
// caller does not wait for its timeout.
func (a *actor) process(e *envelope) (err error) {
	ctx := &Context{a: a, current: e}
	defer func() {
		if v := recover(); v != nil {
			err = &pool.TaskError{Recovered: v}
		}
		if err != nil && e.reply != nil {
			e.reply <- callReply{err: err}
			e.reply = nil
		}
	}()
	return a.handle(ctx, e.data)
}

// beginStop closes the mailbox and records the first termination cause.
// It does not finalize; that happens once the processing loop has wound
// down.
func (a *actor) beginStop(err error) {
	if err != nil && !errors.Is(err, ErrStopped) {
		a.causeMu.Lock()
		if a.stopCause == nil {
			a.stopCause = err
		}
		a.causeMu.Unlock()
	}
	if a.stopping.CompareAndSwap(false, true) {
		a.mb.close()
		if a.body != nil {
			// Unpark a blocked Receive so the body can observe the stop.
			select {
			case a.signal <- struct{}{}:
			default:
			}
		}
	}
}

// finalize completes the transition to StateStopped exactly once: queued
// messages are discarded, pending calls are failed, and the termination
// cause is surfaced through Join and the supervisor.
func (a *actor) finalize() {
	if !a.state.CompareAndSwap(int32(StateActive), int32(StateStopped)) {
		return
	}
	a.mb.close()
	dropped := a.mb.drain()
	for _, e := range dropped {
		if e.reply != nil {
			e.reply <- callReply{err: ErrMailboxClosed}
		}
	}
	if len(dropped) > 0 {
		log.Debugf("actor %s: discarded %d queued messages on stop", a.name, len(dropped))
	}

	a.causeMu.Lock()
	err := a.stopCause
	a.causeMu.Unlock()
	a.err = err
	if err != nil {
		log.Warnf("actor %s: terminated: %v", a.name, err)
		if a.supervisor != nil {
			_ = a.supervisor.deliverFrom(Terminated{Name: a.name, Err: err}, nil)
		}
	} else {
		log.Debugf("actor %s: stopped", a.name)
	}
	close(a.done)
}

// start transitions NEW -> ACTIVE and hooks the actor to its pool.
func (a *actor) start() *Ref {
	a.state.CompareAndSwap(int32(StateNew), int32(StateActive))
	log.Debugf("actor %s: started on group %s", a.name, a.group.name)

	if a.body == nil {
		// Driven actors only run when mail arrives.
		return a.ref()
	}

	a.signal = make(chan struct{}, 1)
	fut := pool.Submit(a.group.pool, func(h *pool.Handle) (struct{}, error) {
		ctx := &Context{a: a, h: h}
		return struct{}{}, a.body(ctx)
	})
	go func() {
		_, err := fut.Wait()
		a.beginStop(err)
		a.finalize()
	}()
	return a.ref()
}

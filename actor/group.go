package actor

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tandem-go/tandem/pool"
)

// Group is a named binding of actors to a [pool.Pool]. Every actor belongs
// to exactly one group; actors in the same group share the group's workers.
type Group struct {
	name string
	pool *pool.Pool
}

// NewGroup binds a new group to p.
func NewGroup(name string, p *pool.Pool) *Group {
	return &Group{name: name, pool: p}
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Pool returns the group's task pool. The pool must outlive the group's
// actors; shutting it down strands any actor that has not stopped.
func (g *Group) Pool() *pool.Pool { return g.pool }

// Spawn starts a loop actor: body runs once on the group's pool and receives
// messages explicitly with [Context.Receive] wherever its control flow needs
// them. The actor stops when body returns; a non-nil return other than
// [ErrStopped] is the actor's termination error.
func (g *Group) Spawn(name string, body func(*Context) error, opts ...Option) *Ref {
	a := newActor(g, name, opts)
	a.body = body
	return a.start()
}

// SpawnDynamic starts a dynamic dispatch actor: each message is routed to
// the handler b registers for its runtime type. A message with no matching
// handler and no catch-all terminates the actor with [ErrDispatchNotFound].
func (g *Group) SpawnDynamic(name string, b *Behavior, opts ...Option) *Ref {
	a := newActor(g, name, opts)
	a.behavior = b
	a.handle = func(ctx *Context, m Message) error {
		h, ok := a.behavior.resolve(m)
		if !ok {
			return fmt.Errorf("%w of type %T", ErrDispatchNotFound, m)
		}
		return h(ctx, m)
	}
	return a.start()
}

// SpawnTyped starts a static dispatch actor bound to the single message type
// T. The returned [TypedRef] checks the message type at compile time, and
// dispatch performs no handler lookup.
func SpawnTyped[T any](g *Group, name string, h func(*Context, T) error, opts ...Option) *TypedRef[T] {
	a := newActor(g, name, opts)
	a.handle = func(ctx *Context, m Message) error {
		return h(ctx, m.(T))
	}
	return &TypedRef[T]{ref: a.start()}
}

// SpawnReactive starts an actor that, for every message, calls fn and sends
// its return value back to the original sender.
func (g *Group) SpawnReactive(name string, fn func(Message) Message, opts ...Option) *Ref {
	a := newActor(g, name, opts)
	a.handle = func(ctx *Context, m Message) error {
		if err := ctx.Reply(fn(m)); err != nil {
			log.Debugf("actor %s: reply dropped: %v", a.name, err)
		}
		return nil
	}
	return a.start()
}

package actor

import "reflect"

// Handler processes one message for a dynamic dispatch actor.
type Handler func(*Context, Message) error

// Behavior is the handler table of a dynamic dispatch actor: a mapping from
// message runtime types to handlers, with an optional catch-all. A Behavior
// is owned by at most one actor at a time and must not be mutated after the
// actor starts; swap tables with [Context.Become] instead.
type Behavior struct {
	entries  []behaviorEntry
	fallback Handler
}

type behaviorEntry struct {
	typ reflect.Type
	h   Handler
}

// NewBehavior creates an empty handler table.
func NewBehavior() *Behavior {
	return &Behavior{}
}

// On registers h for messages of type T, which may be a concrete type or an
// interface. Later registrations take precedence over earlier ones, so a
// handler appended after construction overrides a built-in for the same
// type. It returns b for chaining.
func On[T any](b *Behavior, h func(*Context, T) error) *Behavior {
	b.entries = append(b.entries, behaviorEntry{
		typ: reflect.TypeFor[T](),
		h: func(ctx *Context, m Message) error {
			return h(ctx, m.(T))
		},
	})
	return b
}

// Otherwise registers the catch-all handler, replacing any previous one.
// Without a catch-all, an unmatched message terminates the actor with
// [ErrDispatchNotFound].
func (b *Behavior) Otherwise(h Handler) *Behavior {
	b.fallback = h
	return b
}

// resolve selects the most specific handler for m: an exact runtime type
// match first, then the most recently registered interface that m's type
// implements, then the catch-all.
func (b *Behavior) resolve(m Message) (Handler, bool) {
	t := reflect.TypeOf(m) // nil for an untyped nil message
	if t != nil {
		for i := len(b.entries) - 1; i >= 0; i-- {
			if b.entries[i].typ == t {
				return b.entries[i].h, true
			}
		}
		for i := len(b.entries) - 1; i >= 0; i-- {
			e := b.entries[i]
			if e.typ.Kind() == reflect.Interface && t.Implements(e.typ) {
				return e.h, true
			}
		}
	}
	if b.fallback != nil {
		return b.fallback, true
	}
	return nil, false
}

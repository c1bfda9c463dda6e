package actor

import (
	"errors"
	"sync"
	"time"

	"github.com/tandem-go/tandem/pool"
)

// ErrNoReply is returned by [Context.Reply] when the current message carries
// neither a reply slot nor a sender.
var ErrNoReply = errors.New("actor: message has no reply target")

// ErrReceiveTimeout is returned by [Context.ReceiveTimeout] when no message
// arrives in time. It is a signal distinct from any real message.
var ErrReceiveTimeout = errors.New("actor: receive timed out")

// ErrNotReceiving is returned by Receive outside a loop actor's body.
var ErrNotReceiving = errors.New("actor: Receive is only valid in a loop actor body")

// Context is the view an actor's own handler or body has of the actor. It is
// valid only for the duration of the call it is passed to.
type Context struct {
	a       *actor
	h       *pool.Handle
	current *envelope
}

// Self returns the actor's own [Ref], usable as a sender or for self-sends.
func (c *Context) Self() *Ref {
	return c.a.ref()
}

// Name returns the actor's name.
func (c *Context) Name() string {
	return c.a.name
}

// Group returns the parallel group the actor belongs to.
func (c *Context) Group() *Group {
	return c.a.group
}

// Sender returns the sender of the message being processed, or nil if the
// sender did not identify itself.
func (c *Context) Sender() *Ref {
	if c.current == nil {
		return nil
	}
	return c.current.sender
}

// Reply answers the message being processed: a [Ref.SendAndWait] caller is
// unblocked with v, and a plain send with a sender receives v as a new
// message. Reply is valid only while processing a message, and a call's
// reply slot accepts only the first Reply.
func (c *Context) Reply(v Message) error {
	e := c.current
	if e == nil {
		return ErrNoReply
	}
	if e.reply != nil {
		e.reply <- callReply{value: v}
		e.reply = nil
		return nil
	}
	if e.sender != nil {
		return e.sender.SendFrom(v, c.a.ref())
	}
	return ErrNoReply
}

// Become swaps the dynamic dispatch actor's handler table. The swap takes
// effect for the next message; it runs under the actor's own exclusive
// processing turn, so no locking is involved. Become panics if the actor was
// not spawned with [Group.SpawnDynamic].
func (c *Context) Become(b *Behavior) {
	if c.a.behavior == nil {
		panic("actor: Become on a non-dynamic actor")
	}
	c.a.behavior = b
}

// Stop asks the actor to stop after the current message; equivalent to
// [Ref.Stop] from inside a handler.
func (c *Context) Stop() {
	c.a.beginStop(nil)
}

// Receive parks the loop actor's body until the next mailbox message
// arrives, yielding the underlying pool worker while parked, and returns the
// message. It returns [ErrStopped] once the actor is stopping.
func (c *Context) Receive() (Message, error) {
	return c.receive(nil)
}

// ReceiveTimeout is [Context.Receive] with a timeout, reported as
// [ErrReceiveTimeout].
func (c *Context) ReceiveTimeout(d time.Duration) (Message, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	return c.receive(timer.C)
}

func (c *Context) receive(timeout <-chan time.Time) (Message, error) {
	if c.a.body == nil || c.h == nil {
		return nil, ErrNotReceiving
	}
	for {
		if c.a.stopping.Load() {
			return nil, ErrStopped // Queued messages are discarded, not received.
		}
		if e, ok := c.a.mb.pop(); ok {
			c.current = e
			return e.data, nil
		}

		// Park without consuming a worker: detach for the wait, reattach
		// before touching the mailbox again.
		detached := c.h.Detach()
		var timedOut bool
		select {
		case <-c.a.signal:
		case <-timeout:
			timedOut = true
		}
		if detached {
			c.h.Reattach()
		}
		if timedOut {
			return nil, ErrReceiveTimeout
		}
	}
}

// After sends data to the actor itself once, after d has elapsed, unless the
// actor stops first.
func (c *Context) After(d time.Duration, data Message) {
	self := c.a.ref()
	done := c.a.done
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			_ = self.Send(data)
		case <-done:
		}
	}()
}

// Every sends data to the actor itself every d until the returned stop
// function is called or the actor stops.
func (c *Context) Every(d time.Duration, data Message) (stop func()) {
	self := c.a.ref()
	done := c.a.done
	ch := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if self.Send(data) != nil {
					return
				}
			case <-ch:
				return
			case <-done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(ch) }) }
}

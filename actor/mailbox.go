package actor

import (
	"sync"

	"github.com/gammazero/deque"
)

// Message is the type of all actor message payloads.
type Message = any

// envelope carries one message through a mailbox, along with its origin and
// an optional reply slot for synchronous calls.
type envelope struct {
	data   Message
	sender *Ref
	reply  chan callReply // non-nil only for SendAndWait
}

type callReply struct {
	value Message
	err   error
}

// mailbox is an unbounded MPSC queue. Producers enqueue without blocking;
// only the owning actor's processing loop dequeues. Writes made by a
// producer before push are visible to the consumer after pop.
type mailbox struct {
	mu     sync.Mutex
	queue  deque.Deque[*envelope]
	closed bool
}

// push enqueues e, or reports false if the mailbox is closed.
func (mb *mailbox) push(e *envelope) bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return false
	}
	mb.queue.PushBack(e)
	return true
}

func (mb *mailbox) pop() (*envelope, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.queue.Len() == 0 {
		return nil, false
	}
	return mb.queue.PopFront(), true
}

// drain removes and returns all queued envelopes.
func (mb *mailbox) drain() []*envelope {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	dropped := make([]*envelope, 0, mb.queue.Len())
	for mb.queue.Len() > 0 {
		dropped = append(dropped, mb.queue.PopFront())
	}
	return dropped
}

func (mb *mailbox) close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.closed = true
}

func (mb *mailbox) size() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.queue.Len()
}

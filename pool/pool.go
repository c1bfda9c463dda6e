/*
Package pool provides a bounded worker pool for anonymous units of work.

A Pool limits the number of goroutines concurrently executing submitted
functions, while letting an individual function temporarily leave the limit
([Handle.Detach]) when it blocks on something other than the CPU, such as a
dataflow read or the completion of other pool work. Detaching transfers the
caller's right to execute work back to the pool, so blocked work never
starves runnable work of a worker.
*/
package pool

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// Pool executes submitted functions on a bounded number of worker goroutines.
//
// The concurrency bound is maintained by a protocol of "work grants". A work
// grant is an abstract resource that both permits and obligates its holder to
// execute the pool's pending work. Work grants are issued (by incrementing
// grants), retired (by decrementing grants), and transferred between
// goroutines to maintain the following invariants:
//
//   - Exactly one work grant is outstanding for every pending unit of work,
//     up to grantLimit.
//   - No goroutine holds more than one work grant.
//   - Any work grant holder is either executing a unit of work or maintaining
//     these invariants.
//
// Detaching handlers relinquish their work grant to continue execution
// outside of the concurrency limit. Reattaching handlers that wish to
// re-obtain a work grant receive priority over the start of queued work.
type Pool struct {
	state   workState
	stateMu sync.Mutex
	closed  bool // guarded by stateMu

	// reattach defines the protocol by which a goroutine transfers its work
	// grant to a reattaching handler. The grantee sends into the unbuffered
	// channel to obtain the grant, and the grantor receives from it to unblock
	// them, so that reattachers resume in FIFO order.
	reattach reattachQueue

	wg        sync.WaitGroup
	submitted atomic.Uint64
	completed atomic.Uint64
}

type workState struct {
	grants      int
	grantLimit  int
	reattachers int
	jobs        deque.Deque[*job]
}

type reattachQueue chan struct{}

func (rq reattachQueue) SendGrant()    { <-rq }
func (rq reattachQueue) ReceiveGrant() { rq <- struct{}{} }

// job is one submitted unit of work. run executes the unit and completes its
// future; eject completes the future with ErrTaskEjected without running it.
type job struct {
	run   func(*Handle)
	eject func()
}

// New creates a Pool that runs at most workers submitted functions
// concurrently. If workers <= 0 the pool is effectively unbounded.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = math.MaxInt
	}
	return &Pool{
		state:    workState{grantLimit: workers},
		reattach: make(reattachQueue),
	}
}

// With creates a Pool of the given size, runs fn with it, and shuts the pool
// down (draining all submitted work) when fn returns, however it returns.
func With(workers int, fn func(*Pool)) {
	p := New(workers)
	defer p.Shutdown(true)
	fn(p)
}

// Limit updates the pool's concurrency limit, guaranteeing a limit of at
// least 1 regardless of the limit provided.
//
// Limit may be called at any time, even while work is running. The pool
// immediately starts as much pending work as an increased limit allows, or
// permits running work in violation of a decreased limit to finish in the
// background.
func (p *Pool) Limit(limit int) {
	var (
		ready     []*job
		transfers int
	)
	func() {
		p.stateMu.Lock()
		defer p.stateMu.Unlock()

		// Update the limit, and determine how many new work grants we can issue.
		p.state.grantLimit = max(1, limit)
		issuable := max(0, p.state.grantLimit-p.state.grants)

		// Issue as many work grants as possible to reattachers.
		transfers = min(issuable, p.state.reattachers)
		p.state.grants += transfers
		p.state.reattachers -= transfers
		issuable -= transfers

		// Issue as many work grants as possible for pending work.
		runnable := min(issuable, p.state.jobs.Len())
		p.state.grants += runnable
		ready = make([]*job, runnable)
		for i := range ready {
			ready[i] = p.state.jobs.PopFront()
		}
	}()

	// Transfer the work grants issued for pending work first, since this won't
	// require any blocking.
	for _, j := range ready {
		go p.work(j)
	}

	// Transfer the work grants issued for reattachers, which may block but only
	// for a short time.
	for range transfers {
		p.reattach.SendGrant()
	}
}

// Workers returns the pool's current concurrency limit.
func (p *Pool) Workers() int {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state.grantLimit
}

// Shutdown stops the pool and blocks until all remaining work has settled.
//
// With drain == true, Shutdown waits for every queued and running unit of
// work to finish. With drain == false, queued units that have not started are
// discarded (their futures fail with [ErrTaskEjected]) and Shutdown waits
// only for running units. Either way, work submitted after Shutdown fails
// with [ErrPoolClosed]. Shutdown is idempotent.
func (p *Pool) Shutdown(drain bool) {
	var ejected []*job
	func() {
		p.stateMu.Lock()
		defer p.stateMu.Unlock()
		p.closed = true
		if !drain {
			for p.state.jobs.Len() > 0 {
				ejected = append(ejected, p.state.jobs.PopFront())
			}
		}
	}()
	for _, j := range ejected {
		j.eject()
	}
	p.wg.Wait()
}

// Stats conveys information about the work submitted to a Pool.
type Stats struct {
	// Completed is the count of units of work that have settled, including
	// failed and ejected units.
	Completed uint64
	// Submitted is the count of all units of work ever accepted by the pool.
	Submitted uint64
}

// Stats returns the [Stats] for a Pool as of the time of the call.
func (p *Pool) Stats() Stats {
	return Stats{
		Completed: p.completed.Load(),
		Submitted: p.submitted.Load(),
	}
}

// enqueue accepts a unit of work, either transferring a fresh work grant to a
// new worker or queueing the unit for an existing grant holder. It reports
// false, without accepting the unit, if the pool has been shut down.
func (p *Pool) enqueue(j *job) bool {
	var startImmediately bool
	p.stateMu.Lock()
	if p.closed {
		p.stateMu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.submitted.Add(1)
	if p.state.grants < p.state.grantLimit {
		p.state.grants++
		startImmediately = true
	} else {
		p.state.jobs.PushBack(j)
	}
	p.stateMu.Unlock()

	if startImmediately {
		go p.work(j)
	}
	return true
}

// work, when invoked in a new goroutine, accepts ownership of a work grant
// and fulfills all duties associated with it. If provided with an initial
// job, it executes that job before taking on queued work.
func (p *Pool) work(initial *job) {
	for {
		var j *job
		if initial != nil {
			j, initial = initial, nil
		} else {
			var ok bool
			if j, ok = p.next(); !ok {
				return // We no longer have a work grant; see next.
			}
		}
		if detached := p.runJob(j); detached {
			return // We no longer have a work grant.
		}
	}
}

// runJob, when called with a work grant held, executes one unit of work,
// which may relinquish the work grant by detaching.
func (p *Pool) runJob(j *job) (detached bool) {
	h := &Handle{ // Loan our work grant to the unit of work.
		detach:   p.handleDetach,
		reattach: p.handleReattach,
	}
	returned := false
	defer func() {
		detached = h.terminate() // Take the work grant back, if it's still there.
		p.completed.Add(1)
		p.wg.Done()
		if !returned && !detached {
			// j.run traps panics, so an abnormal exit here is runtime.Goexit.
			// We can't stop the goroutine from dying, so transfer the grant.
			go p.work(nil)
		}
	}()
	j.run(h)
	returned = true
	return
}

// next, when called with a work grant held, either relinquishes the work
// grant (returning ok == false) or returns a unit of work (ok == true) that
// the caller must execute.
func (p *Pool) next() (j *job, ok bool) {
	var mustSendGrant bool

	func() {
		p.stateMu.Lock()
		defer p.stateMu.Unlock()

		switch {
		case p.state.grants > p.state.grantLimit:
			// We are in violation of a decreased concurrency limit, and must
			// retire the work grant even if work is pending.
			p.state.grants--

		case p.state.reattachers > 0:
			// We can transfer our work grant to a reattacher; see handleReattach.
			p.state.reattachers--
			mustSendGrant = true

		case p.state.jobs.Len() == 0:
			// With no reattachers and no pending work, we must retire the grant.
			p.state.grants--

		default:
			j = p.state.jobs.PopFront()
			ok = true
		}
	}()

	if mustSendGrant {
		p.reattach.SendGrant()
	}
	return
}

// handleDetach relinquishes a work grant held by its caller.
func (p *Pool) handleDetach() {
	// `go p.work(nil)` would be a correct implementation of this function that
	// biases toward unblocking the detacher as quickly as possible. But since
	// the typical reason to detach is to block on another resource, we can
	// afford to spend some quality time with the state lock, and perhaps
	// relinquish our work grant directly instead of spawning a new goroutine
	// to transfer it.
	if j, ok := p.next(); ok {
		go p.work(j)
	}
}

// handleReattach obtains a work grant to replace one previously relinquished
// by handleDetach.
func (p *Pool) handleReattach() {
	var mustReceiveGrant bool

	func() {
		p.stateMu.Lock()
		defer p.stateMu.Unlock()

		if p.state.grants < p.state.grantLimit {
			// There is capacity for a new work grant, so we must issue one.
			p.state.grants++
			return
		}

		// There is no capacity for a new work grant, so we must inform an
		// existing worker that a reattacher is ready to take theirs.
		p.state.reattachers++
		mustReceiveGrant = true
	}()

	if mustReceiveGrant {
		p.reattach.ReceiveGrant()
	}
}

/*
Package forkjoin provides a recursive task-splitting executor on top of
[pool.Pool].

A task's compute function may fork child tasks at any point and later block
on the aggregate of their results. Waiting parents detach from the pool while
blocked, so a tree of any depth can be orchestrated on a pool of any size
without deadlock.
*/
package forkjoin

import (
	"context"
	"errors"
	"fmt"

	"github.com/tandem-go/tandem/pool"
)

// ErrCanceled is the cancellation cause recorded by [Cancel] when no other
// cause is supplied.
var ErrCanceled = errors.New("forkjoin: computation canceled")

// Compute is the body of one task node. Its return value is the task's
// result; returning an error (or panicking) fails the task and, through
// [Task.ChildResults], every ancestor waiting on it.
type Compute[V any] func(*Task[V]) (V, error)

// Task is one node of a fork/join computation. It is valid only within its
// own Compute call and must not be shared across tasks.
type Task[V any] struct {
	p        *pool.Pool
	ctx      context.Context
	h        *pool.Handle
	children []*pool.Future[V]
}

// Orchestrate runs compute as the root of a fork/join computation on p and
// blocks until the whole tree has completed, returning the root's result.
func Orchestrate[V any](p *pool.Pool, compute Compute[V]) (V, error) {
	return OrchestrateContext(context.Background(), p, compute)
}

// OrchestrateContext behaves like [Orchestrate] under a context. Canceling
// ctx cancels children that have not yet started, best-effort: they fail
// with the cancellation cause before their compute runs, while tasks already
// computing run to completion.
func OrchestrateContext[V any](ctx context.Context, p *pool.Pool, compute Compute[V]) (V, error) {
	return pool.Submit(p, taskFunc(ctx, p, compute)).Wait()
}

func taskFunc[V any](ctx context.Context, p *pool.Pool, compute Compute[V]) pool.Func[V] {
	return func(h *pool.Handle) (V, error) {
		if err := context.Cause(ctx); err != nil {
			var zero V
			return zero, err
		}
		return compute(&Task[V]{p: p, ctx: ctx, h: h})
	}
}

// Fork enqueues child as an independent task, possibly on another worker.
// The child's result is owned by this task once joined via
// [Task.ChildResults].
func (t *Task[V]) Fork(child Compute[V]) {
	t.children = append(t.children, pool.Submit(t.p, taskFunc(t.ctx, t.p, child)))
}

// ChildResults blocks until every child forked so far has completed and
// returns their results in fork order. If any child failed, ChildResults
// returns the first failure in fork order, aborting this task's own
// computation when the error is propagated.
//
// While blocked, the calling task is detached from the pool so that its
// worker can execute the children it is waiting for.
func (t *Task[V]) ChildResults() ([]V, error) {
	if len(t.children) == 0 {
		return nil, nil
	}
	if t.h.Detach() {
		defer t.h.Reattach()
	}
	results := make([]V, len(t.children))
	for i, child := range t.children {
		v, err := child.Wait()
		if err != nil {
			return nil, fmt.Errorf("fork/join child %d: %w", i, err)
		}
		results[i] = v
	}
	return results, nil
}

// Context returns the context governing this computation, for compute bodies
// that want to observe cancellation mid-flight.
func (t *Task[V]) Context() context.Context {
	return t.ctx
}

// Cancel returns a context and a cancel function wired with [ErrCanceled] as
// the default cause, for use with [OrchestrateContext].
func Cancel(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	return ctx, func() { cancel(ErrCanceled) }
}

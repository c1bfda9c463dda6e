package forkjoin_test

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-go/tandem/forkjoin"
	"github.com/tandem-go/tandem/pool"
)

func ExampleOrchestrate() {
	pool.With(4, func(p *pool.Pool) {
		// Sum 1..100 by recursive halving.
		var sum func(lo, hi int) forkjoin.Compute[int]
		sum = func(lo, hi int) forkjoin.Compute[int] {
			return func(t *forkjoin.Task[int]) (int, error) {
				if hi-lo <= 10 {
					total := 0
					for i := lo; i <= hi; i++ {
						total += i
					}
					return total, nil
				}
				mid := (lo + hi) / 2
				t.Fork(sum(lo, mid))
				t.Fork(sum(mid+1, hi))
				results, err := t.ChildResults()
				if err != nil {
					return 0, err
				}
				return results[0] + results[1], nil
			}
		}
		total, _ := forkjoin.Orchestrate(p, sum(1, 100))
		fmt.Println(total)
	})
	// Output: 5050
}

// fanout builds a compute that forks branching children down to the given
// depth, counting every leaf reached.
func fanout(leaves *atomic.Int64, branching, depth int) forkjoin.Compute[int] {
	return func(t *forkjoin.Task[int]) (int, error) {
		if depth == 0 {
			leaves.Add(1)
			return 1, nil
		}
		for range branching {
			t.Fork(fanout(leaves, branching, depth-1))
		}
		results, err := t.ChildResults()
		if err != nil {
			return 0, err
		}
		total := 0
		for _, r := range results {
			total += r
		}
		return total, nil
	}
}

func TestDeepTreeOnSmallPool(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// 3^4 = 81 leaves, far more simultaneous waiters than workers. The
		// computation can only finish if waiting parents release their
		// workers to their descendants.
		p := pool.New(2)
		defer p.Shutdown(true)

		var leaves atomic.Int64
		total, err := forkjoin.Orchestrate(p, fanout(&leaves, 3, 4))
		require.NoError(t, err)
		assert.Equal(t, 81, total)
		assert.EqualValues(t, 81, leaves.Load())
	})
}

func TestSingleWorker(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(1)
		defer p.Shutdown(true)

		var leaves atomic.Int64
		total, err := forkjoin.Orchestrate(p, fanout(&leaves, 2, 3))
		require.NoError(t, err)
		assert.Equal(t, 8, total)
	})
}

func TestChildErrorPropagates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(2)
		defer p.Shutdown(true)

		want := errors.New("leaf exploded")
		_, err := forkjoin.Orchestrate(p, func(t *forkjoin.Task[int]) (int, error) {
			t.Fork(func(*forkjoin.Task[int]) (int, error) { return 1, nil })
			t.Fork(func(*forkjoin.Task[int]) (int, error) { return 0, want })
			_, err := t.ChildResults()
			return 0, err
		})
		require.ErrorIs(t, err, want)
		assert.Contains(t, err.Error(), "child 1")
	})
}

func TestChildPanicPropagates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(2)
		defer p.Shutdown(true)

		_, err := forkjoin.Orchestrate(p, func(t *forkjoin.Task[int]) (int, error) {
			t.Fork(func(*forkjoin.Task[int]) (int, error) { panic("child panic value") })
			_, err := t.ChildResults()
			return 0, err
		})

		var taskErr *pool.TaskError
		require.ErrorAs(t, err, &taskErr)
		assert.Equal(t, "child panic value", taskErr.Recovered)
	})
}

func TestCancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(1)
		defer p.Shutdown(true)

		ctx, cancel := forkjoin.Cancel(t.Context())

		var started atomic.Int64
		_, err := forkjoin.OrchestrateContext(ctx, p, func(t *forkjoin.Task[int]) (int, error) {
			// With one worker, children only start after this task detaches
			// in ChildResults; by then the computation is canceled.
			for range 5 {
				t.Fork(func(*forkjoin.Task[int]) (int, error) {
					started.Add(1)
					return 1, nil
				})
			}
			cancel()
			_, err := t.ChildResults()
			return 0, err
		})

		require.ErrorIs(t, err, forkjoin.ErrCanceled)
		assert.EqualValues(t, 0, started.Load(), "children must not compute after cancellation")
	})
}

func TestNoChildren(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(1)
		defer p.Shutdown(true)

		got, err := forkjoin.Orchestrate(p, func(t *forkjoin.Task[string]) (string, error) {
			results, err := t.ChildResults()
			if err != nil {
				return "", err
			}
			return strings.Join(results, ","), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})
}

/*
Package pipeline provides chained parallel operations over slices.

[From] partitions a source slice once into an internal parallel structure.
Every chained operation transforms the partitions in place through the
fork/join executor without rebuilding them, and a terminal operation tears
the structure down into a plain slice, scalar, or map. Amortizing the
build/teardown across the whole chain is what makes a long chain cheaper
than independently parallelizing each step.

Functions passed to pipeline operations must be pure and stateless: the
runtime may invoke them zero, one, or several times per element, in
undefined order across partitions.
*/
package pipeline

import (
	"errors"
	"math"
	"runtime"
	"slices"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/tandem-go/tandem/forkjoin"
	"github.com/tandem-go/tandem/pool"
)

// ErrEmpty is returned by reducing terminals of a pipeline with no elements.
var ErrEmpty = errors.New("pipeline: no elements")

// Pipeline is the partitioned intermediate representation of a collection.
// It is exclusively owned by the operation chain that created it; the source
// slice is never mutated.
type Pipeline[T any] struct {
	pool  *pool.Pool
	parts [][]T
	err   error
}

// From builds the parallel structure for src on p. The number of partitions
// follows the pool's concurrency limit.
func From[T any](p *pool.Pool, src []T) *Pipeline[T] {
	return &Pipeline[T]{pool: p, parts: partition(src, partitionCount(p, len(src)))}
}

func partitionCount(p *pool.Pool, n int) int {
	limit := p.Workers()
	if limit == math.MaxInt {
		limit = runtime.GOMAXPROCS(0)
	}
	return max(1, min(n, limit))
}

// partition splits src into at most k contiguous chunks of near-equal size.
// Empty chunks are dropped, so every returned partition is non-empty.
func partition[T any](src []T, k int) [][]T {
	if len(src) == 0 {
		return nil
	}
	parts := make([][]T, 0, k)
	size, rem := len(src)/k, len(src)%k
	i := 0
	for p := range k {
		n := size
		if p < rem {
			n++
		}
		if n == 0 {
			continue
		}
		parts = append(parts, src[i:i+n:i+n])
		i += n
	}
	return parts
}

// perPart applies fn to every partition as one fork/join child per partition
// and returns the per-partition results in partition order.
func perPart[T, R any](pl *Pipeline[T], fn func(int, []T) R) ([]R, error) {
	if pl.err != nil {
		return nil, pl.err
	}
	if len(pl.parts) == 0 {
		return nil, nil
	}
	return forkjoin.Orchestrate(pl.pool, func(t *forkjoin.Task[[]R]) ([]R, error) {
		for i, part := range pl.parts {
			t.Fork(func(*forkjoin.Task[[]R]) ([]R, error) {
				return []R{fn(i, part)}, nil
			})
		}
		nested, err := t.ChildResults()
		if err != nil {
			return nil, err
		}
		out := make([]R, len(nested))
		for i, n := range nested {
			out[i] = n[0]
		}
		return out, nil
	})
}

func next[T, U any](pl *Pipeline[T], parts [][]U, err error) *Pipeline[U] {
	return &Pipeline[U]{pool: pl.pool, parts: parts, err: err}
}

// Map transforms every element through fn in parallel.
func Map[T, U any](pl *Pipeline[T], fn func(T) U) *Pipeline[U] {
	parts, err := perPart(pl, func(_ int, part []T) []U {
		out := make([]U, len(part))
		for i, v := range part {
			out[i] = fn(v)
		}
		return out
	})
	return next(pl, parts, err)
}

// FlatMap transforms every element into zero or more elements in parallel.
func FlatMap[T, U any](pl *Pipeline[T], fn func(T) []U) *Pipeline[U] {
	parts, err := perPart(pl, func(_ int, part []T) []U {
		var out []U
		for _, v := range part {
			out = append(out, fn(v)...)
		}
		return out
	})
	return next(pl, parts, err)
}

// Filter keeps the elements for which pred is true, preserving order within
// the structure.
func (pl *Pipeline[T]) Filter(pred func(T) bool) *Pipeline[T] {
	parts, err := perPart(pl, func(_ int, part []T) []T {
		out := make([]T, 0, len(part))
		for _, v := range part {
			if pred(v) {
				out = append(out, v)
			}
		}
		return out
	})
	return next(pl, parts, err)
}

// Distinct drops duplicate elements. The order of survivors is undefined.
func Distinct[T comparable](pl *Pipeline[T]) *Pipeline[T] {
	partials, err := perPart(pl, func(_ int, part []T) mapset.Set[T] {
		return mapset.NewThreadUnsafeSet(part...)
	})
	if err != nil {
		return next[T, T](pl, nil, err)
	}
	union := mapset.NewThreadUnsafeSet[T]()
	for _, s := range partials {
		union = union.Union(s)
	}
	out := union.ToSlice()
	return next(pl, partition(out, partitionCount(pl.pool, len(out))), nil)
}

// Sort rebuilds the structure in the order defined by less: each partition
// is sorted in parallel, then merged. The resulting pipeline (and its
// terminal Collection) is fully ordered.
func (pl *Pipeline[T]) Sort(less func(a, b T) bool) *Pipeline[T] {
	sorted, err := perPart(pl, func(_ int, part []T) []T {
		out := slices.Clone(part)
		slices.SortStableFunc(out, func(a, b T) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			default:
				return 0
			}
		})
		return out
	})
	if err != nil {
		return next[T, T](pl, nil, err)
	}
	merged := mergeSorted(sorted, less)
	return next(pl, partition(merged, partitionCount(pl.pool, len(merged))), nil)
}

// mergeSorted folds k sorted runs into one with successive two-way merges.
func mergeSorted[T any](runs [][]T, less func(a, b T) bool) []T {
	for len(runs) > 1 {
		merged := make([][]T, 0, (len(runs)+1)/2)
		for i := 0; i < len(runs); i += 2 {
			if i+1 == len(runs) {
				merged = append(merged, runs[i])
				break
			}
			merged = append(merged, mergeTwo(runs[i], runs[i+1], less))
		}
		runs = merged
	}
	if len(runs) == 0 {
		return nil
	}
	return runs[0]
}

func mergeTwo[T any](a, b []T, less func(x, y T) bool) []T {
	out := make([]T, 0, len(a)+len(b))
	for len(a) > 0 && len(b) > 0 {
		if less(b[0], a[0]) {
			out = append(out, b[0])
			b = b[1:]
		} else {
			out = append(out, a[0])
			a = a[1:]
		}
	}
	return append(append(out, a...), b...)
}

// Collection tears the structure down into a plain slice. Element order
// matches the source order as transformed by the chain, except after
// [Distinct], and is fully sorted after [Pipeline.Sort].
func (pl *Pipeline[T]) Collection() ([]T, error) {
	if pl.err != nil {
		return nil, pl.err
	}
	return lo.Flatten(pl.parts), nil
}

// Values is an alias for [Pipeline.Collection].
func (pl *Pipeline[T]) Values() ([]T, error) {
	return pl.Collection()
}

// Reduce folds all elements through fn, which must be associative; the
// pairing of partial results across partitions is undefined. It returns
// [ErrEmpty] for a pipeline with no elements.
func (pl *Pipeline[T]) Reduce(fn func(T, T) T) (T, error) {
	partials, err := perPart(pl, func(_ int, part []T) T {
		acc := part[0]
		for _, v := range part[1:] {
			acc = fn(acc, v)
		}
		return acc
	})
	var zero T
	if err != nil {
		return zero, err
	}
	if len(partials) == 0 {
		return zero, ErrEmpty
	}
	acc := partials[0]
	for _, v := range partials[1:] {
		acc = fn(acc, v)
	}
	return acc, nil
}

// Number constrains the element types accepted by [Sum].
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Sum adds all elements in parallel. An empty pipeline sums to zero.
func Sum[T Number](pl *Pipeline[T]) (T, error) {
	partials, err := perPart(pl, func(_ int, part []T) T {
		var sum T
		for _, v := range part {
			sum += v
		}
		return sum
	})
	var total T
	if err != nil {
		return total, err
	}
	for _, s := range partials {
		total += s
	}
	return total, nil
}

// MinBy returns the minimum element under less, or [ErrEmpty].
func (pl *Pipeline[T]) MinBy(less func(a, b T) bool) (T, error) {
	partials, err := perPart(pl, func(_ int, part []T) T {
		return lo.MinBy(part, less)
	})
	var zero T
	if err != nil {
		return zero, err
	}
	if len(partials) == 0 {
		return zero, ErrEmpty
	}
	return lo.MinBy(partials, less), nil
}

// MaxBy returns the maximum element under less, or [ErrEmpty].
func (pl *Pipeline[T]) MaxBy(less func(a, b T) bool) (T, error) {
	return pl.MinBy(func(a, b T) bool { return less(b, a) })
}

// Any reports whether pred holds for at least one element. Partitions stop
// scanning as soon as any of them finds a match.
func (pl *Pipeline[T]) Any(pred func(T) bool) (bool, error) {
	var found atomic.Bool
	_, err := perPart(pl, func(_ int, part []T) struct{} {
		for _, v := range part {
			if found.Load() {
				break
			}
			if pred(v) {
				found.Store(true)
				break
			}
		}
		return struct{}{}
	})
	return found.Load(), err
}

// Every reports whether pred holds for all elements. Partitions stop
// scanning as soon as any of them finds a counterexample.
func (pl *Pipeline[T]) Every(pred func(T) bool) (bool, error) {
	var failed atomic.Bool
	_, err := perPart(pl, func(_ int, part []T) struct{} {
		for _, v := range part {
			if failed.Load() {
				break
			}
			if !pred(v) {
				failed.Store(true)
				break
			}
		}
		return struct{}{}
	})
	return !failed.Load(), err
}

// GroupBy collects the elements into a map keyed by key, preserving
// source order within each group.
func GroupBy[T any, K comparable](pl *Pipeline[T], key func(T) K) (map[K][]T, error) {
	locals, err := perPart(pl, func(_ int, part []T) map[K][]T {
		return lo.GroupBy(part, key)
	})
	if err != nil {
		return nil, err
	}
	merged := make(map[K][]T)
	for _, local := range locals {
		for k, vs := range local {
			merged[k] = append(merged[k], vs...)
		}
	}
	return merged, nil
}

package pipeline

import (
	"fmt"
	"maps"

	"github.com/mitchellh/copystructure"
	"github.com/samber/lo"
)

// Pair is one key/value element of a [Combine] input.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Combine folds a pipeline of key/value pairs into a map from each distinct
// key to an accumulated value: for each key, all of its values are folded
// through acc, seeded by a fresh deep copy of initial. The order in which a
// key's values reach acc is unspecified, since folding is spread across
// partitions.
//
// initial must be an immutable value or one with a well-defined copy: the
// runtime instantiates one seed per distinct key, and aliasing a shared
// mutable seed across keys would corrupt results. A value the copier cannot
// handle fails the whole operation rather than silently sharing state; supply
// a factory via [CombineSeed] for accumulators without a well-defined copy.
func Combine[K comparable, V, A any](pl *Pipeline[Pair[K, V]], initial A, acc func(A, V) A) (map[K]A, error) {
	return combineSeeded(pl, func() (A, error) {
		c, err := copystructure.Copy(initial)
		if err != nil {
			var zero A
			return zero, fmt.Errorf("pipeline: combine seed is not copyable: %w", err)
		}
		return c.(A), nil
	}, acc)
}

// CombineSeed is [Combine] with an explicit seed factory, invoked once per
// distinct key.
func CombineSeed[K comparable, V, A any](pl *Pipeline[Pair[K, V]], seed func() A, acc func(A, V) A) (map[K]A, error) {
	return combineSeeded(pl, func() (A, error) { return seed(), nil }, acc)
}

func combineSeeded[K comparable, V, A any](pl *Pipeline[Pair[K, V]], seed func() (A, error), acc func(A, V) A) (map[K]A, error) {
	// First pass: group each partition's values by key, then merge the
	// per-partition groupings.
	locals, err := perPart(pl, func(_ int, part []Pair[K, V]) map[K][]V {
		local := make(map[K][]V)
		for _, p := range part {
			local[p.Key] = append(local[p.Key], p.Value)
		}
		return local
	})
	if err != nil {
		return nil, err
	}
	grouped := make(map[K][]V)
	for _, local := range locals {
		for k, vs := range local {
			grouped[k] = append(grouped[k], vs...)
		}
	}
	if len(grouped) == 0 {
		return map[K]A{}, nil
	}

	// Second pass: fold each key's values with a fresh seed, spreading the
	// distinct keys across partitions.
	type partial struct {
		m   map[K]A
		err error
	}
	keys := lo.Keys(grouped)
	kp := &Pipeline[K]{pool: pl.pool, parts: partition(keys, partitionCount(pl.pool, len(keys)))}
	partials, err := perPart(kp, func(_ int, ks []K) partial {
		m := make(map[K]A, len(ks))
		for _, k := range ks {
			a, err := seed()
			if err != nil {
				return partial{err: err}
			}
			for _, v := range grouped[k] {
				a = acc(a, v)
			}
			m[k] = a
		}
		return partial{m: m}
	})
	if err != nil {
		return nil, err
	}

	out := make(map[K]A, len(grouped))
	for _, p := range partials {
		if p.err != nil {
			return nil, p.err
		}
		maps.Copy(out, p.m)
	}
	return out, nil
}

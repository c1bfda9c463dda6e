package pipeline_test

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"testing/synctest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-go/tandem/pipeline"
	"github.com/tandem-go/tandem/pool"
)

func ExamplePipeline_Filter() {
	pool.With(4, func(p *pool.Pool) {
		squares, _ := pipeline.Map(
			pipeline.From(p, []int{1, 2, 3, 4, 5, 6}).Filter(func(n int) bool { return n%2 == 0 }),
			func(n int) int { return n * n },
		).Collection()
		fmt.Println(squares)
	})
	// Output: [4 16 36]
}

func withPool(t *testing.T, fn func(p *pool.Pool)) {
	t.Helper()
	p := pool.New(4)
	defer p.Shutdown(true)
	fn(p)
}

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestFilterMapMatchesSequential(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			src := ints(1000)

			var want []int
			for _, n := range src {
				if n%2 == 0 {
					want = append(want, n*n)
				}
			}

			got, err := pipeline.Map(
				pipeline.From(p, src).Filter(func(n int) bool { return n%2 == 0 }),
				func(n int) int { return n * n },
			).Collection()
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(want, got))
		})
	})
}

func TestSourceIsNotMutated(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			src := []int{5, 3, 1, 4, 2}
			_, err := pipeline.From(p, src).Sort(func(a, b int) bool { return a < b }).Collection()
			require.NoError(t, err)
			assert.Equal(t, []int{5, 3, 1, 4, 2}, src)
		})
	})
}

func TestFlatMap(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			got, err := pipeline.FlatMap(
				pipeline.From(p, []string{"a b", "c", "d e f"}),
				func(s string) []string { return strings.Fields(s) },
			).Collection()
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)
		})
	})
}

func TestDistinct(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			got, err := pipeline.Distinct(pipeline.From(p, []int{1, 2, 2, 3, 1, 4, 4, 4})).Collection()
			require.NoError(t, err)
			assert.ElementsMatch(t, []int{1, 2, 3, 4}, got)
		})
	})
}

func TestSort(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			src := []int{9, 1, 8, 2, 7, 3, 6, 4, 5, 0, 9, 1}
			got, err := pipeline.From(p, src).Sort(func(a, b int) bool { return a < b }).Collection()
			require.NoError(t, err)

			want := slices.Clone(src)
			slices.Sort(want)
			assert.Equal(t, want, got)
		})
	})
}

func TestReduce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			got, err := pipeline.From(p, ints(100)).Reduce(func(a, b int) int { return a + b })
			require.NoError(t, err)
			assert.Equal(t, 5050, got)

			_, err = pipeline.From(p, []int(nil)).Reduce(func(a, b int) int { return a + b })
			assert.ErrorIs(t, err, pipeline.ErrEmpty)
		})
	})
}

func TestSum(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			got, err := pipeline.Sum(pipeline.From(p, ints(100)))
			require.NoError(t, err)
			assert.Equal(t, 5050, got)

			zero, err := pipeline.Sum(pipeline.From(p, []float64(nil)))
			require.NoError(t, err)
			assert.Zero(t, zero)
		})
	})
}

func TestMinByMaxBy(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			src := []string{"pear", "fig", "banana", "kiwi"}
			byLen := func(a, b string) bool { return len(a) < len(b) }

			shortest, err := pipeline.From(p, src).MinBy(byLen)
			require.NoError(t, err)
			assert.Equal(t, "fig", shortest)

			longest, err := pipeline.From(p, src).MaxBy(byLen)
			require.NoError(t, err)
			assert.Equal(t, "banana", longest)

			_, err = pipeline.From(p, []string(nil)).MinBy(byLen)
			assert.ErrorIs(t, err, pipeline.ErrEmpty)
		})
	})
}

func TestAnyEvery(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			pl := func() *pipeline.Pipeline[int] { return pipeline.From(p, ints(50)) }

			found, err := pl().Any(func(n int) bool { return n == 37 })
			require.NoError(t, err)
			assert.True(t, found)

			found, err = pl().Any(func(n int) bool { return n > 50 })
			require.NoError(t, err)
			assert.False(t, found)

			all, err := pl().Every(func(n int) bool { return n > 0 })
			require.NoError(t, err)
			assert.True(t, all)

			all, err = pl().Every(func(n int) bool { return n != 25 })
			require.NoError(t, err)
			assert.False(t, all)

			// Vacuous truth on emptiness.
			found, err = pipeline.From(p, []int(nil)).Any(func(int) bool { return true })
			require.NoError(t, err)
			assert.False(t, found)
			all, err = pipeline.From(p, []int(nil)).Every(func(int) bool { return false })
			require.NoError(t, err)
			assert.True(t, all)
		})
	})
}

func TestGroupBy(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			src := []string{"apple", "avocado", "banana", "blueberry", "cherry"}
			got, err := pipeline.GroupBy(pipeline.From(p, src), func(s string) byte { return s[0] })
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(map[byte][]string{
				'a': {"apple", "avocado"},
				'b': {"banana", "blueberry"},
				'c': {"cherry"},
			}, got))
		})
	})
}

func TestPanicInOperationFailsChain(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			_, err := pipeline.Map(pipeline.From(p, ints(10)), func(n int) int {
				if n == 7 {
					panic("element 7 is cursed")
				}
				return n
			}).Collection()

			var taskErr *pool.TaskError
			require.ErrorAs(t, err, &taskErr)
			assert.Equal(t, "element 7 is cursed", taskErr.Recovered)
		})
	})
}

func TestErrorStopsLaterStages(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		withPool(t, func(p *pool.Pool) {
			calls := 0
			_, err := pipeline.Map(pipeline.From(p, ints(10)), func(int) int {
				panic("early failure")
			}).Filter(func(int) bool {
				calls++
				return true
			}).Collection()

			require.Error(t, err)
			assert.Zero(t, calls, "stages after a failure must not run")
		})
	})
}

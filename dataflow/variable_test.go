package dataflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-go/tandem/dataflow"
	"github.com/tandem-go/tandem/pool"
)

func ExampleVariable() {
	v := dataflow.New[string]()
	go v.Bind("hello")
	fmt.Println(v.Get())
	// Output: hello
}

func TestBindReleasesAllReaders(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		v := dataflow.New[int]()

		const readers = 5
		var got atomic.Int32
		for range readers {
			go func() {
				if v.Get() == 42 {
					got.Add(1)
				}
			}()
		}

		synctest.Wait()
		assert.EqualValues(t, 0, got.Load(), "readers released before the bind")

		require.NoError(t, v.Bind(42))
		synctest.Wait()
		assert.EqualValues(t, readers, got.Load())
	})
}

func TestRebindFails(t *testing.T) {
	v := dataflow.New[string]()
	require.NoError(t, v.Bind("first"))

	assert.ErrorIs(t, v.Bind("second"), dataflow.ErrAlreadyBound)
	assert.Equal(t, "first", v.Get(), "the original value must be untouched")
}

func TestGetDetachedFreesWorker(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(1)
		defer p.Shutdown(true)

		v := dataflow.New[int]()

		// With a single worker, the reader can only see a value if waiting on
		// the variable gives its grant back to the pool for the writer.
		reader := pool.Submit(p, func(h *pool.Handle) (int, error) {
			return v.GetDetached(h), nil
		})
		writer := p.Go(func(*pool.Handle) error {
			return v.Bind(99)
		})

		got, err := reader.Wait()
		require.NoError(t, err)
		assert.Equal(t, 99, got)
		_, err = writer.Wait()
		assert.NoError(t, err)
	})
}

func TestGetDetachedAlreadyBound(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := pool.New(1)
		defer p.Shutdown(true)

		v := dataflow.New[int]()
		require.NoError(t, v.Bind(5))

		got, err := pool.Submit(p, func(h *pool.Handle) (int, error) {
			return v.GetDetached(h), nil
		}).Wait()
		require.NoError(t, err)
		assert.Equal(t, 5, got)
	})
}

func TestGetTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		v := dataflow.New[int]()

		_, err := v.GetTimeout(time.Second)
		assert.ErrorIs(t, err, dataflow.ErrUnbound)

		require.NoError(t, v.Bind(3))
		got, err := v.GetTimeout(time.Second)
		assert.NoError(t, err)
		assert.Equal(t, 3, got)
	})
}

func TestGetContext(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		v := dataflow.New[int]()

		cause := errors.New("caller gave up")
		ctx, cancel := context.WithCancelCause(t.Context())
		go cancel(cause)

		_, err := v.GetContext(ctx)
		assert.ErrorIs(t, err, cause)

		require.NoError(t, v.Bind(8))
		got, err := v.GetContext(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 8, got, "a bound variable is readable under a canceled context")
	})
}

func TestTryGetAndBound(t *testing.T) {
	v := dataflow.New[string]()

	assert.False(t, v.Bound())
	_, ok := v.TryGet()
	assert.False(t, ok)

	require.NoError(t, v.Bind("x"))
	assert.True(t, v.Bound())
	got, ok := v.TryGet()
	assert.True(t, ok)
	assert.Equal(t, "x", got)
}

func TestWhenBound(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		v := dataflow.New[int]()

		var sum atomic.Int64
		v.WhenBound(func(x int) { sum.Add(int64(x)) })

		synctest.Wait()
		assert.EqualValues(t, 0, sum.Load())

		require.NoError(t, v.Bind(10))
		v.WhenBound(func(x int) { sum.Add(int64(x)) }) // already bound

		synctest.Wait()
		assert.EqualValues(t, 20, sum.Load())
	})
}

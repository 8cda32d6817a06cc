package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSize(t *testing.T) {
	_, err := New[int](0, time.Minute)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestLoader_MissThenHit(t *testing.T) {
	c, err := New[[]float32](4, time.Minute)
	require.NoError(t, err)

	var loads atomic.Int32

	load := func(context.Context) ([]float32, error) {
		loads.Add(1)

		return []float32{1, 2}, nil
	}

	v, hit, err := c.Get(context.Background(), "phishing", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []float32{1, 2}, v)

	v, hit, err = c.Get(context.Background(), "phishing", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, int32(1), loads.Load())
}

func TestLoader_FailuresAreNotCached(t *testing.T) {
	c, err := New[int](4, time.Minute)
	require.NoError(t, err)

	boom := errors.New("provider down")
	calls := 0

	_, _, err = c.Get(context.Background(), "k", func(context.Context) (int, error) {
		calls++

		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.Get(context.Background(), "k", func(context.Context) (int, error) {
		calls++

		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestLoader_ConcurrentMissesShareLoad(t *testing.T) {
	c, err := New[int](4, time.Minute)
	require.NoError(t, err)

	var loads atomic.Int32

	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, _, getErr := c.Get(context.Background(), "same", load)
			assert.NoError(t, getErr)
			assert.Equal(t, 42, v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Late arrivals may miss the in-flight call and load again once it finished.
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
	assert.LessOrEqual(t, loads.Load(), int32(8))
}

func TestLoader_Expiry(t *testing.T) {
	c, err := New[string](4, 10*time.Millisecond)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "k", func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLoader_RemoveAndPurge(t *testing.T) {
	c, err := New[string](4, 0)
	require.NoError(t, err)

	for _, k := range []string{"a", "b"} {
		_, _, err = c.Get(context.Background(), k, func(context.Context) (string, error) { return k, nil })
		require.NoError(t, err)
	}

	c.Remove("a")
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

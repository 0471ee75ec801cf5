package threadcompat

import (
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-threadcompat/internal/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadLocal_isolation(t *testing.T) {
	var x ThreadLocal[int]
	require.NoError(t, x.Init())
	defer x.Destroy()

	assert.Zero(t, x.Get())
	x.Set(-1)

	const threads = 16
	var wg sync.WaitGroup
	wg.Add(threads)
	for i := range threads {
		go func() {
			defer wg.Done()
			assert.Zero(t, x.Get(), "unset slot must read as zero")
			for j := range 100 {
				x.Set(i*1000 + j)
				assert.Equal(t, i*1000+j, x.Get())
			}
			x.Clear()
			assert.Zero(t, x.Get())
		}()
	}
	wg.Wait()
	assert.Equal(t, -1, x.Get())
}

func TestThreadLocal_pointerZeroValue(t *testing.T) {
	x := new(ThreadLocal[*string])
	require.NoError(t, x.Init())
	defer x.Destroy()
	assert.Nil(t, x.Get())
	s := "value"
	x.Set(&s)
	assert.Same(t, &s, x.Get())
	x.Set(nil)
	assert.Nil(t, x.Get())
}

func TestThreadLocal_uninitialized(t *testing.T) {
	var x ThreadLocal[string]
	requireUsagePanic(t, ErrThreadLocalUninitialized, func() { x.Get() })
	requireUsagePanic(t, ErrThreadLocalUninitialized, func() { x.Set("a") })
	require.NoError(t, x.Init())
	x.Set("a")
	x.Destroy()
	requireUsagePanic(t, ErrThreadLocalUninitialized, x.Clear)

	// reinitializing starts from empty
	require.NoError(t, x.Init())
	defer x.Destroy()
	assert.Empty(t, x.Get())
}

func TestThreadLocal_releasedOnThreadExit(t *testing.T) {
	var x ThreadLocal[[]byte]
	require.NoError(t, x.Init())
	defer x.Destroy()

	ids := make(chan uint64, 1)
	require.NoError(t, Spawn(func(any) {
		x.Set(make([]byte, 64))
		ids <- goid.Get()
		Exit()
	}, nil))
	id := <-ids

	require.Eventually(t, func() bool {
		_, ok := x.values.Load(id)
		return !ok
	}, 5*time.Second, time.Millisecond)
}

func BenchmarkThreadLocal_Get(b *testing.B) {
	var x ThreadLocal[int]
	require.NoError(b, x.Init())
	defer x.Destroy()
	x.Set(1)
	var v int
	for b.Loop() {
		v += x.Get()
	}
	_ = v
}

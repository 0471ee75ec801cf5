package threadcompat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var counterBackends = []struct {
	name     string
	caps     Capability
	lockFree bool
}{
	{"native", CapNativeAtomics, true},
	{"mutex", 0, false},
}

func TestAtomicCounter_concurrentAddSub(t *testing.T) {
	for _, tc := range counterBackends {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewAtomicCounter(WithCapabilities(tc.caps))
			require.NoError(t, err)
			defer c.Destroy()
			assert.Equal(t, tc.lockFree, c.LockFree())
			assert.Zero(t, c.Get())

			const threads = 8
			const iterations = 1000
			var g errgroup.Group
			for i := range threads {
				g.Go(func() error {
					for range iterations {
						if i%2 == 0 {
							c.Add(3)
						} else {
							c.Sub(1)
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.Equal(t, uint(threads/2*iterations*3-threads/2*iterations), c.Get())
		})
	}
}

func TestAtomicCounter_exchange(t *testing.T) {
	for _, tc := range counterBackends {
		t.Run(tc.name, func(t *testing.T) {
			var c AtomicCounter
			require.NoError(t, c.Init(WithCapabilities(tc.caps)))
			defer c.Destroy()

			c.Add(7)
			assert.Equal(t, uint(7), c.Exchange(42))
			assert.Equal(t, uint(42), c.Get())

			// every value stored is observed by exactly one exchange
			var g errgroup.Group
			seen := make([]uint, 64)
			for i := range seen {
				g.Go(func() error {
					seen[i] = c.Exchange(uint(1000 + i))
					return nil
				})
			}
			require.NoError(t, g.Wait())
			values := map[uint]bool{c.Get(): true}
			for _, v := range seen {
				assert.False(t, values[v], "value %d observed twice", v)
				values[v] = true
			}
			assert.True(t, values[42])
			assert.Len(t, values, len(seen)+1)
		})
	}
}

func TestAtomicCounter_wraps(t *testing.T) {
	for _, tc := range counterBackends {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewAtomicCounter(WithCapabilities(tc.caps))
			require.NoError(t, err)
			defer c.Destroy()

			c.Sub(1)
			assert.Equal(t, uint(math.MaxUint), c.Get())
			c.Add(2)
			assert.Equal(t, uint(1), c.Get())
			c.Sub(0)
			c.Add(0)
			assert.Equal(t, uint(1), c.Get())
		})
	}
}

func TestAtomicCounter_reinit(t *testing.T) {
	var c AtomicCounter
	require.NoError(t, c.Init(WithCapabilities(0)))
	c.Add(5)
	c.Destroy()
	require.NoError(t, c.Init())
	assert.True(t, c.LockFree())
	assert.Zero(t, c.Get())
	_, err := NewAtomicCounter(WithMaxThreads(-1))
	assert.Error(t, err)
}

// BenchmarkAtomicCounter_Add shows the cost of the mutex fallback, where
// every Acquire and Release resolves the calling thread's ID.
func BenchmarkAtomicCounter_Add(b *testing.B) {
	for _, tc := range counterBackends {
		b.Run(tc.name, func(b *testing.B) {
			c, err := NewAtomicCounter(WithCapabilities(tc.caps))
			require.NoError(b, err)
			defer c.Destroy()
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					c.Add(1)
				}
			})
			b.StopTimer()
			assert.Equal(b, uint(b.N), c.Get())
		})
	}
}

func BenchmarkAtomicCounter_Get(b *testing.B) {
	for _, tc := range counterBackends {
		b.Run(tc.name, func(b *testing.B) {
			c, err := NewAtomicCounter(WithCapabilities(tc.caps))
			require.NoError(b, err)
			defer c.Destroy()
			var v uint
			for b.Loop() {
				v += c.Get()
			}
			_ = v
		})
	}
}

//go:build linux || darwin

package mainloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-threadcompat"
	"github.com/joeycumines/go-threadcompat/alertsock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const allAlertFlags = alertsock.NoEventfd2 | alertsock.NoEventfd | alertsock.NoPipe2 | alertsock.NoPipe | alertsock.NoSocketpair

// startLoop runs l in the background, shutting it down on cleanup.
func startLoop(t *testing.T, l *Loop) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- l.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		s := l.State()
		return s == StateRunning || s == StateSleeping
	}, 5*time.Second, time.Millisecond)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	})
	return result
}

func TestLoop_wake(t *testing.T) {
	for _, backend := range []alertsock.Flags{
		alertsock.NoEventfd2,
		alertsock.NoEventfd,
		alertsock.NoPipe2,
		alertsock.NoPipe,
		alertsock.NoSocketpair,
	} {
		t.Run(backend.String(), func(t *testing.T) {
			wakes := make(chan struct{}, 16)
			l, err := New(
				WithAlertFlags(allAlertFlags&^backend),
				WithOnWake(func() { wakes <- struct{}{} }),
			)
			if errors.Is(err, alertsock.ErrNoBackend) {
				t.Skipf("%s unsupported: %v", backend, err)
			}
			require.NoError(t, err)
			startLoop(t, l)

			for range 3 {
				require.NoError(t, l.Wake())
				select {
				case <-wakes:
				case <-time.After(5 * time.Second):
					t.Fatal("wake not delivered")
				}
			}
			assert.Equal(t, uint64(3), l.Wakeups())
		})
	}
}

func TestLoop_wakeBeforeRun(t *testing.T) {
	woken := make(chan struct{})
	l, err := New(WithOnWake(func() { close(woken) }))
	require.NoError(t, err)
	require.NoError(t, l.Wake())
	require.NoError(t, l.Wake())
	startLoop(t, l)
	select {
	case <-woken:
	case <-time.After(5 * time.Second):
		t.Fatal("pending wake lost")
	}
}

// TestLoop_workers is the intended use: threads publish under a mutex and
// wake the loop, which consumes everything published.
func TestLoop_workers(t *testing.T) {
	const workers = 8
	const perWorker = 100

	mu := threadcompat.NewNonRecursiveMutex()
	var published []int
	var consumed atomic.Int64
	var running threadcompat.AtomicCounter
	require.NoError(t, running.Init())
	defer running.Destroy()

	var inLoop atomic.Bool
	var l *Loop
	l, err := New(WithOnWake(func() {
		inLoop.Store(l.InLoopThread())
		mu.Acquire()
		batch := published
		published = nil
		mu.Release()
		consumed.Add(int64(len(batch)))
	}))
	require.NoError(t, err)
	startLoop(t, l)

	for w := range workers {
		running.Add(1)
		require.NoError(t, threadcompat.Spawn(func(data any) {
			defer running.Sub(1)
			base := data.(int)
			for i := range perWorker {
				mu.Acquire()
				published = append(published, base+i)
				mu.Release()
				if err := l.Wake(); err != nil {
					t.Error(err)
				}
			}
		}, w*perWorker))
	}

	require.Eventually(t, func() bool {
		return consumed.Load() == workers*perWorker
	}, 10*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return running.Get() == 0 }, 5*time.Second, time.Millisecond)
	assert.True(t, inLoop.Load())
	assert.False(t, l.InLoopThread())
	assert.LessOrEqual(t, l.Wakeups(), uint64(workers*perWorker))
}

func TestLoop_shutdown(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	result := startLoop(t, l)

	require.NoError(t, l.Shutdown(context.Background()))
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateTerminated, l.State())
	assert.ErrorIs(t, l.Wake(), ErrTerminated)
	assert.ErrorIs(t, l.Shutdown(context.Background()), ErrTerminated)
	assert.ErrorIs(t, l.Run(context.Background()), ErrTerminated)
}

func TestLoop_drainFailureTerminates(t *testing.T) {
	var woken atomic.Bool
	l, err := New(WithOnWake(func() { woken.Store(true) }))
	require.NoError(t, err)
	broken := errors.New("broken alert pair")
	var drains atomic.Int32
	l.drain = func() error {
		drains.Add(1)
		return broken
	}
	result := startLoop(t, l)

	require.NoError(t, l.Wake())
	select {
	case err := <-result:
		assert.ErrorIs(t, err, broken)
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept going after a failed drain")
	}
	assert.Equal(t, StateTerminated, l.State())
	assert.Equal(t, int32(1), drains.Load(), "must not spin on a broken fd")
	assert.False(t, l.wakePending.Load(), "wake flag left set")
	assert.False(t, woken.Load())
	assert.ErrorIs(t, l.Wake(), ErrTerminated)
}

func TestLoop_shutdownBeforeRun(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	assert.Equal(t, StateAwake, l.State())
	require.NoError(t, l.Shutdown(context.Background()))
	assert.Equal(t, StateTerminated, l.State())
	assert.ErrorIs(t, l.Run(context.Background()), ErrTerminated)
	assert.ErrorIs(t, l.alerts.Alert(), alertsock.ErrClosed)
}

func TestLoop_contextCancel(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- l.Run(ctx) }()
	require.Eventually(t, func() bool { return l.State() == StateSleeping }, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
	assert.Equal(t, StateTerminated, l.State())
}

func TestLoop_runTwice(t *testing.T) {
	reentrant := make(chan error, 1)
	var l *Loop
	l, err := New(WithOnWake(func() {
		reentrant <- l.Run(context.Background())
	}))
	require.NoError(t, err)
	startLoop(t, l)

	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
	require.NoError(t, l.Wake())
	select {
	case err := <-reentrant:
		assert.ErrorIs(t, err, ErrReentrantRun)
	case <-time.After(5 * time.Second):
		t.Fatal("wake not delivered")
	}
}

func TestLoop_registerFD(t *testing.T) {
	l, err := New(WithPollTimeout(50 * time.Millisecond))
	require.NoError(t, err)

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	readable := make(chan IOEvents, 1)
	require.NoError(t, l.RegisterFD(fds[0], EventRead, func(events IOEvents) {
		var buf [8]byte
		_, _ = unix.Read(fds[0], buf[:])
		select {
		case readable <- events:
		default:
		}
	}))
	assert.Error(t, l.UnregisterFD(l.alerts.ReadFD()))

	startLoop(t, l)
	_, err = unix.Write(fds[1], []byte{1})
	require.NoError(t, err)
	select {
	case events := <-readable:
		assert.NotZero(t, events&EventRead)
	case <-time.After(5 * time.Second):
		t.Fatal("fd readiness not delivered")
	}

	require.NoError(t, l.UnregisterFD(fds[0]))
}

func TestLoop_mainThread(t *testing.T) {
	inMain := make(chan bool, 1)
	l, err := New(
		WithMainThread(true),
		WithOnWake(func() { inMain <- threadcompat.InMainThread() }),
	)
	require.NoError(t, err)
	startLoop(t, l)

	require.NoError(t, l.Wake())
	select {
	case v := <-inMain:
		assert.True(t, v)
	case <-time.After(5 * time.Second):
		t.Fatal("wake not delivered")
	}
	assert.False(t, threadcompat.InMainThread())
	assert.ErrorIs(t, threadcompat.SetMainThread(), threadcompat.ErrMainThreadSet)
}

func TestOptions(t *testing.T) {
	_, err := New(WithPollTimeout(0))
	assert.Error(t, err)

	cfg, err := resolveLoopOptions([]Option{nil})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), cfg.pollTimeout)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Sleeping", StateSleeping.String())
	assert.Equal(t, "Unknown", State(42).String())
}

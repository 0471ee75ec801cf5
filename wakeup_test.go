package threadcompat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWakeupEvent_units(t *testing.T) {
	e := newWakeupEvent()
	expired, stop := deadlineTimer(time.Now().Add(-time.Second))
	defer stop()

	assert.False(t, e.wait(expired))

	e.post(0)
	assert.Zero(t, e.pending())

	e.post(3)
	assert.Equal(t, uint(3), e.pending())
	for range 3 {
		// the expired channel only fires once, so units must be available
		// without it
		assert.True(t, e.wait(nil))
	}
	assert.Zero(t, e.pending())

	timeout, stop2 := deadlineTimer(time.Now().Add(10 * time.Millisecond))
	defer stop2()
	assert.False(t, e.wait(timeout))
}

func TestWakeupEvent_blockingWait(t *testing.T) {
	e := newWakeupEvent()
	done := make(chan bool, 2)
	for range 2 {
		go func() { done <- e.wait(nil) }()
	}
	time.Sleep(10 * time.Millisecond)
	e.post(2)
	for range 2 {
		select {
		case ok := <-done:
			assert.True(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("unit not delivered")
		}
	}
}

func TestDeadlineTimer(t *testing.T) {
	ch, stop := deadlineTimer(time.Time{})
	assert.Nil(t, ch)
	stop()

	ch, stop = deadlineTimer(time.Now().Add(-time.Minute))
	select {
	case <-ch:
	default:
		t.Fatal("past deadline must fire immediately")
	}
	stop()

	ch, stop = deadlineTimer(time.Now().Add(time.Hour))
	select {
	case <-ch:
		t.Fatal("future deadline fired")
	default:
	}
	stop()
}

package threadcompat

import (
	"container/list"
	"sync"
	"time"
)

type nativeCond struct {
	mu sync.Mutex
	// queue of *condWaiter, oldest at the front
	queue list.List
}

type condWaiter struct {
	ready chan struct{}
	elem  *list.Element
	// signaled is guarded by nativeCond.mu
	signaled bool
}

func newNativeCond() *nativeCond {
	return new(nativeCond)
}

func (c *nativeCond) wait(m *Mutex, deadline time.Time) WaitResult {
	w := &condWaiter{ready: make(chan struct{})}
	c.mu.Lock()
	w.elem = c.queue.PushBack(w)
	c.mu.Unlock()

	m.Release()

	timeout, stop := deadlineTimer(deadline)
	result := WaitWoken
	select {
	case <-w.ready:
	case <-timeout:
		c.mu.Lock()
		if !w.signaled {
			c.queue.Remove(w.elem)
			result = WaitTimedOut
		}
		c.mu.Unlock()
	}
	stop()

	m.Acquire()
	return result
}

func (c *nativeCond) signalOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if front := c.queue.Front(); front != nil {
		c.release(front)
	}
}

func (c *nativeCond) signalAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for front := c.queue.Front(); front != nil; front = c.queue.Front() {
		c.release(front)
	}
}

func (c *nativeCond) release(e *list.Element) {
	w := c.queue.Remove(e).(*condWaiter)
	w.signaled = true
	close(w.ready)
}

func (c *nativeCond) waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

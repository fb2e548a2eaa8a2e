// Package sleep implements channel-keyed parking of goroutines.
//
// A goroutine parks on an arbitrary comparable value (its "channel") while
// atomically giving up a lock, and stays parked until another goroutine calls
// UnparkAll with the same value. Every parked goroutine is resumed by a single
// UnparkAll, so callers must re-check their wait condition after waking.
package sleep

import (
	"context"
	"sync"
)

type waiter struct {
	woken chan struct{}
}

// Queue holds the set of goroutines parked on each channel value.
type Queue struct {
	lock    sync.Mutex
	waiters map[any][]*waiter
}

func NewQueue() *Queue {
	return &Queue{
		waiters: make(map[any][]*waiter),
	}
}

// Park releases l, suspends the calling goroutine until UnparkAll(channel) is
// called and reacquires l before returning.
//
// The caller is registered on channel before l is released, so a wakeup issued
// by a goroutine that acquired l after us cannot be missed.
//
// ctx represents the lifetime of the calling goroutine. If it is done while
// parked, the caller is removed from the wait set, l is reacquired and
// ctx.Err() is returned.
func (q *Queue) Park(ctx context.Context, channel any, l sync.Locker) error {
	w := &waiter{woken: make(chan struct{})}

	q.lock.Lock()
	q.waiters[channel] = append(q.waiters[channel], w)
	q.lock.Unlock()

	l.Unlock()
	defer l.Lock()

	select {
	case <-w.woken:
		return nil
	case <-ctx.Done():
	}

	if !q.remove(channel, w) {
		// UnparkAll got to us first. The wakeup is consumed, but since it
		// was broadcast to everybody nobody else depends on it.
		<-w.woken
	}

	return ctx.Err()
}

// UnparkAll resumes every goroutine parked on channel and returns their count.
func (q *Queue) UnparkAll(channel any) int {
	q.lock.Lock()
	ws := q.waiters[channel]
	delete(q.waiters, channel)
	q.lock.Unlock()

	for _, w := range ws {
		close(w.woken)
	}

	return len(ws)
}

// Parked returns the number of goroutines currently parked on channel.
func (q *Queue) Parked(channel any) int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.waiters[channel])
}

func (q *Queue) remove(channel any, w *waiter) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	ws := q.waiters[channel]
	for i, e := range ws {
		if e != w {
			continue
		}

		ws = append(ws[:i], ws[i+1:]...)
		if len(ws) == 0 {
			delete(q.waiters, channel)
		} else {
			q.waiters[channel] = ws
		}
		return true
	}

	return false
}

// Package buffer provides a single bounded ring buffer shared between
// producers and consumers which poll instead of blocking.
package buffer

import (
	"errors"
	"sync"
)

const DefaultSize = 10

var (
	ErrFull           = errors.New("buffer full")
	ErrEmpty          = errors.New("buffer empty")
	ErrNotInitialized = errors.New("buffer not initialized")
)

// Status is a consistent snapshot of the buffer's counters.
type Status struct {
	Count    int `json:"count"`
	Produced int `json:"produced"`
	Consumed int `json:"consumed"`
}

type Ring struct {
	lock        sync.Mutex
	items       []int32
	in, out     int
	count       int
	produced    int
	consumed    int
	initialized bool
}

func NewRing(size int) *Ring {
	if size <= 0 {
		panic("invalid size")
	}
	return &Ring{items: make([]int32, size)}
}

// Init empties the buffer, zeroes its totals and makes it usable.
// Calling it again resets the buffer.
func (r *Ring) Init() {
	r.lock.Lock()
	defer r.lock.Unlock()

	clear(r.items)
	r.in, r.out, r.count = 0, 0, 0
	r.produced, r.consumed = 0, 0
	r.initialized = true
}

func (r *Ring) Produce(item int32) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	switch {
	case !r.initialized:
		return ErrNotInitialized
	case r.count >= len(r.items):
		return ErrFull
	}

	r.items[r.in] = item
	r.in = (r.in + 1) % len(r.items)
	r.count++
	r.produced++
	return nil
}

func (r *Ring) Consume() (int32, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	switch {
	case !r.initialized:
		return 0, ErrNotInitialized
	case r.count <= 0:
		return 0, ErrEmpty
	}

	item := r.items[r.out]
	r.out = (r.out + 1) % len(r.items)
	r.count--
	r.consumed++
	return item, nil
}

func (r *Ring) Status() Status {
	r.lock.Lock()
	defer r.lock.Unlock()

	return Status{
		Count:    r.count,
		Produced: r.produced,
		Consumed: r.consumed,
	}
}

// Size returns the capacity of the buffer.
func (r *Ring) Size() int {
	return len(r.items)
}

package semaphore

import (
	"context"
	"errors"
)

// DefaultCapacity is the number of slots in a table unless configured otherwise.
const DefaultCapacity = 64

var (
	// ErrExhausted is returned by Create when every slot is allocated.
	ErrExhausted = errors.New("semaphore table exhausted")

	// ErrInvalidHandle is returned when a handle is out of range or refers to
	// a free slot. A destroyed semaphore and one that never existed look the same.
	ErrInvalidHandle = errors.New("invalid semaphore handle")
)

// Handle identifies a slot of a Table. It is the slot's index.
//
// Handles are reused after Destroy and carry no generation, so a handle kept
// past Destroy may address an unrelated semaphore created later.
type Handle int

// InvalidHandle is returned alongside errors from Create.
const InvalidHandle Handle = -1

// Interface is the semaphore service.
type Interface interface {
	// Create allocates the first free slot with the given start value.
	Create(value int) (Handle, error)

	// Wait blocks until the semaphore's value is positive and decrements it.
	// If ctx is done while blocked, ctx.Err() is returned and the value is
	// left untouched.
	Wait(ctx context.Context, h Handle) error

	// Signal increments the semaphore's value and wakes all of its waiters.
	Signal(h Handle) error

	// Destroy frees the slot. Goroutines blocked in Wait are not woken.
	Destroy(h Handle) error
}

// SlotState is a point-in-time view of a single slot.
type SlotState struct {
	Handle    Handle `json:"handle"`
	Allocated bool   `json:"allocated"`
	Value     int    `json:"value"`
	Waiters   int    `json:"waiters"`
}

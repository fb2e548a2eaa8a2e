package semaphore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lhecker/semd/sleep"
)

type slot struct {
	lock      sync.Mutex
	value     int
	allocated bool
}

// Table is a fixed-size arena of semaphores addressed by Handle.
// Every slot is locked on its own; no operation holds more than one slot lock.
type Table struct {
	slots  []slot
	sleep  *sleep.Queue
	logger *zap.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithSleepQueue makes the table park its waiters on q.
// Sharing a queue between tables is fine since channels are slot addresses.
func WithSleepQueue(q *sleep.Queue) Option {
	return func(t *Table) {
		if q != nil {
			t.sleep = q
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTable returns a table of capacity free slots.
func NewTable(capacity int, opts ...Option) *Table {
	if capacity <= 0 {
		panic("invalid capacity")
	}

	t := &Table{
		slots:  make([]slot, capacity),
		sleep:  sleep.NewQueue(),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

func (t *Table) Create(value int) (Handle, error) {
	for i := range t.slots {
		s := &t.slots[i]

		s.lock.Lock()
		if !s.allocated {
			s.allocated = true
			s.value = value
			s.lock.Unlock()

			t.logger.Debug("semaphore created", zap.Int("handle", i), zap.Int("value", value))
			return Handle(i), nil
		}
		s.lock.Unlock()
	}

	t.logger.Warn("semaphore table exhausted", zap.Int("capacity", len(t.slots)))
	return InvalidHandle, ErrExhausted
}

func (t *Table) Wait(ctx context.Context, h Handle) error {
	s, err := t.slot(h)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.allocated {
		return ErrInvalidHandle
	}

	for s.value <= 0 {
		err := t.sleep.Park(ctx, s, &s.lock)
		if err != nil {
			return err
		}
	}

	s.value--
	return nil
}

func (t *Table) Signal(h Handle) error {
	s, err := t.slot(h)
	if err != nil {
		return err
	}

	s.lock.Lock()
	if !s.allocated {
		s.lock.Unlock()
		return ErrInvalidHandle
	}
	s.value++
	s.lock.Unlock()

	t.sleep.UnparkAll(s)
	return nil
}

func (t *Table) Destroy(h Handle) error {
	s, err := t.slot(h)
	if err != nil {
		return err
	}

	s.lock.Lock()
	if !s.allocated {
		s.lock.Unlock()
		return ErrInvalidHandle
	}
	s.allocated = false
	s.value = 0
	s.lock.Unlock()

	if n := t.sleep.Parked(s); n != 0 {
		t.logger.Warn("semaphore destroyed with parked waiters", zap.Int("handle", int(h)), zap.Int("waiters", n))
	} else {
		t.logger.Debug("semaphore destroyed", zap.Int("handle", int(h)))
	}
	return nil
}

// Value returns the current value of an allocated semaphore.
func (t *Table) Value(h Handle) (int, error) {
	s, err := t.slot(h)
	if err != nil {
		return 0, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.allocated {
		return 0, ErrInvalidHandle
	}
	return s.value, nil
}

// Waiters returns the number of goroutines parked on h, allocated or not.
func (t *Table) Waiters(h Handle) int {
	s, err := t.slot(h)
	if err != nil {
		return 0
	}
	return t.sleep.Parked(s)
}

// Snapshot returns the state of every slot. Slots are read one at a time,
// so the result is not an atomic view of the whole table.
func (t *Table) Snapshot() []SlotState {
	states := make([]SlotState, len(t.slots))

	for i := range t.slots {
		s := &t.slots[i]

		s.lock.Lock()
		states[i] = SlotState{
			Handle:    Handle(i),
			Allocated: s.allocated,
			Value:     s.value,
		}
		s.lock.Unlock()

		states[i].Waiters = t.sleep.Parked(s)
	}

	return states
}

func (t *Table) slot(h Handle) (*slot, error) {
	if h < 0 || int(h) >= len(t.slots) {
		return nil, ErrInvalidHandle
	}
	return &t.slots[h], nil
}

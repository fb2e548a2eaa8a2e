package semaphore

import (
	"context"
	"errors"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// InstrumentOption represents a configurable option for instrumenting a semaphore service
type InstrumentOption func(*instrumented)

// WithCreates establishes a counter of successful Create calls.
// If a nil counter is supplied, the counts are discarded.
func WithCreates(c metrics.Counter) InstrumentOption {
	return func(i *instrumented) {
		i.creates = counterOrDiscard(c)
	}
}

// WithDestroys establishes a counter of successful Destroy calls.
func WithDestroys(c metrics.Counter) InstrumentOption {
	return func(i *instrumented) {
		i.destroys = counterOrDiscard(c)
	}
}

// WithWaits establishes a counter of granted Wait calls.
func WithWaits(c metrics.Counter) InstrumentOption {
	return func(i *instrumented) {
		i.waits = counterOrDiscard(c)
	}
}

// WithSignals establishes a counter of successful Signal calls.
func WithSignals(c metrics.Counter) InstrumentOption {
	return func(i *instrumented) {
		i.signals = counterOrDiscard(c)
	}
}

// WithFailures establishes a counter of failed calls, labeled by "operation" and "reason".
func WithFailures(c metrics.Counter) InstrumentOption {
	return func(i *instrumented) {
		i.failures = counterOrDiscard(c)
	}
}

// WithWaiting establishes a gauge of the goroutines currently inside Wait.
func WithWaiting(g metrics.Gauge) InstrumentOption {
	return func(i *instrumented) {
		if g != nil {
			i.waiting = g
		} else {
			i.waiting = discard.NewGauge()
		}
	}
}

// Instrument decorates a semaphore service with metrics.
func Instrument(s Interface, o ...InstrumentOption) Interface {
	if s == nil {
		panic("a semaphore service is required")
	}

	i := &instrumented{
		Interface: s,
		creates:   discard.NewCounter(),
		destroys:  discard.NewCounter(),
		waits:     discard.NewCounter(),
		signals:   discard.NewCounter(),
		failures:  discard.NewCounter(),
		waiting:   discard.NewGauge(),
	}

	for _, f := range o {
		f(i)
	}

	return i
}

type instrumented struct {
	Interface
	creates  metrics.Counter
	destroys metrics.Counter
	waits    metrics.Counter
	signals  metrics.Counter
	failures metrics.Counter
	waiting  metrics.Gauge
}

func (i *instrumented) Create(value int) (Handle, error) {
	h, err := i.Interface.Create(value)
	if err != nil {
		i.fail("create", err)
	} else {
		i.creates.Add(1.0)
	}

	return h, err
}

func (i *instrumented) Wait(ctx context.Context, h Handle) error {
	i.waiting.Add(1.0)
	err := i.Interface.Wait(ctx, h)
	i.waiting.Add(-1.0)

	if err != nil {
		i.fail("wait", err)
	} else {
		i.waits.Add(1.0)
	}

	return err
}

func (i *instrumented) Signal(h Handle) error {
	err := i.Interface.Signal(h)
	if err != nil {
		i.fail("signal", err)
	} else {
		i.signals.Add(1.0)
	}

	return err
}

func (i *instrumented) Destroy(h Handle) error {
	err := i.Interface.Destroy(h)
	if err != nil {
		i.fail("destroy", err)
	} else {
		i.destroys.Add(1.0)
	}

	return err
}

func (i *instrumented) fail(operation string, err error) {
	i.failures.With("operation", operation, "reason", reason(err)).Add(1.0)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidHandle):
		return "invalid_handle"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

func counterOrDiscard(c metrics.Counter) metrics.Counter {
	if c != nil {
		return c
	}
	return discard.NewCounter()
}

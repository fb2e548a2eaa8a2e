package programs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lhecker/semd/syscalls"
)

const (
	prodConsSlots = 5
	prodConsItems = 10
)

var errSemaphore = errors.New("semaphore operation failed")

// ProdCons runs a producer and a consumer process over a shared ring guarded by
// three semaphores: a mutex, the number of empty slots and the number of full slots.
func ProdCons(ctx context.Context, k *syscalls.Kernel, logger *zap.Logger) error {
	var ids pids
	parent := syscalls.NewProc(ctx, ids.next(), memSize)

	mutex := k.Syscall(parent, syscalls.SysSemInit, 1)
	empty := k.Syscall(parent, syscalls.SysSemInit, prodConsSlots)
	full := k.Syscall(parent, syscalls.SysSemInit, 0)
	defer func() {
		for _, h := range []int64{mutex, empty, full} {
			if h >= 0 {
				k.Syscall(parent, syscalls.SysSemDestroy, h)
			}
		}
	}()

	if mutex < 0 || empty < 0 || full < 0 {
		return errors.New("failed to initialize semaphores")
	}
	logger.Info("semaphores initialized", zap.Int64("mutex", mutex), zap.Int64("empty", empty), zap.Int64("full", full))

	var (
		ring     [prodConsSlots]int
		in, out  int
		consumed = make([]int, 0, prodConsItems)
	)

	eg, ctx := errgroup.WithContext(ctx)
	producer := syscalls.NewProc(ctx, ids.next(), memSize)
	consumer := syscalls.NewProc(ctx, ids.next(), memSize)

	// Both loops fail as soon as a wait fails: a failed wait means the
	// semaphore is gone or the other process died and cancelled ctx.
	eg.Go(func() error {
		for i := 0; i < prodConsItems; i++ {
			if k.Syscall(producer, syscalls.SysSemWait, empty) < 0 || k.Syscall(producer, syscalls.SysSemWait, mutex) < 0 {
				return fmt.Errorf("producer: %w", errSemaphore)
			}

			ring[in] = i
			in = (in + 1) % prodConsSlots
			logger.Debug("produced", zap.Int("pid", producer.PID), zap.Int("item", i))

			k.Syscall(producer, syscalls.SysSemPost, mutex)
			k.Syscall(producer, syscalls.SysSemPost, full)
		}
		return nil
	})

	eg.Go(func() error {
		for i := 0; i < prodConsItems; i++ {
			if k.Syscall(consumer, syscalls.SysSemWait, full) < 0 || k.Syscall(consumer, syscalls.SysSemWait, mutex) < 0 {
				return fmt.Errorf("consumer: %w", errSemaphore)
			}

			item := ring[out]
			out = (out + 1) % prodConsSlots
			consumed = append(consumed, item)
			logger.Debug("consumed", zap.Int("pid", consumer.PID), zap.Int("item", item))

			k.Syscall(consumer, syscalls.SysSemPost, mutex)
			k.Syscall(consumer, syscalls.SysSemPost, empty)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	for i, item := range consumed {
		if item != i {
			return fmt.Errorf("consumed item %d out of order: got %d", i, item)
		}
	}

	logger.Info("producer-consumer completed", zap.Int("items", len(consumed)))
	return nil
}

package programs

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lhecker/semd/syscalls"
)

// SemTest checks the basic semaphore calls from a single process.
func SemTest(ctx context.Context, k *syscalls.Kernel, logger *zap.Logger) error {
	var ids pids
	p := syscalls.NewProc(ctx, ids.next(), memSize)

	sems := make([]int64, 0, 3)
	for _, v := range []int64{1, 5, 0} {
		h := k.Syscall(p, syscalls.SysSemInit, v)
		if h < 0 {
			return errors.New("sem_init failed")
		}
		sems = append(sems, h)
	}
	logger.Info("created semaphores", zap.Int64s("handles", sems))

	if err := expect(k.Syscall(p, syscalls.SysSemWait, sems[0]), 0, "sem_wait(sem1)"); err != nil {
		return err
	}
	if err := expect(k.Syscall(p, syscalls.SysSemPost, sems[0]), 0, "sem_post(sem1)"); err != nil {
		return err
	}

	for i := 0; i < 3; i++ {
		if err := expect(k.Syscall(p, syscalls.SysSemWait, sems[1]), 0, "sem_wait(sem2)"); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ {
		if err := expect(k.Syscall(p, syscalls.SysSemPost, sems[1]), 0, "sem_post(sem2)"); err != nil {
			return err
		}
	}
	logger.Info("multiple wait/post on sem2 succeeded")

	for _, h := range sems {
		if err := expect(k.Syscall(p, syscalls.SysSemDestroy, h), 0, "sem_destroy"); err != nil {
			return err
		}
	}
	logger.Info("destroyed semaphores")

	if err := expect(k.Syscall(p, syscalls.SysSemWait, sems[0]), -1, "sem_wait on destroyed semaphore"); err != nil {
		return err
	}
	if err := expect(k.Syscall(p, syscalls.SysSemDestroy, 99), -1, "sem_destroy on invalid semaphore"); err != nil {
		return err
	}
	logger.Info("invalid operations rejected")

	return nil
}

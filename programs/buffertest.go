package programs

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lhecker/semd/syscalls"
)

const (
	itemAddr   = 0
	statusAddr = 16
)

func bufferStatus(k *syscalls.Kernel, p *syscalls.Proc) (count, produced, consumed int32, err error) {
	if ret := k.Syscall(p, syscalls.SysBufferStatus, statusAddr, statusAddr+4, statusAddr+8); ret != 0 {
		return 0, 0, 0, fmt.Errorf("buffer_status failed: %d", ret)
	}

	var v [3]int32
	for i := range v {
		if v[i], err = p.Mem.ReadInt32(uint64(statusAddr + 4*i)); err != nil {
			return 0, 0, 0, err
		}
	}
	return v[0], v[1], v[2], nil
}

func expectStatus(k *syscalls.Kernel, p *syscalls.Proc, count, produced, consumed int32) error {
	c, pr, co, err := bufferStatus(k, p)
	if err != nil {
		return err
	}
	if c != count || pr != produced || co != consumed {
		return fmt.Errorf("buffer status: got (%d, %d, %d), want (%d, %d, %d)", c, pr, co, count, produced, consumed)
	}
	return nil
}

// BufferTest checks the polled bounded buffer, ending with a producer and a
// consumer process that retry on full and empty.
func BufferTest(ctx context.Context, k *syscalls.Kernel, logger *zap.Logger) error {
	var ids pids
	p := syscalls.NewProc(ctx, ids.next(), memSize)

	if err := expect(k.Syscall(p, syscalls.SysBufferInit), 0, "buffer_init"); err != nil {
		return err
	}

	for i := int64(1); i <= 5; i++ {
		if err := expect(k.Syscall(p, syscalls.SysProduce, i*10), 0, "produce"); err != nil {
			return err
		}
	}
	if err := expectStatus(k, p, 5, 5, 0); err != nil {
		return err
	}

	for i := int32(1); i <= 3; i++ {
		if err := expect(k.Syscall(p, syscalls.SysConsume, itemAddr), 0, "consume"); err != nil {
			return err
		}
		item, err := p.Mem.ReadInt32(itemAddr)
		if err != nil {
			return err
		}
		if item != i*10 {
			return fmt.Errorf("consumed %d, want %d", item, i*10)
		}
	}
	if err := expectStatus(k, p, 2, 5, 3); err != nil {
		return err
	}
	logger.Info("basic produce/consume passed")

	k.Syscall(p, syscalls.SysBufferInit)
	for i := int64(0); ; i++ {
		if ret := k.Syscall(p, syscalls.SysProduce, 100+i); ret != 0 {
			if err := expect(ret, -1, "produce on full buffer"); err != nil {
				return err
			}
			break
		}
	}
	drained := 0
	for k.Syscall(p, syscalls.SysConsume, itemAddr) == 0 {
		drained++
	}
	if err := expect(k.Syscall(p, syscalls.SysConsume, itemAddr), -1, "consume on empty buffer"); err != nil {
		return err
	}
	logger.Info("full and empty conditions detected", zap.Int("drained", drained))

	k.Syscall(p, syscalls.SysBufferInit)

	eg, ctx := errgroup.WithContext(ctx)
	producer := syscalls.NewProc(ctx, ids.next(), memSize)
	consumer := syscalls.NewProc(ctx, ids.next(), memSize)

	eg.Go(func() error {
		for i := int64(1); i <= 5; {
			switch ret := k.Syscall(producer, syscalls.SysProduce, i*100); ret {
			case 0:
				i++
			case -1:
				if err := ctx.Err(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("produce: %d", ret)
			}
		}
		return nil
	})

	eg.Go(func() error {
		for i := int32(1); i <= 5; {
			switch ret := k.Syscall(consumer, syscalls.SysConsume, itemAddr); ret {
			case 0:
				item, err := consumer.Mem.ReadInt32(itemAddr)
				if err != nil {
					return err
				}
				if item != i*100 {
					return fmt.Errorf("consumed %d, want %d", item, i*100)
				}
				i++
			case -1:
				if err := ctx.Err(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("consume: %d", ret)
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	if err := expectStatus(k, p, 0, 5, 5); err != nil {
		return err
	}
	logger.Info("multi-process producer-consumer passed")
	return nil
}

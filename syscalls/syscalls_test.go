package syscalls

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/tickets"
)

func newTestKernel(t *testing.T, capacity int) (*Kernel, *semaphore.Table, *tickets.Registry) {
	var (
		logger = zaptest.NewLogger(t)
		table  = semaphore.NewTable(capacity, semaphore.WithLogger(logger))
		reg    = tickets.NewRegistry()
	)

	return NewKernel(table, buffer.NewRing(buffer.DefaultSize), reg, WithLogger(logger)), table, reg
}

func TestNumberString(t *testing.T) {
	assert.Equal(t, "sem_wait", SysSemWait.String())
	assert.Equal(t, "syscall(99)", Number(99).String())
}

func TestUnknownSyscall(t *testing.T) {
	k, _, _ := newTestKernel(t, 1)
	p := NewProc(context.Background(), 1, 64)

	assert.Equal(t, int64(-1), k.Syscall(p, 1))
	assert.Equal(t, int64(-1), k.Syscall(p, 99, 1, 2, 3))
}

func TestSemaphoreCalls(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		k, _, _ = newTestKernel(t, 2)
		p       = NewProc(context.Background(), 1, 64)
	)

	assert.Equal(int64(0), k.Syscall(p, SysSemInit, 1))
	assert.Equal(int64(1), k.Syscall(p, SysSemInit, 0))
	assert.Equal(int64(-1), k.Syscall(p, SysSemInit, 5))

	assert.Equal(int64(0), k.Syscall(p, SysSemWait, 0))
	assert.Equal(int64(0), k.Syscall(p, SysSemPost, 0))
	assert.Equal(int64(0), k.Syscall(p, SysSemPost, 1))
	assert.Equal(int64(0), k.Syscall(p, SysSemWait, 1))

	for _, h := range []int64{-1, 2, 64, 1<<32 + 5} {
		assert.Equal(int64(-1), k.Syscall(p, SysSemWait, h))
		assert.Equal(int64(-1), k.Syscall(p, SysSemPost, h))
		assert.Equal(int64(-1), k.Syscall(p, SysSemDestroy, h))
	}

	require.Equal(int64(0), k.Syscall(p, SysSemDestroy, 1))
	assert.Equal(int64(-1), k.Syscall(p, SysSemDestroy, 1))
	assert.Equal(int64(-1), k.Syscall(p, SysSemPost, 1))
	assert.Equal(int64(1), k.Syscall(p, SysSemInit, 3))
}

func TestSemWaitKilled(t *testing.T) {
	var (
		assert      = assert.New(t)
		require     = require.New(t)
		k, table, _ = newTestKernel(t, 1)
		ctx, kill   = context.WithCancel(context.Background())
		p           = NewProc(ctx, 7, 64)
		result      = make(chan int64, 1)
	)

	h := k.Syscall(p, SysSemInit, 0)
	require.Equal(int64(0), h)

	go func() {
		result <- k.Syscall(p, SysSemWait, h)
	}()

	require.Eventually(func() bool {
		return table.Waiters(semaphore.Handle(h)) == 1
	}, 5*time.Second, time.Millisecond)

	kill()
	select {
	case ret := <-result:
		assert.Equal(int64(-1), ret)
	case <-time.After(5 * time.Second):
		require.FailNow("killed process stayed parked")
	}
}

func TestBufferCalls(t *testing.T) {
	var (
		assert  = assert.New(t)
		k, _, _ = newTestKernel(t, 1)
		p       = NewProc(context.Background(), 1, 64)
	)

	assert.Equal(int64(-2), k.Syscall(p, SysProduce, 1))
	assert.Equal(int64(-2), k.Syscall(p, SysConsume, 0))

	assert.Equal(int64(0), k.Syscall(p, SysBufferInit))
	assert.Equal(int64(-1), k.Syscall(p, SysConsume, 0))

	for i := int64(0); i < buffer.DefaultSize; i++ {
		assert.Equal(int64(0), k.Syscall(p, SysProduce, 100+i))
	}
	assert.Equal(int64(-1), k.Syscall(p, SysProduce, 1))

	assert.Equal(int64(0), k.Syscall(p, SysConsume, 8))
	item, err := p.Mem.ReadInt32(8)
	assert.NoError(err)
	assert.Equal(int32(100), item)

	// copy-out fault, item is lost
	assert.Equal(int64(-3), k.Syscall(p, SysConsume, 62))

	assert.Equal(int64(0), k.Syscall(p, SysBufferStatus, 0, 4, 8))
	for addr, expected := range map[uint64]int32{0: 8, 4: 10, 8: 2} {
		v, err := p.Mem.ReadInt32(addr)
		assert.NoError(err)
		assert.Equal(expected, v, "address %d", addr)
	}

	assert.Equal(int64(-1), k.Syscall(p, SysBufferStatus, 0, 4, 64))
}

func TestEncryptCalls(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		k, _, _ = newTestKernel(t, 1)
		p       = NewProc(context.Background(), 1, 8192)
		message = []byte("Hello, semaphores!")
		buf     = make([]byte, len(message))
		n       = int64(len(message))
	)

	require.NoError(p.Mem.CopyOut(100, message))

	assert.Equal(n, k.Syscall(p, SysEncrypt, 100, n))
	require.NoError(p.Mem.CopyIn(buf, 100))
	assert.NotEqual(message, buf)

	assert.Equal(n, k.Syscall(p, SysDecrypt, 100, n))
	require.NoError(p.Mem.CopyIn(buf, 100))
	assert.Equal(message, buf)

	assert.Equal(int64(-1), k.Syscall(p, SysEncrypt, 100, 0))
	assert.Equal(int64(-1), k.Syscall(p, SysEncrypt, 100, 4097))
	assert.Equal(int64(-1), k.Syscall(p, SysEncrypt, 8190, 10))
}

func TestSetticketsCall(t *testing.T) {
	var (
		assert    = assert.New(t)
		k, _, reg = newTestKernel(t, 1)
		p         = NewProc(context.Background(), 3, 64)
	)

	assert.Equal(int64(0), k.Syscall(p, SysSettickets, -10))
	assert.Equal(tickets.MinTickets, reg.Get(3))

	assert.Equal(int64(0), k.Syscall(p, SysSettickets, 50))
	assert.Equal(50, reg.Get(3))
}

func TestScheduleAndExit(t *testing.T) {
	var (
		assert  = assert.New(t)
		k, _, _ = newTestKernel(t, 1)
		p       = NewProc(context.Background(), 4, 64)
		rng     = rand.New(rand.NewPCG(3, 4))
	)

	_, ok := k.Schedule(rng)
	assert.False(ok)

	k.Syscall(p, SysSettickets, 7)
	assert.Equal(7, k.Tickets(p.PID))
	assert.Equal(7, k.TotalTickets())

	pid, ok := k.Schedule(rng)
	assert.True(ok)
	assert.Equal(p.PID, pid)

	k.Exit(p)
	assert.Equal(0, k.TotalTickets())
	assert.Equal(tickets.DefaultTickets, k.Tickets(p.PID))
}

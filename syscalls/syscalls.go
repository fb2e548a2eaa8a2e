// Package syscalls is the integer-only boundary between processes and the
// services. Every call returns a non-negative result on success and a
// negative code on failure; no error values cross this boundary.
package syscalls

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"

	"go.uber.org/zap"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/tickets"
	"github.com/lhecker/semd/usermem"
	"github.com/lhecker/semd/xorcipher"
)

type Number int

const (
	SysSettickets   Number = 22
	SysEncrypt      Number = 24
	SysDecrypt      Number = 25
	SysBufferInit   Number = 27
	SysProduce      Number = 28
	SysConsume      Number = 29
	SysBufferStatus Number = 30

	// The semaphore calls extend the numbering past buffer_status.
	SysSemInit    Number = 31
	SysSemWait    Number = 32
	SysSemPost    Number = 33
	SysSemDestroy Number = 34
)

var names = map[Number]string{
	SysSettickets:   "settickets",
	SysEncrypt:      "encrypt",
	SysDecrypt:      "decrypt",
	SysBufferInit:   "buffer_init",
	SysProduce:      "produce",
	SysConsume:      "consume",
	SysBufferStatus: "buffer_status",
	SysSemInit:      "sem_init",
	SysSemWait:      "sem_wait",
	SysSemPost:      "sem_post",
	SysSemDestroy:   "sem_destroy",
}

func (n Number) String() string {
	if name, ok := names[n]; ok {
		return name
	}
	return "syscall(" + strconv.Itoa(int(n)) + ")"
}

// Proc is the process issuing system calls.
type Proc struct {
	PID int
	Mem *usermem.Space

	// ctx ends when the process is killed.
	ctx context.Context
}

func NewProc(ctx context.Context, pid int, memSize int) *Proc {
	return &Proc{
		PID: pid,
		Mem: usermem.NewSpace(memSize),
		ctx: ctx,
	}
}

func (p *Proc) Context() context.Context {
	return p.ctx
}

type handler func(k *Kernel, p *Proc, args []int64) int64

var handlers = map[Number]handler{
	SysSettickets:   sysSettickets,
	SysEncrypt:      sysEncrypt,
	SysDecrypt:      sysEncrypt,
	SysBufferInit:   sysBufferInit,
	SysProduce:      sysProduce,
	SysConsume:      sysConsume,
	SysBufferStatus: sysBufferStatus,
	SysSemInit:      sysSemInit,
	SysSemWait:      sysSemWait,
	SysSemPost:      sysSemPost,
	SysSemDestroy:   sysSemDestroy,
}

type Kernel struct {
	sems    semaphore.Interface
	buffer  *buffer.Ring
	tickets *tickets.Registry
	key     byte
	logger  *zap.Logger
}

type Option func(*Kernel)

func WithCipherKey(key byte) Option {
	return func(k *Kernel) {
		k.key = key
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

func NewKernel(sems semaphore.Interface, buf *buffer.Ring, reg *tickets.Registry, opts ...Option) *Kernel {
	k := &Kernel{
		sems:    sems,
		buffer:  buf,
		tickets: reg,
		key:     xorcipher.DefaultKey,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Tickets returns the lottery tickets held by pid.
func (k *Kernel) Tickets(pid int) int {
	return k.tickets.Get(pid)
}

// TotalTickets returns the tickets held by every process that set some.
func (k *Kernel) TotalTickets() int {
	return k.tickets.Total()
}

// Schedule holds a lottery among the processes holding tickets and returns
// the winning pid.
func (k *Kernel) Schedule(rng *rand.Rand) (int, bool) {
	return k.tickets.Draw(rng)
}

// Exit releases the kernel state held by p.
func (k *Kernel) Exit(p *Proc) {
	k.tickets.Remove(p.PID)
}

// Syscall runs system call n on behalf of p. Missing arguments read as 0.
func (k *Kernel) Syscall(p *Proc, n Number, args ...int64) int64 {
	h, ok := handlers[n]
	if !ok {
		k.logger.Warn("unknown system call", zap.Int("pid", p.PID), zap.Stringer("syscall", n))
		return -1
	}

	ret := h(k, p, args)
	if ret < 0 {
		k.logger.Debug("system call failed", zap.Int("pid", p.PID), zap.Stringer("syscall", n), zap.Int64s("args", args), zap.Int64("ret", ret))
	}
	return ret
}

func arg(args []int64, i int) int64 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

func argint(args []int64, i int) int {
	return int(int32(arg(args, i)))
}

func argaddr(args []int64, i int) uint64 {
	return uint64(arg(args, i))
}

func sysSettickets(k *Kernel, p *Proc, args []int64) int64 {
	k.tickets.Set(p.PID, argint(args, 0))
	return 0
}

func sysEncrypt(k *Kernel, p *Proc, args []int64) int64 {
	n, err := xorcipher.Transform(p.Mem, argaddr(args, 0), argint(args, 1), k.key)
	if err != nil {
		return -1
	}
	return int64(n)
}

func sysBufferInit(k *Kernel, p *Proc, args []int64) int64 {
	k.buffer.Init()
	return 0
}

func sysProduce(k *Kernel, p *Proc, args []int64) int64 {
	return bufferResult(k.buffer.Produce(int32(argint(args, 0))))
}

func sysConsume(k *Kernel, p *Proc, args []int64) int64 {
	item, err := k.buffer.Consume()
	if err != nil {
		return bufferResult(err)
	}

	// The item is gone from the buffer even if it cannot be delivered.
	if err := p.Mem.WriteInt32(argaddr(args, 0), item); err != nil {
		return -3
	}
	return 0
}

func sysBufferStatus(k *Kernel, p *Proc, args []int64) int64 {
	s := k.buffer.Status()
	for i, v := range []int{s.Count, s.Produced, s.Consumed} {
		if err := p.Mem.WriteInt32(argaddr(args, i), int32(v)); err != nil {
			return -1
		}
	}
	return 0
}

func sysSemInit(k *Kernel, p *Proc, args []int64) int64 {
	h, err := k.sems.Create(argint(args, 0))
	if err != nil {
		return -1
	}
	return int64(h)
}

func sysSemWait(k *Kernel, p *Proc, args []int64) int64 {
	return semResult(k.sems.Wait(p.ctx, semaphore.Handle(argint(args, 0))))
}

func sysSemPost(k *Kernel, p *Proc, args []int64) int64 {
	return semResult(k.sems.Signal(semaphore.Handle(argint(args, 0))))
}

func sysSemDestroy(k *Kernel, p *Proc, args []int64) int64 {
	return semResult(k.sems.Destroy(semaphore.Handle(argint(args, 0))))
}

func semResult(err error) int64 {
	if err != nil {
		return -1
	}
	return 0
}

func bufferResult(err error) int64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, buffer.ErrNotInitialized):
		return -2
	default:
		return -1
	}
}

// Package programs contains user programs that exercise the system call
// surface. Each process is a goroutine with its own syscalls.Proc.
package programs

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/lhecker/semd/syscalls"
)

// memSize is the address space size of every process started by a program.
const memSize = 8192

// Program runs against k and returns the first failed expectation.
type Program func(ctx context.Context, k *syscalls.Kernel, logger *zap.Logger) error

var registry = map[string]Program{
	"prodcons":    ProdCons,
	"semtest":     SemTest,
	"buffertest":  BufferTest,
	"encrypttest": EncryptTest,
	"lotterytest": LotteryTest,
}

// Lookup returns the program registered under name.
func Lookup(name string) (Program, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names returns the names of all programs in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pids hands out process ids. Every program starts at 1.
type pids int

func (p *pids) next() int {
	*p++
	return int(*p)
}

// expect fails with msg unless ret equals want.
func expect(ret, want int64, msg string) error {
	if ret != want {
		return fmt.Errorf("%s: got %d, want %d", msg, ret, want)
	}
	return nil
}

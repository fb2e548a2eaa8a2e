package programs

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/lhecker/semd/syscalls"
	"github.com/lhecker/semd/tickets"
)

const lotteryDraws = 6000

// LotteryTest checks settickets clamping and then gives three processes 10,
// 20 and 30 tickets and checks that scheduling lotteries pick them in
// proportion to their tickets.
func LotteryTest(ctx context.Context, k *syscalls.Kernel, logger *zap.Logger) error {
	var ids pids

	edge := syscalls.NewProc(ctx, ids.next(), memSize)
	for _, c := range []struct {
		n    int64
		want int
	}{
		{-10, tickets.MinTickets},
		{0, tickets.MinTickets},
		{1000000, 1000000},
		{tickets.DefaultTickets, tickets.DefaultTickets},
	} {
		if err := expect(k.Syscall(edge, syscalls.SysSettickets, c.n), 0, fmt.Sprintf("settickets(%d)", c.n)); err != nil {
			return err
		}
		if got := k.Tickets(edge.PID); got != c.want {
			return fmt.Errorf("settickets(%d) stored %d tickets, want %d", c.n, got, c.want)
		}
	}
	k.Exit(edge)
	logger.Info("ticket counts clamped")

	procs := make([]*syscalls.Proc, 3)
	for i := range procs {
		procs[i] = syscalls.NewProc(ctx, ids.next(), memSize)
	}
	defer func() {
		for _, p := range procs {
			k.Exit(p)
		}
	}()

	held := 0
	for i, p := range procs {
		n := int64(10 * (i + 1))
		if err := expect(k.Syscall(p, syscalls.SysSettickets, n), 0, "settickets"); err != nil {
			return err
		}
		held += int(n)
	}

	total := k.TotalTickets()
	if total < held {
		return fmt.Errorf("kernel counts %d tickets, processes hold %d", total, held)
	}

	// Seeded so that a run is reproducible.
	rng := rand.New(rand.NewPCG(1, 2))
	wins := make(map[int]int)
	for i := 0; i < lotteryDraws; i++ {
		pid, ok := k.Schedule(rng)
		if !ok {
			return fmt.Errorf("lottery %d found no process", i)
		}
		wins[pid]++
	}

	for _, p := range procs {
		want := float64(lotteryDraws) * float64(k.Tickets(p.PID)) / float64(total)
		got := float64(wins[p.PID])
		if got < want*0.85 || got > want*1.15 {
			return fmt.Errorf("pid %d won %d of %d lotteries, want about %.0f", p.PID, wins[p.PID], lotteryDraws, want)
		}
		logger.Info("lottery share", zap.Int("pid", p.PID), zap.Int("tickets", k.Tickets(p.PID)), zap.Int("wins", wins[p.PID]))
	}

	return nil
}

// Package tickets keeps the lottery ticket counts of processes.
package tickets

import (
	"math/rand/v2"
	"slices"
	"sync"
)

const (
	DefaultTickets = 10
	MinTickets     = 1
)

type Registry struct {
	lock    sync.Mutex
	tickets map[int]int
}

func NewRegistry() *Registry {
	return &Registry{tickets: make(map[int]int)}
}

// Set assigns n tickets to pid. Counts below MinTickets are raised to it.
// It returns the count actually stored.
func (r *Registry) Set(pid, n int) int {
	n = max(n, MinTickets)

	r.lock.Lock()
	r.tickets[pid] = n
	r.lock.Unlock()

	return n
}

// Get returns the tickets of pid, or DefaultTickets if it never called Set.
func (r *Registry) Get(pid int) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	if n, ok := r.tickets[pid]; ok {
		return n
	}
	return DefaultTickets
}

func (r *Registry) Remove(pid int) {
	r.lock.Lock()
	delete(r.tickets, pid)
	r.lock.Unlock()
}

// Total returns the sum of all registered tickets.
func (r *Registry) Total() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	total := 0
	for _, n := range r.tickets {
		total += n
	}
	return total
}

// Draw picks a registered pid with probability proportional to its tickets.
func (r *Registry) Draw(rng *rand.Rand) (int, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(r.tickets) == 0 {
		return 0, false
	}

	// Map iteration order is random; sort so a seeded rng is reproducible.
	pids := make([]int, 0, len(r.tickets))
	total := 0
	for pid, n := range r.tickets {
		pids = append(pids, pid)
		total += n
	}
	slices.Sort(pids)

	winner := rng.IntN(total)
	for _, pid := range pids {
		winner -= r.tickets[pid]
		if winner < 0 {
			return pid, true
		}
	}

	panic("unreachable")
}

package tickets

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetClamps(t *testing.T) {
	var (
		assert = assert.New(t)
		r      = NewRegistry()
	)

	assert.Equal(DefaultTickets, r.Get(1))

	for n, expected := range map[int]int{-10: 1, 0: 1, 1: 1, 10: 10, 1000000: 1000000} {
		assert.Equal(expected, r.Set(1, n))
		assert.Equal(expected, r.Get(1))
	}

	r.Remove(1)
	assert.Equal(DefaultTickets, r.Get(1))
	assert.Zero(r.Total())
}

func TestDraw(t *testing.T) {
	var (
		assert = assert.New(t)
		r      = NewRegistry()
		rng    = rand.New(rand.NewPCG(1, 2))
	)

	_, ok := r.Draw(rng)
	assert.False(ok)

	r.Set(1, 90)
	r.Set(2, 10)
	assert.Equal(100, r.Total())

	wins := map[int]int{}
	for i := 0; i < 10000; i++ {
		pid, ok := r.Draw(rng)
		assert.True(ok)
		wins[pid]++
	}

	assert.Len(wins, 2)
	assert.InDelta(9000, wins[1], 500)
	assert.InDelta(1000, wins[2], 500)
}

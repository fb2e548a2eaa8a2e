package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/programs"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/server"
	"github.com/lhecker/semd/syscalls"
	"github.com/lhecker/semd/tickets"
)

func newTestClient(t *testing.T, capacity int) (*Client, *semaphore.Table) {
	table := semaphore.NewTable(capacity)
	ts := httptest.NewServer(server.New(server.Options{
		Semaphores: table,
		Table:      table,
		Buffer:     buffer.NewRing(buffer.DefaultSize),
		Tickets:    tickets.NewRegistry(),
		Logger:     zaptest.NewLogger(t),
	}))
	t.Cleanup(ts.Close)

	c, err := New(ts.Client(), ts.URL)
	require.NoError(t, err)
	return c, table
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	_, err := New(nil, "ftp://example.com")
	assert.Error(err)

	c, err := New(nil, "http://localhost:8080")
	assert.NoError(err)
	assert.NotNil(c.http)
}

func TestRoundTrip(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		c, _    = newTestClient(t, 1)
		ctx     = context.Background()
	)

	h, err := c.Create(1)
	require.NoError(err)
	assert.Equal(semaphore.Handle(0), h)

	_, err = c.Create(1)
	assert.ErrorIs(err, semaphore.ErrExhausted)

	assert.NoError(c.Wait(ctx, h))
	assert.NoError(c.Signal(h))

	states, err := c.Snapshot(ctx)
	require.NoError(err)
	assert.Equal([]semaphore.SlotState{{Handle: 0, Allocated: true, Value: 1}}, states)

	assert.NoError(c.Destroy(h))
	assert.ErrorIs(c.Destroy(h), semaphore.ErrInvalidHandle)
	assert.ErrorIs(c.Signal(7), semaphore.ErrInvalidHandle)
}

func TestWaitCancel(t *testing.T) {
	var (
		require     = require.New(t)
		c, table    = newTestClient(t, 1)
		ctx, cancel = context.WithCancel(context.Background())
		result      = make(chan error, 1)
	)
	defer cancel()

	h, err := c.Create(0)
	require.NoError(err)

	go func() {
		result <- c.Wait(ctx, h)
	}()

	require.Eventually(func() bool { return table.Waiters(h) == 1 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-result:
		require.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.FailNow("wait was not cancelled")
	}
}

func TestStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	c, err := New(ts.Client(), ts.URL)
	require.NoError(t, err)

	err = c.Signal(0)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTeapot, se.StatusCode)
}

func TestProgramsOverHTTP(t *testing.T) {
	c, table := newTestClient(t, semaphore.DefaultCapacity)

	k := syscalls.NewKernel(c, buffer.NewRing(buffer.DefaultSize), tickets.NewRegistry())
	require.NoError(t, programs.SemTest(context.Background(), k, zaptest.NewLogger(t)))

	for _, s := range table.Snapshot() {
		assert.False(t, s.Allocated, "handle %d leaked", s.Handle)
	}
}

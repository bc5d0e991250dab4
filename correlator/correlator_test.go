package correlator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/coregx/conduit/packet"
)

func TestResolveDeliversResponse(t *testing.T) {
	c := New()
	id := c.NextID()
	c.Register(id)

	go func() {
		ok := c.Resolve(&packet.Response{RequestID: id, Status: packet.StatusOK})
		require.True(t, ok)
	}()

	resp, err := c.Wait(context.Background(), id, time.Second)
	require.NoError(t, err)
	require.Equal(t, id, resp.RequestID)
	require.Zero(t, c.Len())
}

func TestWaitTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(WithClock(clock))
	id := c.NextID()
	c.Register(id)

	result := make(chan error, 1)
	go func() {
		_, err := c.Wait(context.Background(), id, time.Minute)
		result <- err
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	err := <-result
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.Zero(t, c.Len())
}

func TestLateResponseAfterTimeoutIsDiscarded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(WithClock(clock))
	id := c.NextID()
	c.Register(id)

	result := make(chan error, 1)
	go func() {
		_, err := c.Wait(context.Background(), id, time.Minute)
		result <- err
	}()
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	require.ErrorIs(t, <-result, ErrRequestTimeout)

	// A response that arrives after the timeout must be discarded, not
	// delivered to anyone or cause a panic.
	ok := c.Resolve(&packet.Response{RequestID: id, Status: packet.StatusOK})
	require.False(t, ok)
}

func TestDuplicateResponseDiscarded(t *testing.T) {
	c := New()
	id := c.NextID()
	c.Register(id)

	require.True(t, c.Resolve(&packet.Response{RequestID: id, Status: packet.StatusOK}))
	require.False(t, c.Resolve(&packet.Response{RequestID: id, Status: packet.StatusOK}))
}

func TestCloseAllFailsEveryPendingWaiter(t *testing.T) {
	c := New()
	const n = 5
	ids := make([]uint64, n)
	results := make([]chan error, n)
	for i := range ids {
		ids[i] = c.NextID()
		c.Register(ids[i])
		results[i] = make(chan error, 1)
		i := i
		go func() {
			_, err := c.Wait(context.Background(), ids[i], time.Minute)
			results[i] <- err
		}()
	}

	// Give the waiters a moment to reach select.
	time.Sleep(20 * time.Millisecond)

	disconnected := require.New(t)
	c.CloseAll(context.Canceled)
	for _, r := range results {
		err := <-r
		disconnected.ErrorIs(err, context.Canceled)
	}
	require.Zero(t, c.Len())
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	c := New()
	id := c.NextID()
	c.Register(id)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := c.Wait(ctx, id, time.Minute)
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-result, context.Canceled)
	require.Zero(t, c.Len())
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	c := New()
	prev := c.NextID()
	for i := 0; i < 100; i++ {
		next := c.NextID()
		require.Greater(t, next, prev)
		prev = next
	}
}

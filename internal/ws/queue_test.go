package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isReady(t *ticket) bool {
	select {
	case <-t.ready:
		return true
	default:
		return false
	}
}

func TestTicketQueueFIFO(t *testing.T) {
	q := newTicketQueue(nil)
	a := q.enqueue()
	b := q.enqueue()
	c := q.enqueue()

	require.True(t, isReady(a))
	require.False(t, isReady(b))
	require.False(t, isReady(c))

	q.release(a)
	require.True(t, isReady(b))
	require.False(t, isReady(c))

	q.release(b)
	require.True(t, isReady(c))
	q.release(c)
	require.Zero(t, q.len())
}

func TestTicketQueueReleaseOutOfOrder(t *testing.T) {
	q := newTicketQueue(nil)
	a := q.enqueue()
	b := q.enqueue()
	c := q.enqueue()

	q.release(b)
	require.False(t, isReady(c))
	q.release(a)
	require.True(t, isReady(c))
}

func TestTicketQueueEvictsStuckHead(t *testing.T) {
	q := newTicketQueue(nil)
	stuck := q.enqueue()
	waiter := q.enqueue()

	var evicted []*ticket
	err := q.wait(context.Background(), waiter, 20*time.Millisecond, func(tk *ticket) {
		evicted = append(evicted, tk)
	})
	require.NoError(t, err)
	require.Equal(t, []*ticket{stuck}, evicted)

	// the stuck handler finishing later must not disturb the new head
	q.release(stuck)
	require.Equal(t, 1, q.len())
	q.release(waiter)
	require.Zero(t, q.len())
}

func TestTicketQueueSparesFreshHead(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	q := newTicketQueue(func() time.Time { return clock })
	stuck := q.enqueue()
	a := q.enqueue()
	b := q.enqueue()
	timeout := 20 * time.Millisecond

	clock = clock.Add(25 * time.Millisecond)
	ev, _ := q.evictHead(a, timeout)
	require.Same(t, stuck, ev)
	require.True(t, isReady(a))

	// a just reached the head, so b's timer must not take it down too
	ev, retry := q.evictHead(b, timeout)
	require.Nil(t, ev)
	require.Equal(t, timeout, retry)

	clock = clock.Add(15 * time.Millisecond)
	ev, retry = q.evictHead(b, timeout)
	require.Nil(t, ev)
	require.Equal(t, 5*time.Millisecond, retry)

	clock = clock.Add(5 * time.Millisecond)
	ev, _ = q.evictHead(b, timeout)
	require.Same(t, a, ev)
	require.True(t, isReady(b))
}

func TestTicketQueueWaitCancelled(t *testing.T) {
	q := newTicketQueue(nil)
	head := q.enqueue()
	waiter := q.enqueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.wait(ctx, waiter, time.Minute, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, q.len())

	q.release(head)
	require.Zero(t, q.len())
}

package ws

import (
	"context"
	"sync"
	"time"
)

// DefaultQueueTimeout is how long a ticket waits without reaching the head
// of its pool queue before the head is evicted.  A head is only evicted once
// it has itself held the head for that long.
const DefaultQueueTimeout = 20 * time.Second

// ticket is one queued handler invocation.
type ticket struct {
	seq      uint64
	enqueued time.Time
	ready    chan struct{}
	signaled bool      // ready closed; guarded by ticketQueue.mu
	headAt   time.Time // when it became head; guarded by ticketQueue.mu
}

// ticketQueue is a FIFO of tickets.  The head ticket's ready channel is
// closed when it reaches the head, so waiters block instead of polling.
type ticketQueue struct {
	mu      sync.Mutex
	seq     uint64
	tickets []*ticket
	now     func() time.Time
}

func newTicketQueue(now func() time.Time) *ticketQueue {
	if now == nil {
		now = time.Now
	}
	return &ticketQueue{now: now}
}

func (q *ticketQueue) enqueue() *ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	t := &ticket{seq: q.seq, enqueued: q.now(), ready: make(chan struct{})}
	q.tickets = append(q.tickets, t)
	q.promoteLocked()
	return t
}

func (q *ticketQueue) promoteLocked() {
	if len(q.tickets) == 0 {
		return
	}
	if head := q.tickets[0]; !head.signaled {
		head.signaled = true
		head.headAt = q.now()
		close(head.ready)
	}
}

// release removes t wherever it is.  Releasing a ticket that was already
// evicted is a no-op.
func (q *ticketQueue) release(t *ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, x := range q.tickets {
		if x == t {
			q.tickets = append(q.tickets[:i], q.tickets[i+1:]...)
			break
		}
	}
	q.promoteLocked()
}

// evictHead drops the head if it has held the head for at least timeout and
// is not waiter itself.  It returns the dropped ticket, if any, and how long
// waiter should wait before trying again.
func (q *ticketQueue) evictHead(waiter *ticket, timeout time.Duration) (*ticket, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tickets) == 0 || q.tickets[0] == waiter {
		return nil, timeout
	}
	head := q.tickets[0]
	if held := q.now().Sub(head.headAt); held < timeout {
		return nil, timeout - held
	}
	q.tickets = q.tickets[1:]
	q.promoteLocked()
	return head, timeout
}

func (q *ticketQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets)
}

// wait blocks until t is at the head of the queue.  Every time timeout
// passes without that happening a head older than timeout is evicted and
// onEvict is called with it; a younger head gets the rest of its time.  When
// ctx ends first, t is released and ctx.Err() returned.
func (q *ticketQueue) wait(ctx context.Context, t *ticket, timeout time.Duration, onEvict func(*ticket)) error {
	if timeout <= 0 {
		timeout = DefaultQueueTimeout
	}
	next := timeout
	for {
		timer := time.NewTimer(next)
		select {
		case <-t.ready:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			q.release(t)
			return ctx.Err()
		case <-timer.C:
			var evicted *ticket
			evicted, next = q.evictHead(t, timeout)
			if evicted != nil && onEvict != nil {
				onEvict(evicted)
			}
		}
	}
}

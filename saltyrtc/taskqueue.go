package saltyrtc

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// task is a deferred unit of work enqueued onto a client's task queue: a
// send of a particular frame, or the connection's eventual close. Per
// spec §4.5-A, it is the only path to the transport's write side, and
// exactly one task drains at a time.
type task func(ctx context.Context) error

// taskQueue is the per-client FIFO of spec §3's task_queue. It wraps
// eapache/queue's ring buffer with a mutex (the ring buffer itself is not
// safe for concurrent use) and a buffered doorbell channel, so a consumer
// can block on Dequeue without the ring buffer itself needing to support
// blocking semantics.
type taskQueue struct {
	mu       sync.Mutex
	q        *queue.Queue
	doorbell chan struct{}
	closed   bool
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		q:        queue.New(),
		doorbell: make(chan struct{}, 1),
	}
}

// ring doorbell without blocking if one is already pending.
func (tq *taskQueue) ring() {
	select {
	case tq.doorbell <- struct{}{}:
	default:
	}
}

// Enqueue appends t to the queue. It is safe to call from any goroutine,
// including from within a task currently being drained (e.g. a handshake
// enqueuing an announcement onto a peer's queue).
func (tq *taskQueue) Enqueue(t task) {
	tq.mu.Lock()
	if tq.closed {
		tq.mu.Unlock()
		return
	}
	tq.q.Add(t)
	tq.mu.Unlock()
	tq.ring()
}

// Dequeue blocks until a task is available, the queue is closed (returning
// ok=false), or ctx is done.
func (tq *taskQueue) Dequeue(ctx context.Context) (t task, ok bool, err error) {
	for {
		tq.mu.Lock()
		if tq.q.Length() > 0 {
			v := tq.q.Remove()
			tq.mu.Unlock()
			return v.(task), true, nil
		}
		closed := tq.closed
		tq.mu.Unlock()
		if closed {
			return nil, false, nil
		}
		select {
		case <-tq.doorbell:
			continue
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Close marks the queue closed: pending Dequeue calls return ok=false once
// drained, and further Enqueue calls are silently dropped. Matches the
// "may exit cleanly (queue closed)" non-fatal path of spec §4.5-A.
func (tq *taskQueue) Close() {
	tq.mu.Lock()
	tq.closed = true
	tq.mu.Unlock()
	tq.ring()
}

package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
)

var (
	// ErrQueueShutdown is returned by Get after Shutdown.
	ErrQueueShutdown = errors.New("queue is shut down")
	// ErrJoinTimeout is returned by Join when work remains at the
	// deadline.
	ErrJoinTimeout = errors.New("timed out waiting for queue to drain")
)

// pollInterval is how often blocked queue operations re-check their
// condition, so context cancellation and shutdown are noticed quickly.
const pollInterval = 50 * time.Millisecond

// Queue is the FIFO of URLs awaiting a worker. Every Get must be
// balanced by a TaskDone so that Join can detect the drained state.
type Queue struct {
	mu         sync.Mutex
	items      []*checker.URL
	inProgress int
	shutdown   bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Put appends a URL. Puts after shutdown are dropped.
func (q *Queue) Put(u *checker.URL) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		return
	}
	q.items = append(q.items, u)
}

// Get pops the oldest URL, blocking while the queue is empty. It
// returns ErrQueueShutdown once the queue is shut down and the context
// error when ctx is cancelled.
func (q *Queue) Get(ctx context.Context) (*checker.URL, error) {
	q.mu.Lock()
	for {
		if q.shutdown {
			q.mu.Unlock()
			return nil, ErrQueueShutdown
		}
		if len(q.items) > 0 {
			u := q.items[0]
			q.items = q.items[1:]
			q.inProgress++
			q.mu.Unlock()
			return u, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
		q.mu.Lock()
	}
}

// TaskDone marks one previously popped URL as finished.
func (q *Queue) TaskDone() {
	q.mu.Lock()
	if q.inProgress > 0 {
		q.inProgress--
	}
	q.mu.Unlock()
}

// Join blocks until the queue is empty and no URL is in progress, or
// the timeout expires. A zero timeout waits forever.
func (q *Queue) Join(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		q.mu.Lock()
		drained := len(q.items) == 0 && q.inProgress == 0
		q.mu.Unlock()
		if drained {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrJoinTimeout
		}
		time.Sleep(pollInterval)
	}
}

// Shutdown wakes all blocked Gets and refuses further work.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.shutdown = true
	q.items = nil
	q.mu.Unlock()
}

// Len returns the number of queued URLs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// InProgress returns the number of URLs handed out but not yet done.
func (q *Queue) InProgress() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inProgress
}

package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// HostThrottle spaces out connections per host. Each host carries the
// earliest time it may be contacted again; after every connection a
// random wait is drawn and added. Hosts that signalled cooperation are
// max-rated and run at the configured rate; all others get a widened
// floor.
type HostThrottle struct {
	minWait time.Duration
	maxWait time.Duration

	mu       sync.Mutex
	earliest map[string]time.Time
	maxRated map[string]bool
}

// NewHostThrottle derives the wait interval from the configured
// requests-per-second rate.
func NewHostThrottle(maxRequestsPerSecond float64) *HostThrottle {
	if maxRequestsPerSecond <= 0 {
		maxRequestsPerSecond = 10
	}
	min := time.Duration(float64(time.Second) / maxRequestsPerSecond)
	return &HostThrottle{
		minWait:  min,
		maxWait:  6 * min,
		earliest: make(map[string]time.Time),
		maxRated: make(map[string]bool),
	}
}

// WaitForHost blocks until the host may be contacted, then reserves
// the next slot. The lock is held across the bounded sleep so that
// concurrent workers queue up behind it. Cancelling the context aborts
// the wait.
func (h *HostThrottle) WaitForHost(ctx context.Context, host string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	if due, ok := h.earliest[host]; ok && due.After(now) {
		timer := time.NewTimer(due.Sub(now))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		now = time.Now()
	}

	minWait, maxWait := h.minWait, h.maxWait
	if !h.maxRated[host] {
		minWait = maxDuration(minWait, 100*time.Millisecond)
		maxWait = maxDuration(maxWait, 600*time.Millisecond)
	}
	wait := minWait + time.Duration(rand.Int63n(int64(maxWait-minWait)+1))
	h.earliest[host] = now.Add(wait)
	return nil
}

// SetMaxRated relaxes the host's wait floor back to the configured
// rate.
func (h *HostThrottle) SetMaxRated(host string) {
	h.mu.Lock()
	h.maxRated[host] = true
	h.mu.Unlock()
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

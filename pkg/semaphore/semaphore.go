// Package semaphore bounds the number of concurrent oracle calls.
// It wraps a weighted semaphore with a release-handle API so that every
// acquisition is paired with exactly one release on all exit paths.
package semaphore

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Semaphore limits in-flight operations to a fixed capacity.
// Waiters are served in FIFO order.
type Semaphore struct {
	weighted *semaphore.Weighted
	capacity int64
}

// New creates a Semaphore with the given capacity.
// Panics if capacity is not positive.
func New(capacity int) *Semaphore {
	if capacity < 1 {
		panic(fmt.Sprintf("semaphore capacity must be positive: %d", capacity))
	}
	return &Semaphore{
		weighted: semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Capacity returns the configured concurrency limit.
func (s *Semaphore) Capacity() int {
	return int(s.capacity)
}

// Acquire blocks until a slot is free or ctx is cancelled. On success it
// returns a release function that must be called exactly once, typically
// via defer so the slot is freed even when the guarded call fails.
func (s *Semaphore) Acquire(ctx context.Context) (func(), error) {
	if err := s.weighted.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire slot: %w", err)
	}
	return func() { s.weighted.Release(1) }, nil
}

// TryAcquire acquires a slot without blocking. Returns nil when no slot is free.
func (s *Semaphore) TryAcquire() func() {
	if !s.weighted.TryAcquire(1) {
		return nil
	}
	return func() { s.weighted.Release(1) }
}

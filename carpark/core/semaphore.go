// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sync"
)

// Semaphore is a counting semaphore. Unlike a weighted semaphore it may be
// released without a prior acquire, which makes it usable for signaling.
type Semaphore struct {
	mu    sync.Mutex
	free  *sync.Cond
	count int
}

func NewSemaphore(initial int) *Semaphore {
	s := &Semaphore{count: initial}
	s.free = sync.NewCond(&s.mu)
	return s
}

// Release increments the semaphore and wakes one waiter.
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.free.Signal()
}

// Acquire blocks until the semaphore can be decremented. It cannot be
// canceled; shutdown releases it with a dummy post.
func (s *Semaphore) Acquire() {
	_ = s.AcquireContext(context.Background())
}

// AcquireContext blocks until the semaphore can be decremented or ctx ends.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := waitCond(ctx, s.free, func() bool { return s.count > 0 }); err != nil {
		return err
	}
	s.count--
	return nil
}

// TryAcquire decrements the semaphore if that does not block.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count <= 0 {
		return false
	}
	s.count--
	return true
}

// Value returns the current count.
func (s *Semaphore) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

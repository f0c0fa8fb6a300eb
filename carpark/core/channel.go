// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sync"
)

// Channel is a rendezvous around a single shared value.
type Channel[T any] struct {
	mu        sync.Mutex
	written   *sync.Cond
	consumed  *sync.Cond
	value     T
	pending   bool
	broadcast bool
}

// NewChannel returns a channel that wakes one reader per write.
func NewChannel[T any]() *Channel[T] {
	c := &Channel[T]{}
	c.written = sync.NewCond(&c.mu)
	c.consumed = sync.NewCond(&c.mu)
	return c
}

// NewBroadcastChannel returns a channel that wakes every waiting reader on a
// write. Only one of them claims the value; the others wait again.
func NewBroadcastChannel[T any]() *Channel[T] {
	c := NewChannel[T]()
	c.broadcast = true
	return c
}

// Write stores v once the previous value has been consumed.
func (c *Channel[T]) Write(ctx context.Context, v T) error {
	c.mu.Lock()
	if err := waitCond(ctx, c.consumed, func() bool { return !c.pending }); err != nil {
		c.mu.Unlock()
		return err
	}
	c.value = v
	c.pending = true
	c.mu.Unlock()

	c.notifyWritten()
	return nil
}

// Overwrite stores v without waiting. An unread value is lost.
func (c *Channel[T]) Overwrite(v T) {
	c.mu.Lock()
	c.value = v
	c.pending = true
	c.mu.Unlock()

	c.notifyWritten()
}

// Read blocks until a value is written, then claims it.
func (c *Channel[T]) Read(ctx context.Context) (T, error) {
	c.mu.Lock()
	if err := waitCond(ctx, c.written, func() bool { return c.pending }); err != nil {
		c.mu.Unlock()
		var zero T
		return zero, err
	}
	v := c.value
	c.pending = false
	c.mu.Unlock()

	c.consumed.Signal()
	return v, nil
}

// Peek returns the last written value and whether it is still unread.
func (c *Channel[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.pending
}

func (c *Channel[T]) notifyWritten() {
	if c.broadcast {
		c.written.Broadcast()
	} else {
		c.written.Signal()
	}
}

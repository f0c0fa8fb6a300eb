// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sync"
)

// waitCond blocks on c until done reports true or ctx ends. An ended ctx wins
// over done, so a canceled waiter never claims a value.
// c.L must be held by the caller and is held again on return.
func waitCond(ctx context.Context, c *sync.Cond, done func() bool) error {
	if ctx.Done() == nil {
		for !done() {
			c.Wait()
		}
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		c.L.Lock()
		defer c.L.Unlock()
		c.Broadcast()
	})
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			// pass on a signal this waiter may have taken
			c.Signal()
			return err
		}
		if done() {
			return nil
		}
		c.Wait()
	}
}

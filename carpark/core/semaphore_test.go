// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSemaphoreSignals(t *testing.T) {
	s := NewSemaphore(0)
	assert.False(t, s.TryAcquire())

	var errg errgroup.Group
	errg.Go(func() error {
		s.Acquire()
		return nil
	})
	s.Release()
	require.NoError(t, errg.Wait())
	assert.Equal(t, 0, s.Value())
}

func TestSemaphoreCounts(t *testing.T) {
	s := NewSemaphore(2)
	assert.True(t, s.TryAcquire())
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
	s.Release()
	assert.Equal(t, 1, s.Value())
}

func TestSemaphoreAcquireContext(t *testing.T) {
	s := NewSemaphore(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.AcquireContext(ctx), context.DeadlineExceeded)
	assert.Equal(t, 0, s.Value())
}

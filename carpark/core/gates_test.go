// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestWalkThrough(t *testing.T) {
	g := NewGate(1)
	assert.NoError(t, g.WalkThrough())
	assert.NoError(t, g.Await(context.Background()))
}

func TestWalkThroughTwice(t *testing.T) {
	g := NewGate(1)
	assert.NoError(t, g.WalkThrough())
	assert.Equal(t, ErrGateIntegrity, g.WalkThrough())
}

func TestAwaitAfterWalkThrough(t *testing.T) {
	g := NewGate(2)

	var errg errgroup.Group
	errg.Go(func() error { return g.Await(context.Background()) })
	assert.NoError(t, g.WalkThrough())
	assert.NoError(t, g.WalkThrough())
	assert.NoError(t, errg.Wait())
}

func TestCancel(t *testing.T) {
	g := NewGate(1)

	var errg errgroup.Group
	errg.Go(func() error { return g.Await(context.Background()) })
	g.CancelWithError(nil)

	assert.Equal(t, ErrGateCanceled, errg.Wait())
}

func TestCancelWithError(t *testing.T) {
	g := NewGate(1)

	var errg errgroup.Group
	errg.Go(func() error { return g.Await(context.Background()) })

	err := errors.New("MyErr")
	g.CancelWithError(err)

	assert.Equal(t, err, errg.Wait())
}

func TestAwaitContextCanceled(t *testing.T) {
	g := NewGate(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Await(ctx), context.Canceled)
}

func BenchmarkAwait(b *testing.B) {
	ctx := context.Background()

	for n := 0; n < b.N; n++ {
		g := NewGate(1)
		go func() { g.WalkThrough() }()
		if err := g.Await(ctx); err != nil {
			panic(err)
		}
	}
}

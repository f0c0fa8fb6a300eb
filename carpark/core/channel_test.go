// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPlateRoundTrip(t *testing.T) {
	s := NewLicenseSensor()
	ctx := context.Background()

	require.NoError(t, s.Trigger(ctx, ParsePlate("123ABC")))
	p, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123ABC", p.String())
}

func TestParsePlateTruncatesAndPads(t *testing.T) {
	assert.Equal(t, "123ABC", ParsePlate("123ABCDEF").String())
	assert.Equal(t, "12A   ", ParsePlate("12A").String())
	assert.True(t, ParsePlate("029XYZ").Generated())
	assert.False(t, ParsePlate("ABC123").Generated())
	assert.True(t, Plate{}.IsZero())
}

func TestReadBlocksUntilWrite(t *testing.T) {
	c := NewChannel[int]()

	var errg errgroup.Group
	got := make(chan int, 1)
	errg.Go(func() error {
		v, err := c.Read(context.Background())
		got <- v
		return err
	})

	select {
	case <-got:
		t.Fatal("read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, c.Write(context.Background(), 7))
	require.NoError(t, errg.Wait())
	assert.Equal(t, 7, <-got)
}

func TestWriteWaitsForConsumption(t *testing.T) {
	c := NewChannel[int]()
	require.NoError(t, c.Write(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Write(ctx, 2), context.DeadlineExceeded)

	v, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, c.Write(context.Background(), 2))
}

func TestOverwriteKeepsLatest(t *testing.T) {
	c := NewChannel[int]()
	c.Overwrite(1)
	c.Overwrite(2)

	v, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, pending := c.Peek()
	assert.False(t, pending)
}

func TestReadCanceled(t *testing.T) {
	c := NewChannel[int]()
	ctx, cancel := context.WithCancel(context.Background())

	var errg errgroup.Group
	errg.Go(func() error {
		_, err := c.Read(ctx)
		return err
	})
	cancel()

	assert.ErrorIs(t, errg.Wait(), context.Canceled)
}

func TestOneReadClaimsEachWrite(t *testing.T) {
	const writes = 200
	c := NewBroadcastChannel[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[int]int)
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				v, err := c.Read(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < writes; i++ {
		require.NoError(t, c.Write(context.Background(), i))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == writes
	}, time.Second, time.Millisecond)
	cancel()
	readers.Wait()

	for v, n := range seen {
		assert.Equal(t, 1, n, "value %d read %d times", v, n)
	}
}

func TestSignDisplays(t *testing.T) {
	s := NewSign()
	require.NoError(t, s.Update(context.Background(), LevelDisplay(2)))
	assert.Equal(t, byte('3'), s.Display())

	d, err := s.Read(context.Background())
	require.NoError(t, err)
	level, ok := DisplayLevel(d)
	assert.True(t, ok)
	assert.Equal(t, 2, level)

	_, ok = DisplayLevel(SignDenied)
	assert.False(t, ok)
	_, ok = DisplayLevel(SignFull)
	assert.False(t, ok)
}

func TestCanceledReadLeavesValue(t *testing.T) {
	c := NewChannel[int]()
	require.NoError(t, c.Write(context.Background(), 7))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	v, pending := c.Peek()
	assert.True(t, pending)
	assert.Equal(t, 7, v)
}

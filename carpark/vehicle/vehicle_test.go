// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package vehicle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
)

func TestArenaInsertGetRemove(t *testing.T) {
	a := NewArena(2)
	d := NewDescriptor(core.ParsePlate("123ABC"), 0)
	assert.Equal(t, -1, d.Level)
	assert.Equal(t, Queued, d.State)

	h, err := a.Insert(d)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	assert.True(t, a.ContainsPlate(d.Plate))

	got, ok := a.Get(h)
	require.True(t, ok)
	assert.Equal(t, d, got)

	require.True(t, a.Update(h, func(d *Descriptor) { d.State = Parked; d.Level = 3 }))
	got, _ = a.Get(h)
	assert.Equal(t, Parked, got.State)
	assert.Equal(t, 3, got.Level)

	require.True(t, a.Remove(h))
	assert.Equal(t, 0, a.Len())
	assert.False(t, a.ContainsPlate(d.Plate))
	assert.False(t, a.Remove(h))
}

func TestArenaStaleHandle(t *testing.T) {
	a := NewArena(1)
	h1, err := a.Insert(NewDescriptor(core.ParsePlate("111AAA"), 0))
	require.NoError(t, err)
	require.True(t, a.Remove(h1))

	h2, err := a.Insert(NewDescriptor(core.ParsePlate("222BBB"), 1))
	require.NoError(t, err)

	_, ok := a.Get(h1)
	assert.False(t, ok, "handle of a removed vehicle must not resolve to its successor")
	got, ok := a.Get(h2)
	require.True(t, ok)
	assert.Equal(t, "222BBB", got.Plate.String())

	_, ok = a.Get(Handle{})
	assert.False(t, ok)
}

func TestArenaFull(t *testing.T) {
	a := NewArena(1)
	_, err := a.Insert(NewDescriptor(core.ParsePlate("111AAA"), 0))
	require.NoError(t, err)

	_, err = a.Insert(NewDescriptor(core.ParsePlate("222BBB"), 0))
	assert.ErrorIs(t, err, fatalerror.ErrAllocationFailure)
}

func TestGeneratedPlates(t *testing.T) {
	g := NewGenerator(1, nil)
	for i := 0; i < 100; i++ {
		p := g.Plate()
		assert.True(t, p.Generated(), p.String())
	}
}

func TestGeneratorPicksAuthorizedPlates(t *testing.T) {
	auth := []core.Plate{core.ParsePlate("029MZH")}
	g := NewGenerator(7, auth)

	picked := 0
	for i := 0; i < 1000; i++ {
		if g.Plate() == auth[0] {
			picked++
		}
	}
	assert.InDelta(t, 500, picked, 100)
}

func TestGeneratorBetween(t *testing.T) {
	g := NewGenerator(3, nil)
	for i := 0; i < 100; i++ {
		d := g.Between(time.Millisecond, 100*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
	assert.Equal(t, time.Second, g.Between(time.Second, time.Second))
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "AwaitingSign", AwaitingSign.String())
	assert.Equal(t, "Gone", Gone.String())
	assert.Equal(t, "Unknown", State(200).String())
	assert.True(t, Rejected.Terminal())
	assert.True(t, Parked.Terminal())
	assert.False(t, AtGate.Terminal())
}

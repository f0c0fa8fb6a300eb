// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package vehicle holds the simulated vehicles and the random sources that
// generate them.
package vehicle

import (
	"sync"

	"github.com/google/uuid"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
)

// Descriptor is everything the simulator knows about one vehicle.
type Descriptor struct {
	ID       uuid.UUID
	Plate    core.Plate
	Level    int
	Entrance int
	State    State
}

// NewDescriptor returns a queued vehicle with no level assigned.
func NewDescriptor(plate core.Plate, entrance int) Descriptor {
	return Descriptor{
		ID:       uuid.New(),
		Plate:    plate,
		Level:    -1,
		Entrance: entrance,
		State:    Queued,
	}
}

// Handle addresses a descriptor in an Arena. A handle outlives the removal of
// its descriptor but no longer resolves.
type Handle struct {
	index      uint32
	generation uint32
}

type arenaSlot struct {
	generation uint32
	used       bool
	desc       Descriptor
}

// Arena stores vehicle descriptors in a bounded table and hands out handles.
type Arena struct {
	mu    sync.Mutex
	slots []arenaSlot
	free  []uint32
	count int
}

// NewArena returns an arena holding at most capacity vehicles.
func NewArena(capacity int) *Arena {
	a := &Arena{
		slots: make([]arenaSlot, capacity),
		free:  make([]uint32, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, uint32(i))
	}
	return a
}

// Insert stores d. A full arena is an AllocationFailure.
func (a *Arena) Insert(d Descriptor) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) == 0 {
		return Handle{}, fatalerror.New(fatalerror.AllocationFailure, "vehicle arena full at %d", len(a.slots))
	}
	i := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	s := &a.slots[i]
	s.generation++
	s.used = true
	s.desc = d
	a.count++
	return Handle{index: i, generation: s.generation}, nil
}

// Get returns a copy of the descriptor behind h.
func (a *Arena) Get(h Handle) (Descriptor, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(h)
	if !ok {
		return Descriptor{}, false
	}
	return s.desc, true
}

// Update applies fn to the descriptor behind h and reports whether h resolved.
func (a *Arena) Update(h Handle, fn func(d *Descriptor)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	fn(&s.desc)
	return true
}

// Remove frees the slot of h.
func (a *Arena) Remove(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	s.used = false
	s.desc = Descriptor{}
	a.free = append(a.free, h.index)
	a.count--
	return true
}

// Len returns the number of stored vehicles.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// ContainsPlate reports whether a stored vehicle carries p.
func (a *Arena) ContainsPlate(p core.Plate) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots {
		if a.slots[i].used && a.slots[i].desc.Plate == p {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of every stored descriptor.
func (a *Arena) Snapshot() []Descriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Descriptor, 0, a.count)
	for i := range a.slots {
		if a.slots[i].used {
			out = append(out, a.slots[i].desc)
		}
	}
	return out
}

func (a *Arena) lookup(h Handle) (*arenaSlot, bool) {
	if int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.index]
	if !s.used || s.generation != h.generation || h.generation == 0 {
		return nil, false
	}
	return s, true
}

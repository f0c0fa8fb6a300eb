// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"errors"
	"sync"
	"time"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/segment"
)

// LevelCapacity is the number of bays on one level.
const LevelCapacity = 20

var (
	// ErrFull is returned by Enter when every bay is taken.
	ErrFull = errors.New("CarParkFull")
	// ErrAlreadyInside is returned by Enter for a plate that never left.
	ErrAlreadyInside = errors.New("PlateAlreadyInside")
	// ErrNotInside is returned by Seen for a plate that never entered.
	ErrNotInside = errors.New("PlateNotInside")
	// ErrLevelFull is returned by Seen when the vehicle stopped on a level
	// with no bay left. It stays counted on its assigned level.
	ErrLevelFull = errors.New("LevelFull")
)

// Visit is the record of one vehicle inside the car park.
type Visit struct {
	Plate   core.Plate
	Level   int
	Entered time.Time
}

// Registry is the set of vehicles inside the car park. One mutex guards the
// visits and every counter, so a capacity check and the matching insert are a
// single step.
type Registry struct {
	mu            sync.Mutex
	levelCapacity int
	visits        map[core.Plate]*Visit
	occupancy     [segment.NumLevels]int
	total         int
}

func NewRegistry(levelCapacity int) *Registry {
	if levelCapacity <= 0 {
		levelCapacity = LevelCapacity
	}
	return &Registry{
		levelCapacity: levelCapacity,
		visits:        make(map[core.Plate]*Visit),
	}
}

// Capacity returns the number of bays in the car park.
func (r *Registry) Capacity() int {
	return r.levelCapacity * segment.NumLevels
}

// Enter assigns plate the least occupied level with room. A full car park
// wins over denied, the error of an unauthorized plate.
func (r *Registry) Enter(plate core.Plate, denied error, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.total >= r.Capacity() {
		return -1, ErrFull
	}
	if denied != nil {
		return -1, denied
	}
	if _, ok := r.visits[plate]; ok {
		return -1, ErrAlreadyInside
	}

	level := -1
	for i, n := range r.occupancy {
		if n < r.levelCapacity && (level < 0 || n < r.occupancy[level]) {
			level = i
		}
	}
	if level < 0 {
		return -1, ErrFull
	}

	r.visits[plate] = &Visit{Plate: plate, Level: level, Entered: now}
	r.occupancy[level]++
	r.total++
	return level, nil
}

// Seen records that plate passed the sensor of level. A vehicle parking on
// another level than assigned is moved there if that level has room.
func (r *Registry) Seen(plate core.Plate, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[plate]
	if !ok {
		return ErrNotInside
	}
	if v.Level == level {
		return nil
	}
	if r.occupancy[level] >= r.levelCapacity {
		return ErrLevelFull
	}
	r.occupancy[v.Level]--
	r.occupancy[level]++
	v.Level = level
	return nil
}

// Leave removes plate and returns its visit.
func (r *Registry) Leave(plate core.Plate) (Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[plate]
	if !ok {
		return Visit{}, false
	}
	delete(r.visits, plate)
	r.occupancy[v.Level]--
	r.total--
	return *v, true
}

// Occupancy returns the vehicles per level and in total.
func (r *Registry) Occupancy() ([segment.NumLevels]int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupancy, r.total
}

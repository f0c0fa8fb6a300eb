// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package manager

import "go.parkwise.io/carpark/segment"

// LevelStatus describes one level.
type LevelStatus struct {
	Level       int   `json:"level"`
	Occupancy   int   `json:"occupancy"`
	Capacity    int   `json:"capacity"`
	Temperature int16 `json:"temperature"`
	Alarm       bool  `json:"alarm"`
}

// Status is a point in time view of the car park.
type Status struct {
	Levels   []LevelStatus `json:"levels"`
	Inside   int           `json:"inside"`
	Capacity int           `json:"capacity"`
	Revenue  float64       `json:"revenue"`
	Counts   Counts        `json:"counts"`
}

// Status returns the current occupancy, revenue and level readings.
func (m *Manager) Status() Status {
	occupancy, total := m.registry.Occupancy()

	m.mu.Lock()
	readings, counts := m.readings, m.counts
	m.mu.Unlock()

	st := Status{
		Levels:   make([]LevelStatus, segment.NumLevels),
		Inside:   total,
		Capacity: m.registry.Capacity(),
		Revenue:  m.biller.Revenue(),
		Counts:   counts,
	}
	for i := range st.Levels {
		st.Levels[i] = LevelStatus{
			Level:       i + 1,
			Occupancy:   occupancy[i],
			Capacity:    m.registry.levelCapacity,
			Temperature: readings[i].Temperature,
			Alarm:       readings[i].Alarm,
		}
	}
	return st
}

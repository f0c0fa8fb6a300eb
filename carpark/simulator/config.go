// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"time"

	"go.parkwise.io/carpark/workerpool"
)

// Config tunes a simulation. Every duration is multiplied by TimeScale.
type Config struct {
	Vehicles  int
	TimeScale float64
	PoolSize  int
	Seed      int64

	// MaxVehicles bounds the vehicles in flight, zero means Vehicles.
	MaxVehicles int

	GateTransition      time.Duration
	ArrivalMin          time.Duration
	ArrivalMax          time.Duration
	DwellMin            time.Duration
	DwellMax            time.Duration
	TemperatureInterval time.Duration
	HandshakeTimeout    time.Duration
}

// DefaultConfig returns the timings of the physical car park.
func DefaultConfig() Config {
	return Config{
		Vehicles:            100,
		TimeScale:           1,
		PoolSize:            workerpool.DefaultSize,
		Seed:                time.Now().UnixNano(),
		GateTransition:      10 * time.Millisecond,
		ArrivalMin:          1 * time.Millisecond,
		ArrivalMax:          100 * time.Millisecond,
		DwellMin:            100 * time.Millisecond,
		DwellMax:            10 * time.Second,
		TemperatureInterval: 2 * time.Millisecond,
		HandshakeTimeout:    30 * time.Second,
	}
}

// Scale applies TimeScale to d.
func (c Config) Scale(d time.Duration) time.Duration {
	if c.TimeScale <= 0 {
		return d
	}
	return time.Duration(float64(d) * c.TimeScale)
}

func (c Config) maxVehicles() int {
	if c.MaxVehicles > 0 {
		return c.MaxVehicles
	}
	if c.Vehicles > 0 {
		return c.Vehicles
	}
	return 1
}

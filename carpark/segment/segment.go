// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package segment describes the hardware shared between the simulator and the
// manager, and the namespace both processes use to find it.
package segment

import (
	"sync/atomic"
	"time"

	"go.parkwise.io/carpark/core"
)

const (
	NumEntrances = 5
	NumExits     = 5
	NumLevels    = 5

	// Name identifies the hardware segment.
	Name = "PARKING"
	// HandshakeName identifies the handshake segment.
	HandshakeName = "PARKING_HANDSHAKE"
)

// Entrance is the hardware in front of one entrance lane.
type Entrance struct {
	Sensor *core.LicenseSensor
	Gate   *core.BoomGate
	Sign   *core.Sign
}

// Exit is the hardware in front of one exit lane.
type Exit struct {
	Sensor *core.LicenseSensor
	Gate   *core.BoomGate
}

// Level is the hardware of one parking level.
type Level struct {
	Sensor      *core.LicenseSensor
	temperature atomic.Int32
	alarm       atomic.Bool
}

// Temperature returns the last reading of the level's temperature sensor.
func (l *Level) Temperature() int16 {
	return int16(l.temperature.Load())
}

// SetTemperature stores a temperature reading.
func (l *Level) SetTemperature(t int16) {
	l.temperature.Store(int32(t))
}

// Alarm reports whether the level's alarm is raised.
func (l *Level) Alarm() bool {
	return l.alarm.Load()
}

// SetAlarm raises or clears the level's alarm.
func (l *Level) SetAlarm(on bool) {
	l.alarm.Store(on)
}

// Segment is the complete shared hardware of the car park.
type Segment struct {
	Entrances [NumEntrances]Entrance
	Exits     [NumExits]Exit
	Levels    [NumLevels]Level
}

// Options tunes the devices of a new segment.
type Options struct {
	// GateFaultTimeout bounds every gate transition, zero waits forever.
	GateFaultTimeout time.Duration
}

// New returns a segment with every gate closed and every sensor empty.
func New(opts Options) *Segment {
	s := &Segment{}
	for i := range s.Entrances {
		s.Entrances[i] = Entrance{
			Sensor: core.NewLicenseSensor(),
			Gate:   core.NewBoomGate(opts.GateFaultTimeout),
			Sign:   core.NewSign(),
		}
	}
	for i := range s.Exits {
		s.Exits[i] = Exit{
			Sensor: core.NewLicenseSensor(),
			Gate:   core.NewBoomGate(opts.GateFaultTimeout),
		}
	}
	for i := range s.Levels {
		s.Levels[i].Sensor = core.NewLicenseSensor()
	}
	return s
}

// Gates returns every boom gate of the segment, entrances first.
func (s *Segment) Gates() []*core.BoomGate {
	gates := make([]*core.BoomGate, 0, NumEntrances+NumExits)
	for i := range s.Entrances {
		gates = append(gates, s.Entrances[i].Gate)
	}
	for i := range s.Exits {
		gates = append(gates, s.Exits[i].Gate)
	}
	return gates
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package segment

import (
	"context"
	"fmt"
	"time"

	"go.parkwise.io/carpark/core"
)

// Zone selects which group of devices an index refers to.
type Zone uint8

const (
	ZoneEntrance Zone = iota
	ZoneExit
	ZoneLevel
)

func (z Zone) String() string {
	switch z {
	case ZoneEntrance:
		return "entrance"
	case ZoneExit:
		return "exit"
	case ZoneLevel:
		return "level"
	}
	return "unknown"
}

// LevelReading is a snapshot of a level's environment sensors.
type LevelReading struct {
	Temperature int16
	Alarm       bool
}

// ManagerPort is the manager's view of the hardware. It is implemented by Local
// for an in-process segment and by the ipc client for a remote one.
type ManagerPort interface {
	// ReadPlate blocks until a car triggers the sensor of zone[index].
	ReadPlate(ctx context.Context, zone Zone, index int) (core.Plate, error)
	// UpdateSign shows display on the sign of entrance index.
	UpdateSign(ctx context.Context, index int, display byte) error
	// AdmitOne cycles the gate of zone[index] once, holding it open for hold.
	AdmitOne(ctx context.Context, zone Zone, index int, hold time.Duration) error
	// ReadLevel returns the environment readings of level index.
	ReadLevel(ctx context.Context, index int) (LevelReading, error)
}

// HandshakePort is the manager's side of the handshake.
type HandshakePort interface {
	AwaitShmReady(ctx context.Context) error
	SignalManagerLinked() error
	AwaitSimulationFinished(ctx context.Context) error
}

// Local serves ManagerPort from a segment in this process.
type Local struct {
	seg *Segment
}

func NewLocal(seg *Segment) *Local {
	return &Local{seg: seg}
}

func (l *Local) sensor(zone Zone, index int) (*core.LicenseSensor, error) {
	if err := checkIndex(zone, index); err != nil {
		return nil, err
	}
	switch zone {
	case ZoneEntrance:
		return l.seg.Entrances[index].Sensor, nil
	case ZoneExit:
		return l.seg.Exits[index].Sensor, nil
	default:
		return l.seg.Levels[index].Sensor, nil
	}
}

func (l *Local) ReadPlate(ctx context.Context, zone Zone, index int) (core.Plate, error) {
	s, err := l.sensor(zone, index)
	if err != nil {
		return core.Plate{}, err
	}
	return s.Read(ctx)
}

func (l *Local) UpdateSign(ctx context.Context, index int, display byte) error {
	if err := checkIndex(ZoneEntrance, index); err != nil {
		return err
	}
	return l.seg.Entrances[index].Sign.Update(ctx, display)
}

func (l *Local) AdmitOne(ctx context.Context, zone Zone, index int, hold time.Duration) error {
	if err := checkIndex(zone, index); err != nil {
		return err
	}
	switch zone {
	case ZoneEntrance:
		return l.seg.Entrances[index].Gate.AdmitOne(ctx, hold)
	case ZoneExit:
		return l.seg.Exits[index].Gate.AdmitOne(ctx, hold)
	}
	return fmt.Errorf("%s has no gate", zone)
}

func (l *Local) ReadLevel(ctx context.Context, index int) (LevelReading, error) {
	if err := checkIndex(ZoneLevel, index); err != nil {
		return LevelReading{}, err
	}
	lvl := &l.seg.Levels[index]
	return LevelReading{Temperature: lvl.Temperature(), Alarm: lvl.Alarm()}, ctx.Err()
}

func checkIndex(zone Zone, index int) error {
	n := 0
	switch zone {
	case ZoneEntrance:
		n = NumEntrances
	case ZoneExit:
		n = NumExits
	case ZoneLevel:
		n = NumLevels
	}
	if index < 0 || index >= n {
		return fmt.Errorf("%s %d out of range [0, %d)", zone, index, n)
	}
	return nil
}

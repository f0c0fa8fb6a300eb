// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/admission"
	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
	"go.parkwise.io/carpark/vehicle"
	"go.parkwise.io/carpark/workerpool"
)

// lifecycle drives one vehicle from its entrance to its exit. Every step is a
// single sensor write, sign read or gate wait.
type lifecycle struct {
	s        *Simulator
	h        vehicle.Handle
	entrance int
	release  admission.Release
	log      *log.Entry
}

func (s *Simulator) newLifecycle(entrance int, h vehicle.Handle, release admission.Release) workerpool.Runnable {
	return &lifecycle{s: s, h: h, entrance: entrance, release: release}
}

func (l *lifecycle) Run(ctx context.Context) {
	defer l.s.finish(l.h)
	defer l.release()

	d, ok := l.s.arena.Get(l.h)
	if !ok {
		return
	}
	l.log = log.WithFields(log.Fields{"vehicle": d.ID, "plate": d.Plate, "entrance": l.entrance})

	if err := l.run(ctx, d.Plate); err != nil {
		if ctx.Err() != nil {
			l.log.WithError(err).Debug("Vehicle interrupted")
			return
		}
		l.log.WithError(err).Warn("Vehicle abandoned the car park")
	}
}

func (l *lifecycle) run(ctx context.Context, plate core.Plate) error {
	s := l.s
	ent := &s.seg.Entrances[l.entrance]

	mark := ent.Gate.Mark()
	if err := ent.Sensor.Trigger(ctx, plate); err != nil {
		return err
	}
	l.setState(vehicle.AwaitingSign)

	display, err := ent.Sign.Read(ctx)
	if err != nil {
		return err
	}
	level, ok := core.DisplayLevel(display)
	if !ok {
		s.rejected.Add(1)
		l.setState(vehicle.Rejected)
		l.log.WithField("sign", string(display)).Debug("Vehicle turned away")
		return nil
	}

	l.set(func(d *vehicle.Descriptor) {
		d.State = vehicle.Admitted
		d.Level = level
	})
	l.setState(vehicle.AtGate)
	if err := ent.Gate.AwaitOpened(ctx, mark); err != nil {
		if !errors.Is(err, fatalerror.ErrGateFault) {
			return err
		}
		s.rejected.Add(1)
		l.setState(vehicle.Rejected)
		l.log.WithError(err).Warn("Entrance gate failed, vehicle turned away")
		return nil
	}
	s.admitted.Add(1)

	l.release()
	l.setState(vehicle.Parked)
	l.log.WithField("level", level).Debug("Vehicle parked")
	if err := sleep(ctx, s.gen.Between(s.cfg.Scale(s.cfg.DwellMin), s.cfg.Scale(s.cfg.DwellMax))); err != nil {
		return err
	}

	l.setState(vehicle.AtLevelSensor)
	s.seg.Levels[level].Sensor.Pass(plate)

	return l.leave(ctx, plate)
}

// leave takes the vehicle through a random exit. An exit lane holds one
// vehicle at a time.
func (l *lifecycle) leave(ctx context.Context, plate core.Plate) error {
	s := l.s
	i := s.gen.Lane(len(s.seg.Exits))
	exit := &s.seg.Exits[i]

	lane := &s.exitLanes[i]
	lane.Lock()
	defer lane.Unlock()

	l.set(func(d *vehicle.Descriptor) { d.State = vehicle.AtExitSensor })
	mark := exit.Gate.Mark()
	if err := exit.Sensor.Trigger(ctx, plate); err != nil {
		return err
	}
	if err := exit.Gate.AwaitOpened(ctx, mark); err != nil {
		if !errors.Is(err, fatalerror.ErrGateFault) {
			return err
		}
		l.log.WithError(err).WithField("exit", i).Warn("Exit gate failed, vehicle left around it")
	}

	l.setState(vehicle.Gone)
	l.log.WithField("exit", i).Debug("Vehicle left")
	return nil
}

func (l *lifecycle) setState(st vehicle.State) {
	l.set(func(d *vehicle.Descriptor) { d.State = st })
}

func (l *lifecycle) set(fn func(d *vehicle.Descriptor)) {
	l.s.update(l.h, fn)
}

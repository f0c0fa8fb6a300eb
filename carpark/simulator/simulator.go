// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package simulator plays the physical side of the car park: it owns the
// hardware segment, moves the gates and drives vehicles through it.
package simulator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.parkwise.io/carpark/admission"
	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/segment"
	"go.parkwise.io/carpark/vehicle"
	"go.parkwise.io/carpark/workerpool"
)

// ErrNotStarted is returned by Arrive before Start or after Stop.
var ErrNotStarted = errors.New("SimulatorNotStarted")

// Transition is reported for every state change of a vehicle.
type Transition func(d vehicle.Descriptor)

// Stats counts vehicles by outcome.
type Stats struct {
	Arrived  int64 `json:"arrived"`
	Admitted int64 `json:"admitted"`
	Rejected int64 `json:"rejected"`
	Gone     int64 `json:"gone"`
	// Unserved counts vehicles removed before they cleared their entrance.
	Unserved int64 `json:"unserved"`
}

// Simulator owns a segment and the vehicles moving through it.
type Simulator struct {
	cfg Config
	seg *segment.Segment
	hs  *core.Handshake
	gen *vehicle.Generator

	arena    *vehicle.Arena
	pool     *workerpool.Pool
	pipeline *admission.Pipeline

	exitLanes [segment.NumExits]sync.Mutex
	observers []Transition

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	arrivals [segment.NumEntrances]chan vehicle.Handle
	group    *errgroup.Group
	stop     context.CancelFunc

	arrived, admitted, rejected, gone, unserved atomic.Int64
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithObserver registers t for every vehicle state change.
func WithObserver(t Transition) Option {
	return func(s *Simulator) { s.observers = append(s.observers, t) }
}

// New returns a simulator for seg. Vehicles draw their plates from gen.
func New(cfg Config, seg *segment.Segment, hs *core.Handshake, gen *vehicle.Generator, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:   cfg,
		seg:   seg,
		hs:    hs,
		gen:   gen,
		arena: vehicle.NewArena(cfg.maxVehicles()),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the gate motors, the temperature sensors and the entrance
// pipeline.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.stop = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)

	s.pool = workerpool.New(s.cfg.PoolSize)
	s.pipeline = admission.New(segment.NumEntrances, s.pool, s.newLifecycle,
		admission.WithActivate(func(h vehicle.Handle) {
			s.update(h, func(d *vehicle.Descriptor) { d.State = vehicle.AtEntranceSensor })
		}))

	transition := s.cfg.Scale(s.cfg.GateTransition)
	for _, g := range s.seg.Gates() {
		g := g
		s.group.Go(func() error { return actuate(ctx, g, transition) })
	}
	s.group.Go(func() error { return s.reportTemperatures(ctx) })

	for i := range s.arrivals {
		i := i
		s.arrivals[i] = make(chan vehicle.Handle, s.cfg.maxVehicles())
		s.group.Go(func() error { return s.feed(ctx, i) })
	}
}

// feed hands the arrivals of one entrance to the pipeline in order.
func (s *Simulator) feed(ctx context.Context, entrance int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case h := <-s.arrivals[entrance]:
			if err := s.pipeline.Enqueue(ctx, entrance, h); err != nil {
				s.finish(h)
			}
		}
	}
}

// Arrive puts a vehicle carrying plate in the line of entrance.
func (s *Simulator) Arrive(plate core.Plate, entrance int) (vehicle.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.group == nil {
		return vehicle.Handle{}, ErrNotStarted
	}
	d := vehicle.NewDescriptor(plate, entrance)
	h, err := s.arena.Insert(d)
	if err != nil {
		return vehicle.Handle{}, err
	}
	s.inflight++
	s.arrived.Add(1)
	s.notify(d)

	s.arrivals[entrance] <- h
	return h, nil
}

// AwaitIdle blocks until every vehicle that arrived is gone.
func (s *Simulator) AwaitIdle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.idle.Broadcast()
	})
	defer stop()

	for s.inflight > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.idle.Wait()
	}
	return nil
}

// Stop quits the pipeline, wakes the entrances, joins the workers and stops
// the hardware.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	group, stop := s.group, s.stop
	s.group = nil
	s.mu.Unlock()

	if group == nil {
		return nil
	}

	stop()
	s.pipeline.Shutdown()
	if dropped := s.pool.Shutdown(); dropped > 0 {
		log.Warnf("%d vehicles never reached their entrance", dropped)
	}
	return group.Wait()
}

// Run drives a whole simulation: it announces the segment, waits for the
// manager, sends the configured number of vehicles through the car park and
// reports when the last one left.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.hs.SignalShmReady(); err != nil {
		return err
	}

	linkCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	err := s.hs.AwaitManagerLinked(linkCtx)
	cancel()
	if err != nil {
		return err
	}
	log.Info("Manager linked, generating traffic")

	s.Start(ctx)
	err = s.generate(ctx)
	if err == nil {
		err = s.AwaitIdle(ctx)
	}
	if stopErr := s.Stop(); err == nil {
		err = stopErr
	}
	if err != nil {
		return err
	}

	st := s.Stats()
	log.WithFields(log.Fields{
		"arrived":  st.Arrived,
		"admitted": st.Admitted,
		"rejected": st.Rejected,
	}).Info("Simulation finished")
	return s.hs.SignalSimulationFinished()
}

func (s *Simulator) generate(ctx context.Context) error {
	for i := 0; i < s.cfg.Vehicles; i++ {
		delay := s.gen.Between(s.cfg.Scale(s.cfg.ArrivalMin), s.cfg.Scale(s.cfg.ArrivalMax))
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if _, err := s.Arrive(s.nextPlate(), s.gen.Lane(segment.NumEntrances)); err != nil {
			return err
		}
	}
	return nil
}

// nextPlate draws a plate no vehicle in the simulation carries.
func (s *Simulator) nextPlate() core.Plate {
	for i := 0; i < 8; i++ {
		if p := s.gen.Plate(); !s.arena.ContainsPlate(p) {
			return p
		}
	}
	return s.gen.RandomPlate()
}

// Stats returns the vehicle counters.
func (s *Simulator) Stats() Stats {
	return Stats{
		Arrived:  s.arrived.Load(),
		Admitted: s.admitted.Load(),
		Rejected: s.rejected.Load(),
		Gone:     s.gone.Load(),
		Unserved: s.unserved.Load(),
	}
}

// Vehicles returns the vehicles currently in the simulation.
func (s *Simulator) Vehicles() []vehicle.Descriptor {
	return s.arena.Snapshot()
}

func (s *Simulator) update(h vehicle.Handle, fn func(d *vehicle.Descriptor)) vehicle.Descriptor {
	var out vehicle.Descriptor
	s.arena.Update(h, func(d *vehicle.Descriptor) {
		fn(d)
		out = *d
	})
	s.notify(out)
	return out
}

func (s *Simulator) notify(d vehicle.Descriptor) {
	for _, o := range s.observers {
		o(d)
	}
}

// finish removes a vehicle from the simulation.
func (s *Simulator) finish(h vehicle.Handle) {
	d, ok := s.arena.Get(h)
	if !ok {
		return
	}
	if !d.State.Terminal() {
		s.unserved.Add(1)
		log.WithFields(log.Fields{"vehicle": d.ID, "plate": d.Plate, "state": d.State}).Debug("Vehicle removed at its entrance")
	}
	if d.State != vehicle.Gone {
		d = s.update(h, func(d *vehicle.Descriptor) { d.State = vehicle.Gone })
	}
	s.arena.Remove(h)
	s.gone.Add(1)

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.idle.Broadcast()
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package manager is the controller of the car park. It attaches to the
// simulator's hardware, decides who may enter, assigns levels and bills
// departing vehicles.
package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.parkwise.io/carpark/billing"
	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
	"go.parkwise.io/carpark/plates"
	"go.parkwise.io/carpark/segment"
)

// Manager runs one loop per entrance, exit and level sensor.
type Manager struct {
	cfg      Config
	port     segment.ManagerPort
	hs       segment.HandshakePort
	plates   *plates.Table
	biller   billing.Biller
	registry *Registry
	now      func() time.Time

	mu       sync.Mutex
	readings [segment.NumLevels]segment.LevelReading
	counts   Counts
}

// Counts tallies the decisions taken at the entrances.
type Counts struct {
	Admitted int `json:"admitted"`
	Denied   int `json:"denied"`
	Full     int `json:"full"`
	Departed int `json:"departed"`
	// Faulted counts admitted vehicles turned away by an entrance gate that
	// failed to open.
	Faulted int `json:"faulted"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for billing.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(cfg Config, port segment.ManagerPort, hs segment.HandshakePort, table *plates.Table, biller billing.Biller, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		port:     port,
		hs:       hs,
		plates:   table,
		biller:   biller,
		registry: NewRegistry(cfg.LevelCapacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the vehicles inside the car park.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Run links to the simulator and serves the hardware until the simulator
// reports it finished or ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	readyCtx, cancelReady := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	err := m.hs.AwaitShmReady(readyCtx)
	cancelReady()
	if err != nil {
		return err
	}
	if err := m.hs.SignalManagerLinked(); err != nil {
		return err
	}
	log.Info("Linked to simulator")

	flowCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := core.NewWatchdog(cancel)
	watchdog.GoWait(flowCtx, string(core.StepSimulationFinished), m.hs.AwaitSimulationFinished, core.ErrSimulationFinished)

	err = m.Serve(flowCtx)
	watchdog.Cancel(context.Canceled)
	watchdog.Wait()

	if errors.Is(context.Cause(flowCtx), core.ErrSimulationFinished) {
		_, total := m.registry.Occupancy()
		log.WithFields(log.Fields{"revenue": m.biller.Revenue(), "inside": total}).Info("Simulation finished")
		return nil
	}
	if err != nil {
		return err
	}
	return context.Cause(flowCtx)
}

// Serve runs the device loops until ctx ends or one of them fails.
func (m *Manager) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < segment.NumEntrances; i++ {
		i := i
		g.Go(func() error { return m.entranceLoop(ctx, i) })
	}
	for i := 0; i < segment.NumExits; i++ {
		i := i
		g.Go(func() error { return m.exitLoop(ctx, i) })
	}
	for i := 0; i < segment.NumLevels; i++ {
		i := i
		g.Go(func() error { return m.levelLoop(ctx, i) })
	}
	g.Go(func() error { return m.monitorLoop(ctx) })
	return g.Wait()
}

// Decide returns what the sign of an entrance shows to plate and records the
// admitted vehicle.
func (m *Manager) Decide(plate core.Plate) byte {
	level, err := m.registry.Enter(plate, m.plates.Lookup(plate), m.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case errors.Is(err, ErrFull):
		m.counts.Full++
		return core.SignFull
	case err != nil:
		m.counts.Denied++
		return core.SignDenied
	}
	m.counts.Admitted++
	return core.LevelDisplay(level)
}

func (m *Manager) entranceLoop(ctx context.Context, i int) error {
	logger := log.WithField("entrance", i)
	for {
		plate, err := m.port.ReadPlate(ctx, segment.ZoneEntrance, i)
		if err != nil {
			return stopped(ctx, err)
		}

		display := m.Decide(plate)
		logger.WithFields(log.Fields{"plate": plate, "sign": string(display)}).Debug("Vehicle at entrance")
		if err := m.port.UpdateSign(ctx, i, display); err != nil {
			return stopped(ctx, err)
		}
		if _, ok := core.DisplayLevel(display); !ok {
			continue
		}

		if err := m.port.AdmitOne(ctx, segment.ZoneEntrance, i, m.cfg.GateHold); err != nil {
			if errors.Is(err, fatalerror.ErrGateFault) {
				m.turnedAway(plate)
			} else if ctx.Err() != nil {
				return nil
			}
			logger.WithError(err).WithField("plate", plate).Error("Entrance gate failed")
		}
	}
}

// turnedAway forgets an admitted vehicle the entrance gate never let in.
func (m *Manager) turnedAway(plate core.Plate) {
	m.registry.Leave(plate)
	m.mu.Lock()
	m.counts.Faulted++
	m.mu.Unlock()
}

func (m *Manager) exitLoop(ctx context.Context, i int) error {
	logger := log.WithField("exit", i)
	for {
		plate, err := m.port.ReadPlate(ctx, segment.ZoneExit, i)
		if err != nil {
			return stopped(ctx, err)
		}

		if visit, ok := m.registry.Leave(plate); ok {
			amount, err := m.biller.Bill(plate, m.now().Sub(visit.Entered))
			if err != nil {
				logger.WithError(err).WithField("plate", plate).Error("Failed to bill vehicle")
			} else {
				logger.WithFields(log.Fields{"plate": plate, "amount": amount}).Debug("Vehicle billed")
			}
			m.mu.Lock()
			m.counts.Departed++
			m.mu.Unlock()
		} else {
			logger.WithField("plate", plate).Warn("Unknown vehicle at exit")
		}

		if err := m.port.AdmitOne(ctx, segment.ZoneExit, i, m.cfg.GateHold); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WithError(err).WithField("plate", plate).Error("Exit gate failed")
		}
	}
}

func (m *Manager) levelLoop(ctx context.Context, i int) error {
	for {
		plate, err := m.port.ReadPlate(ctx, segment.ZoneLevel, i)
		if err != nil {
			return stopped(ctx, err)
		}
		switch err := m.registry.Seen(plate, i); {
		case errors.Is(err, ErrNotInside):
			log.WithFields(log.Fields{"level": i, "plate": plate}).Warn("Unknown vehicle on level")
		case err != nil:
			log.WithFields(log.Fields{"level": i, "plate": plate}).WithError(err).Warn("Vehicle parked on a full level")
		}
	}
}

func (m *Manager) monitorLoop(ctx context.Context) error {
	if m.cfg.MonitorInterval <= 0 {
		return nil
	}
	t := time.NewTicker(m.cfg.MonitorInterval)
	defer t.Stop()
	for {
		for i := 0; i < segment.NumLevels; i++ {
			r, err := m.port.ReadLevel(ctx, i)
			if err != nil {
				return stopped(ctx, err)
			}
			m.mu.Lock()
			m.readings[i] = r
			m.mu.Unlock()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// stopped hides the error of a loop interrupted by its context.
func stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if t := fatalerror.TypeOf(err); t != fatalerror.Unknown {
		log.WithError(err).Errorf("Device loop failed with %s", t)
	}
	return err
}

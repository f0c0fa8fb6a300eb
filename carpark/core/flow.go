// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"sync"

	"go.parkwise.io/carpark/fatalerror"
)

// HandshakeStep names one step of the startup/shutdown protocol.
type HandshakeStep string

const (
	StepShmReady           HandshakeStep = "shm_ready"
	StepManagerLinked      HandshakeStep = "manager_linked"
	StepSimulationFinished HandshakeStep = "simulation_finished"
)

// Handshake orders the lifetime of the simulator and the manager:
//
//  1. the simulator creates the segment and signals shm_ready
//  2. the manager attaches and signals manager_linked
//  3. the simulator generates traffic, then signals simulation_finished
//
// Signaling a step before its predecessor fails with a ProtocolViolation.
type Handshake struct {
	mu       sync.Mutex
	signaled map[HandshakeStep]bool

	shmReadyGate           Gate
	managerLinkedGate      Gate
	simulationFinishedGate Gate
}

func NewHandshake() *Handshake {
	return &Handshake{
		signaled:               make(map[HandshakeStep]bool),
		shmReadyGate:           NewGate(1),
		managerLinkedGate:      NewGate(1),
		simulationFinishedGate: NewGate(1),
	}
}

// SignalShmReady is called by the simulator once the segment exists.
func (h *Handshake) SignalShmReady() error {
	return h.signal(StepShmReady, "", h.shmReadyGate)
}

// SignalManagerLinked is called by the manager once it attached.
func (h *Handshake) SignalManagerLinked() error {
	return h.signal(StepManagerLinked, StepShmReady, h.managerLinkedGate)
}

// SignalSimulationFinished is called by the simulator after the last car left.
func (h *Handshake) SignalSimulationFinished() error {
	return h.signal(StepSimulationFinished, StepManagerLinked, h.simulationFinishedGate)
}

func (h *Handshake) AwaitShmReady(ctx context.Context) error {
	return HandshakeError(StepShmReady, h.shmReadyGate.Await(ctx))
}

func (h *Handshake) AwaitManagerLinked(ctx context.Context) error {
	return HandshakeError(StepManagerLinked, h.managerLinkedGate.Await(ctx))
}

func (h *Handshake) AwaitSimulationFinished(ctx context.Context) error {
	return HandshakeError(StepSimulationFinished, h.simulationFinishedGate.Await(ctx))
}

// Signaled reports whether step has been signaled.
func (h *Handshake) Signaled(step HandshakeStep) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.signaled[step]
}

// CancelWithError releases every waiter with err.
func (h *Handshake) CancelWithError(err error) {
	h.shmReadyGate.CancelWithError(err)
	h.managerLinkedGate.CancelWithError(err)
	h.simulationFinishedGate.CancelWithError(err)
}

func (h *Handshake) signal(step, after HandshakeStep, g Gate) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if after != "" && !h.signaled[after] {
		return fatalerror.New(fatalerror.ProtocolViolation, "%s signaled before %s", step, after)
	}
	if h.signaled[step] {
		return fatalerror.New(fatalerror.ProtocolViolation, "%s signaled twice", step)
	}
	if err := g.WalkThrough(); err != nil {
		return err
	}
	h.signaled[step] = true
	return nil
}

// HandshakeError reports an expired deadline while awaiting step as a
// HandshakeTimeout. Other errors are returned unchanged.
func HandshakeError(step HandshakeStep, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fatalerror.New(fatalerror.HandshakeTimeout, "%s never arrived", step)
	}
	return err
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.parkwise.io/carpark/fatalerror"
)

// GateState is the position of a boom gate. The order matches the shared
// layout: C, O, R, L.
type GateState uint8

const (
	GateClosed GateState = iota
	GateOpen
	GateRaising
	GateLowering
)

// ErrIllegalTransition is returned when a gate is asked for a move its current
// state does not allow.
var ErrIllegalTransition = errors.New("ErrIllegalTransition")

// GateObserver is told about every state change of a gate. It runs with the
// gate lock held and must not call back into the gate.
type GateObserver func(from, to GateState)

// BoomGate is the state machine of a single boom gate.
type BoomGate struct {
	// admitMu serializes AdmitOne callers for the whole open/close cycle.
	admitMu sync.Mutex

	mu           sync.Mutex
	changed      *sync.Cond
	state        GateState
	opened       uint64
	faults       uint64
	abandoned    bool
	faultTimeout time.Duration
	observers    []GateObserver
}

// GateMark is a point in the history of a gate. A vehicle takes one before it
// asks to be let through and waits from it in AwaitOpened.
type GateMark struct {
	opened uint64
	faults uint64
}

// NewBoomGate returns a closed gate. A transition that does not complete within
// faultTimeout fails with a GateFault; zero waits forever.
func NewBoomGate(faultTimeout time.Duration) *BoomGate {
	g := &BoomGate{faultTimeout: faultTimeout}
	g.changed = sync.NewCond(&g.mu)
	return g
}

// Observe registers o for every future state change.
func (g *BoomGate) Observe(o GateObserver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, o)
}

// State returns the current gate state.
func (g *BoomGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Cycles returns how many times the gate opened for a vehicle. A raise that
// completes after it was given up as faulty is not counted.
func (g *BoomGate) Cycles() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opened
}

// Faults returns how many times the gate failed to open.
func (g *BoomGate) Faults() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faults
}

// Mark returns the current point in the gate history.
func (g *BoomGate) Mark() GateMark {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateMark{opened: g.opened, faults: g.faults}
}

// Open starts raising a closed gate and waits until it is open.
func (g *BoomGate) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateClosed {
		return g.illegal(GateRaising)
	}
	return g.raiseLocked(ctx)
}

// Close starts lowering an open gate and waits until it is closed.
func (g *BoomGate) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GateOpen {
		return g.illegal(GateLowering)
	}
	g.setLocked(GateLowering)
	return g.awaitLocked(ctx, fatalerror.GateCloseFault, GateClosed)
}

// AdmitOne opens the gate, keeps it open for hold and closes it again.
// Concurrent callers are served one full cycle at a time. A gate left open or
// in motion by an earlier fault is brought back to closed first. When the gate
// cannot be opened the error is a GateFault and vehicles waiting in
// AwaitOpened are told.
func (g *BoomGate) AdmitOne(ctx context.Context, hold time.Duration) error {
	g.admitMu.Lock()
	defer g.admitMu.Unlock()

	if err := g.recoverAndOpen(ctx); err != nil {
		return err
	}

	if hold > 0 {
		t := time.NewTimer(hold)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	return g.Close(ctx)
}

func (g *BoomGate) recoverAndOpen(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.awaitLocked(ctx, fatalerror.GateFault, GateClosed, GateOpen)
	if err == nil && g.state == GateOpen {
		g.setLocked(GateLowering)
		err = g.awaitLocked(ctx, fatalerror.GateFault, GateClosed)
	}
	if err == nil {
		return g.raiseLocked(ctx)
	}
	if ctx.Err() == nil {
		g.faults++
		g.changed.Broadcast()
	}
	return err
}

// raiseLocked raises a closed gate. A raise that times out is abandoned: the
// gate stays Raising and its late completion does not count as an opening.
func (g *BoomGate) raiseLocked(ctx context.Context) error {
	g.setLocked(GateRaising)
	err := g.awaitLocked(ctx, fatalerror.GateFault, GateOpen)
	if err != nil && g.state == GateRaising {
		g.abandoned = true
		if ctx.Err() == nil {
			g.faults++
			g.changed.Broadcast()
		}
	}
	return err
}

// AwaitMotion blocks until the gate is raising or lowering and returns that
// state. It is the hardware side of Open and Close.
func (g *BoomGate) AwaitMotion(ctx context.Context) (GateState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := waitCond(ctx, g.changed, func() bool {
		return g.state == GateRaising || g.state == GateLowering
	})
	return g.state, err
}

// Complete finishes the motion started from the given transient state.
func (g *BoomGate) Complete(from GateState) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != from {
		return g.illegal(from)
	}
	switch from {
	case GateRaising:
		g.setLocked(GateOpen)
	case GateLowering:
		g.setLocked(GateClosed)
	default:
		return g.illegal(from)
	}
	return nil
}

// AwaitOpened blocks until the gate opened for a vehicle after mark. If the
// gate failed to open after mark it returns a GateFault instead; the vehicle
// it was meant for will not be let through.
func (g *BoomGate) AwaitOpened(ctx context.Context, mark GateMark) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := waitCond(ctx, g.changed, func() bool {
		return g.faults > mark.faults || g.opened > mark.opened
	})
	if err != nil {
		return err
	}
	if g.faults > mark.faults {
		return fatalerror.New(fatalerror.GateFault, "gate failed to open, now %s", g.state)
	}
	return nil
}

func (g *BoomGate) setLocked(to GateState) {
	from := g.state
	g.state = to
	if to == GateOpen {
		if g.abandoned {
			g.abandoned = false
		} else {
			g.opened++
		}
	}
	for _, o := range g.observers {
		o(from, to)
	}
	g.changed.Broadcast()
}

func (g *BoomGate) awaitLocked(ctx context.Context, t fatalerror.ErrorType, want ...GateState) error {
	waitCtx := ctx
	if g.faultTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.faultTimeout)
		defer cancel()
	}

	reached := func() bool {
		for _, w := range want {
			if g.state == w {
				return true
			}
		}
		return false
	}
	err := waitCond(waitCtx, g.changed, reached)
	if err != nil && ctx.Err() == nil {
		return fatalerror.New(t, "gate still %s after %s, expected %v", g.state, g.faultTimeout, want)
	}
	return err
}

func (g *BoomGate) illegal(to GateState) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, g.state, to)
}

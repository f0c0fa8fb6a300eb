// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"sync"
)

// Gate is a rendezvous that opens once count parties walked through it.
type Gate interface {
	WalkThrough() error
	Await(context.Context) error
	CancelWithError(error)
}

// ErrGateIntegrity is returned when more parties walk through than expected.
var ErrGateIntegrity = errors.New("ErrGateIntegrity")

// ErrGateCanceled is returned to waiters of a gate canceled without a cause.
var ErrGateCanceled = errors.New("ErrGateCanceled")

type gateImpl struct {
	mu            sync.Mutex
	gateCondition *sync.Cond
	count         uint16
	arrived       uint16
	canceled      bool
	err           error
}

// WalkThrough walks through this gate without awaiting others.
func (g *gateImpl) WalkThrough() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.arrived == g.count {
		return ErrGateIntegrity
	}

	g.arrived++

	if g.arrived == g.count {
		g.gateCondition.Broadcast()
	}

	return nil
}

// Await suspends the caller until every expected party walked through, the
// gate is canceled or ctx ends.
func (g *gateImpl) Await(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := waitCond(ctx, g.gateCondition, func() bool {
		return g.arrived == g.count || g.canceled
	})
	if err != nil {
		return err
	}

	if g.canceled {
		if g.err != nil {
			return g.err
		}
		return ErrGateCanceled
	}

	return nil
}

// CancelWithError cancels gate condition with error and awakes suspended threads.
func (g *gateImpl) CancelWithError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = true
	g.err = err
	g.gateCondition.Broadcast()
}

// NewGate returns new gate instance.
func NewGate(count uint16) Gate {
	g := &gateImpl{count: count}
	g.gateCondition = sync.NewCond(&g.mu)
	return g
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatchdogCancelsWithCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	w := NewWatchdog(cancel)

	h := NewHandshake()
	w.GoWait(ctx, "simulation_finished", h.AwaitSimulationFinished, ErrSimulationFinished)

	assert.NoError(t, h.SignalShmReady())
	assert.NoError(t, h.SignalManagerLinked())
	assert.NoError(t, h.SignalSimulationFinished())

	<-ctx.Done()
	w.Wait()
	assert.Equal(t, ErrSimulationFinished, context.Cause(ctx))
}

func TestWatchdogKeepsFirstCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	w := NewWatchdog(cancel)

	first := errors.New("first")
	w.Cancel(first)
	w.Cancel(errors.New("second"))

	assert.Equal(t, first, context.Cause(ctx))
}

func TestWatchdogQuietWhenCanceledElsewhere(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	w := NewWatchdog(cancel)

	h := NewHandshake()
	w.GoWait(ctx, "simulation_finished", h.AwaitSimulationFinished, ErrSimulationFinished)

	stop := errors.New("signal")
	cancel(stop)
	w.Wait()
	assert.Equal(t, stop, context.Cause(ctx))
}

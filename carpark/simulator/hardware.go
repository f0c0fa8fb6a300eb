// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/segment"
)

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// actuate is the motor of one gate: every raise or lower it observes completes
// after the transition time.
func actuate(ctx context.Context, g *core.BoomGate, transition time.Duration) error {
	for {
		from, err := g.AwaitMotion(ctx)
		if err != nil {
			return nil
		}
		if err := sleep(ctx, transition); err != nil {
			return nil
		}
		if err := g.Complete(from); err != nil {
			log.WithError(err).Warn("Gate motor out of sync")
		}
	}
}

// reportTemperatures refreshes every level's temperature sensor until ctx ends.
func (s *Simulator) reportTemperatures(ctx context.Context) error {
	interval := s.cfg.Scale(s.cfg.TemperatureInterval)
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		for i := 0; i < segment.NumLevels; i++ {
			s.seg.Levels[i].SetTemperature(s.gen.Temperature())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrSimulationFinished is the cancel cause once the simulator reported it is done.
var ErrSimulationFinished = errors.New("SimulationFinished")

// Watchdog watches blocking waits in separate goroutines and cancels the owning
// context with the first result.
type Watchdog struct {
	cancelOnce sync.Once
	cancel     context.CancelCauseFunc
	wg         sync.WaitGroup
}

// NewWatchdog returns a watchdog canceling through cancel.
func NewWatchdog(cancel context.CancelCauseFunc) *Watchdog {
	return &Watchdog{cancel: cancel}
}

// GoWait runs wait in a separate goroutine. When wait returns nil the context
// is canceled with cause, otherwise with the returned error.
func (w *Watchdog) GoWait(ctx context.Context, name string, wait func(context.Context) error, cause error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		err := wait(ctx)
		if err == nil {
			err = cause
		} else if ctx.Err() != nil {
			// canceled by someone else, nothing to report
			return
		} else {
			log.WithError(err).Warnf("Watch on %s ended", name)
		}
		w.Cancel(err)
	}()
}

// Cancel cancels the watched context. Only the first cause is kept.
func (w *Watchdog) Cancel(cause error) {
	w.cancelOnce.Do(func() {
		log.Debugf("Canceling flows: %s", cause)
		w.cancel(cause)
	})
}

// Wait blocks until every watch returned.
func (w *Watchdog) Wait() {
	w.wg.Wait()
}

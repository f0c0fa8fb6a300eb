// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package admission feeds vehicles to the entrances one at a time. Each
// entrance owns a single-slot queue; a dispatcher moves the queued vehicle to
// the worker pool and waits until the vehicle cleared the entrance before it
// takes the next one.
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/vehicle"
	"go.parkwise.io/carpark/workerpool"
)

// ErrShutdown is returned by Enqueue once the pipeline stopped.
var ErrShutdown = errors.New("PipelineShutdown")

// Release tells the dispatcher of an entrance that the vehicle cleared it.
// Calling it more than once has no effect.
type Release func()

// TaskFactory builds the lifecycle task of the vehicle behind h.
type TaskFactory func(entrance int, h vehicle.Handle, release Release) workerpool.Runnable

// Slot is the single-vehicle buffer in front of one entrance.
type Slot struct {
	mu    sync.Mutex
	queue []vehicle.Handle

	full     *core.Semaphore
	space    *core.Semaphore
	finished *core.Semaphore
}

func newSlot() *Slot {
	return &Slot{
		queue:    make([]vehicle.Handle, 0, 1),
		full:     core.NewSemaphore(0),
		space:    core.NewSemaphore(1),
		finished: core.NewSemaphore(0),
	}
}

// Len returns the number of queued vehicles, at most one.
func (s *Slot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Slot) push(h vehicle.Handle) {
	s.mu.Lock()
	s.queue = append(s.queue, h)
	s.mu.Unlock()
	s.full.Release()
}

func (s *Slot) pop() (vehicle.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return vehicle.Handle{}, false
	}
	h := s.queue[0]
	s.queue = s.queue[1:]
	return h, true
}

// Pipeline runs one dispatcher per entrance.
type Pipeline struct {
	slots   []*Slot
	pool    *workerpool.Pool
	newTask TaskFactory

	// Activate is called by the dispatcher before the task is submitted.
	activate func(h vehicle.Handle)

	quitMu sync.Mutex
	quit   bool

	dispatchers sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithActivate registers fn to move a dequeued vehicle into the active set.
func WithActivate(fn func(h vehicle.Handle)) Option {
	return func(p *Pipeline) { p.activate = fn }
}

// New starts a dispatcher for each of entrances.
func New(entrances int, pool *workerpool.Pool, newTask TaskFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		slots:    make([]*Slot, entrances),
		pool:     pool,
		newTask:  newTask,
		activate: func(vehicle.Handle) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.dispatchers.Add(entrances)
	for i := range p.slots {
		p.slots[i] = newSlot()
		go p.dispatch(i)
	}
	return p
}

// Slot returns the buffer of entrance i.
func (p *Pipeline) Slot(i int) *Slot {
	return p.slots[i]
}

// Enqueue puts h in front of entrance. It blocks while another vehicle waits
// there.
func (p *Pipeline) Enqueue(ctx context.Context, entrance int, h vehicle.Handle) error {
	if entrance < 0 || entrance >= len(p.slots) {
		return fmt.Errorf("entrance %d out of range [0, %d)", entrance, len(p.slots))
	}
	s := p.slots[entrance]
	if err := s.space.AcquireContext(ctx); err != nil {
		return err
	}
	if p.isQuit() {
		s.space.Release()
		return ErrShutdown
	}
	s.push(h)
	return nil
}

// Shutdown stops every dispatcher. Dispatchers blocked waiting for a vehicle
// or for a vehicle to clear are woken with a dummy post.
func (p *Pipeline) Shutdown() {
	p.quitMu.Lock()
	p.quit = true
	p.quitMu.Unlock()

	for _, s := range p.slots {
		s.full.Release()
		s.finished.Release()
	}
	p.dispatchers.Wait()
}

func (p *Pipeline) isQuit() bool {
	p.quitMu.Lock()
	defer p.quitMu.Unlock()
	return p.quit
}

func (p *Pipeline) dispatch(entrance int) {
	defer p.dispatchers.Done()
	logger := log.WithField("entrance", entrance)
	s := p.slots[entrance]

	for {
		s.full.Acquire()
		if p.isQuit() {
			logger.Debug("Entrance dispatcher quitting")
			return
		}

		h, ok := s.pop()
		if !ok {
			continue
		}
		s.space.Release()
		p.activate(h)

		var once sync.Once
		release := func() { once.Do(s.finished.Release) }

		if err := p.pool.Submit(p.newTask(entrance, h, release)); err != nil {
			logger.WithError(err).Warn("Dropping vehicle")
			release()
		}

		s.finished.Acquire()
		if p.isQuit() {
			logger.Debug("Entrance dispatcher quitting")
			return
		}
	}
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package workerpool runs queued tasks on a fixed set of long lived workers.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// DefaultSize is the number of workers the car park runs.
const DefaultSize = 5

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("PoolClosed")

// Runnable is a task owned by its own state.
type Runnable interface {
	Run(ctx context.Context)
}

// TaskFunc adapts a function to Runnable.
type TaskFunc func(ctx context.Context)

func (f TaskFunc) Run(ctx context.Context) { f(ctx) }

// Pool is a fixed-size worker pool consuming a FIFO of tasks.
type Pool struct {
	requestMutex sync.Mutex
	gotRequest   *sync.Cond
	requests     []Runnable

	quitMutex sync.Mutex
	quit      bool

	ctx    context.Context
	cancel context.CancelFunc

	workers sync.WaitGroup
	running atomic.Int32
	busy    atomic.Int32
}

// New starts size workers.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{}
	p.gotRequest = sync.NewCond(&p.requestMutex)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.workers.Add(size)
	p.running.Add(int32(size))
	for i := 0; i < size; i++ {
		go p.handleRequestsLoop(i)
	}
	return p
}

// Submit appends t to the queue and wakes one worker. A task accepted here is
// either run or counted by Shutdown.
func (p *Pool) Submit(t Runnable) error {
	p.requestMutex.Lock()
	if p.isQuit() {
		p.requestMutex.Unlock()
		return ErrPoolClosed
	}
	p.requests = append(p.requests, t)
	p.requestMutex.Unlock()

	p.gotRequest.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	p.requestMutex.Lock()
	defer p.requestMutex.Unlock()
	return len(p.requests)
}

// Running returns the number of live workers.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Busy returns the number of workers executing a task.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Shutdown stops the workers, cancels the context of in-flight tasks and waits
// for every worker to exit. Tasks still queued are dropped and counted.
func (p *Pool) Shutdown() int {
	// quit is set under the queue lock so no Submit slips in after the drain
	p.requestMutex.Lock()
	p.quitMutex.Lock()
	p.quit = true
	p.quitMutex.Unlock()
	p.gotRequest.Broadcast()
	p.requestMutex.Unlock()

	p.cancel()

	p.workers.Wait()

	p.requestMutex.Lock()
	defer p.requestMutex.Unlock()
	dropped := len(p.requests)
	p.requests = nil
	if dropped > 0 {
		log.Warnf("Worker pool dropped %d queued tasks", dropped)
	}
	return dropped
}

func (p *Pool) isQuit() bool {
	p.quitMutex.Lock()
	defer p.quitMutex.Unlock()
	return p.quit
}

func (p *Pool) handleRequestsLoop(id int) {
	defer p.workers.Done()
	defer p.running.Add(-1)

	p.requestMutex.Lock()
	for !p.isQuit() {
		if len(p.requests) > 0 {
			t := p.requests[0]
			p.requests[0] = nil
			p.requests = p.requests[1:]

			// execution never holds the queue lock
			p.requestMutex.Unlock()
			p.handleRequest(id, t)
			p.requestMutex.Lock()
			continue
		}
		p.gotRequest.Wait()
	}
	p.requestMutex.Unlock()
}

func (p *Pool) handleRequest(id int, t Runnable) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("worker", id).WithError(fmt.Errorf("%v", r)).Error("Task panicked")
		}
	}()
	t.Run(p.ctx)
}

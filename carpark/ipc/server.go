// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
	"go.parkwise.io/carpark/segment"
)

// Server exposes a segment and its handshake to remote managers.
type Server struct {
	port *segment.Local
	hs   *core.Handshake

	mu      sync.Mutex
	conns   int
	nextID  int
	drained *sync.Cond
}

func NewServer(seg *segment.Segment, hs *core.Handshake) *Server {
	s := &Server{port: segment.NewLocal(seg), hs: hs}
	s.drained = sync.NewCond(&s.mu)
	return s
}

// Listen opens the unix socket at path, replacing a stale one from a previous
// run.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fatalerror.New(fatalerror.AttachFailure, "remove stale socket: %s", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fatalerror.New(fatalerror.AttachFailure, "listen on %s: %s", path, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is done. Open connections are
// closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		s.conns++
		s.nextID++
		id := s.nextID
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, id, conn)

			s.mu.Lock()
			s.conns--
			s.mu.Unlock()
			s.drained.Broadcast()
		}()
	}
}

// Connections returns the number of connected managers.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// AwaitDisconnect blocks until no manager is connected or ctx is done.
func (s *Server) AwaitDisconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.drained.Broadcast()
	})
	defer stop()

	for s.conns > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.drained.Wait()
	}
	return nil
}

// WatchManager blocks until the manager linked through the handshake has
// disconnected. Leaving before the simulation finished is a
// ProtocolViolation; leaving afterwards returns nil.
func (s *Server) WatchManager(ctx context.Context) error {
	if err := s.hs.AwaitManagerLinked(ctx); err != nil {
		return err
	}
	if err := s.AwaitDisconnect(ctx); err != nil {
		return err
	}
	if s.hs.Signaled(core.StepSimulationFinished) {
		return nil
	}
	return fatalerror.New(fatalerror.ProtocolViolation, "manager disconnected before %s", core.StepSimulationFinished)
}

type connState struct {
	t *Transport

	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
	wg       sync.WaitGroup
}

func (s *Server) serveConn(ctx context.Context, id int, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	cs := &connState{t: NewTransport(conn), inflight: make(map[uint64]context.CancelFunc)}
	defer func() {
		cancel()
		stop()
		cs.wg.Wait()
		conn.Close()
	}()

	logger := log.WithField("conn", id)
	logger.Debug("Manager connected")

	for {
		var req Request
		if err := cs.t.Receive(&req); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.WithError(err).Warn("Manager connection failed")
			}
			return
		}

		if req.Op == OpCancel {
			cs.mu.Lock()
			if c, ok := cs.inflight[req.ID]; ok {
				c()
			}
			cs.mu.Unlock()
			continue
		}

		reqCtx, reqCancel := context.WithCancel(ctx)
		cs.mu.Lock()
		cs.inflight[req.ID] = reqCancel
		cs.mu.Unlock()

		cs.wg.Add(1)
		go func(req Request) {
			defer cs.wg.Done()
			resp := s.handle(reqCtx, req)

			cs.mu.Lock()
			delete(cs.inflight, req.ID)
			cs.mu.Unlock()
			reqCancel()

			if err := cs.t.Send(resp); err != nil && ctx.Err() == nil {
				logger.WithError(err).WithField("op", req.Op).Warn("Failed to send response")
			}
		}(req)
	}
}

func (s *Server) handle(ctx context.Context, req Request) *Response {
	resp := &Response{ID: req.ID}
	var err error

	switch req.Op {
	case OpReadPlate:
		var p core.Plate
		p, err = s.port.ReadPlate(ctx, segment.Zone(req.Zone), req.Index)
		if err == nil {
			resp.Plate = p.String()
		}
	case OpUpdateSign:
		err = s.port.UpdateSign(ctx, req.Index, req.Display)
	case OpAdmitOne:
		err = s.port.AdmitOne(ctx, segment.Zone(req.Zone), req.Index, time.Duration(req.HoldNs))
	case OpReadLevel:
		var r segment.LevelReading
		r, err = s.port.ReadLevel(ctx, req.Index)
		resp.Temperature, resp.Alarm = r.Temperature, r.Alarm
	case OpAwaitShmReady:
		err = s.hs.AwaitShmReady(ctx)
	case OpSignalManagerLinked:
		err = s.hs.SignalManagerLinked()
	case OpAwaitSimulationFinished:
		err = s.hs.AwaitSimulationFinished(ctx)
	default:
		err = fmt.Errorf("unknown op %d", req.Op)
	}

	encodeError(resp, err)
	return resp
}

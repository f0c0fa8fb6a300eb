// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
	"go.parkwise.io/carpark/segment"
)

// ErrConnectionClosed is returned for calls on a client whose connection to
// the simulator is gone.
var ErrConnectionClosed = errors.New("ConnectionClosed")

// Client is the manager's remote view of a simulator.
type Client struct {
	t *Transport

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *Response
	err     error
	done    chan struct{}
}

var (
	_ segment.ManagerPort   = (*Client)(nil)
	_ segment.HandshakePort = (*Client)(nil)
)

// Dial connects to the simulator listening at path. Failing to connect is an
// AttachFailure.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fatalerror.New(fatalerror.AttachFailure, "dial %s: %s", path, err)
	}
	return newClient(conn), nil
}

// DialRetry keeps dialing path every interval until it succeeds or ctx ends.
func DialRetry(ctx context.Context, path string, interval time.Duration) (*Client, error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		c, err := Dial(ctx, path)
		if err == nil {
			return c, nil
		}
		log.WithError(err).Debug("Simulator not reachable yet")

		select {
		case <-ctx.Done():
			return nil, err
		case <-t.C:
		}
	}
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		t:       NewTransport(conn),
		pending: make(map[uint64]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close drops the connection. Calls in flight return ErrConnectionClosed.
func (c *Client) Close() error {
	return c.t.Close()
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	for {
		resp := &Response{}
		if err := c.t.Receive(resp); err != nil {
			c.fail(err)
			return
		}

		// delivered under the lock so abandon sees it
		c.mu.Lock()
		if ch, ok := c.pending[resp.ID]; ok {
			delete(c.pending, resp.ID)
			ch <- resp
		}
		c.mu.Unlock()
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = fmt.Errorf("%w: %s", ErrConnectionClosed, err)
	c.pending = make(map[uint64]chan *Response)
	close(c.done)
}

func (c *Client) call(ctx context.Context, req Request) (*Response, error) {
	ch := make(chan *Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.t.Send(&req); err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("%w: %s", ErrConnectionClosed, err)
	}

	select {
	case resp := <-ch:
		return resp, decodeError(resp)
	case <-ctx.Done():
		if resp, ok := c.abandon(req.ID, ch); ok {
			return resp, decodeError(resp)
		}
		if err := c.t.Send(&Request{ID: req.ID, Op: OpCancel}); err != nil {
			log.WithError(err).WithField("op", req.Op).Debug("Failed to cancel request")
		}
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.err
	}
}

// abandon drops a pending request. A response that already arrived is
// returned instead, so a plate the simulator handed out is not lost.
func (c *Client) abandon(id uint64, ch chan *Response) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	select {
	case resp := <-ch:
		return resp, true
	default:
		return nil, false
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) ReadPlate(ctx context.Context, zone segment.Zone, index int) (core.Plate, error) {
	resp, err := c.call(ctx, Request{Op: OpReadPlate, Zone: uint8(zone), Index: index})
	if err != nil {
		return core.Plate{}, err
	}
	return core.ParsePlate(resp.Plate), nil
}

func (c *Client) UpdateSign(ctx context.Context, index int, display byte) error {
	_, err := c.call(ctx, Request{Op: OpUpdateSign, Index: index, Display: display})
	return err
}

func (c *Client) AdmitOne(ctx context.Context, zone segment.Zone, index int, hold time.Duration) error {
	_, err := c.call(ctx, Request{Op: OpAdmitOne, Zone: uint8(zone), Index: index, HoldNs: int64(hold)})
	return err
}

func (c *Client) ReadLevel(ctx context.Context, index int) (segment.LevelReading, error) {
	resp, err := c.call(ctx, Request{Op: OpReadLevel, Index: index})
	if err != nil {
		return segment.LevelReading{}, err
	}
	return segment.LevelReading{Temperature: resp.Temperature, Alarm: resp.Alarm}, nil
}

func (c *Client) AwaitShmReady(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpAwaitShmReady})
	return core.HandshakeError(core.StepShmReady, err)
}

func (c *Client) SignalManagerLinked() error {
	_, err := c.call(context.Background(), Request{Op: OpSignalManagerLinked})
	return err
}

func (c *Client) AwaitSimulationFinished(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpAwaitSimulationFinished})
	return core.HandshakeError(core.StepSimulationFinished, err)
}

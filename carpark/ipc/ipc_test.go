// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
	"go.parkwise.io/carpark/segment"
	"go.parkwise.io/carpark/testdata"
)

func TestTransportRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	ta, tb := NewTransport(a), NewTransport(b)
	defer ta.Close()
	defer tb.Close()

	sent := Request{ID: 42, Op: OpAdmitOne, Zone: uint8(segment.ZoneExit), Index: 3, HoldNs: int64(20 * time.Millisecond)}
	go func() { assert.NoError(t, ta.Send(&sent)) }()

	var got Request
	require.NoError(t, tb.Receive(&got))
	assert.Equal(t, sent, got)
}

func TestErrorsSurviveTheWire(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{fatalerror.New(fatalerror.GateFault, "stuck"), fatalerror.ErrGateFault},
		{fatalerror.New(fatalerror.HandshakeTimeout, "late"), fatalerror.ErrHandshakeTimeout},
		{context.Canceled, context.Canceled},
		{context.DeadlineExceeded, context.DeadlineExceeded},
	}
	for _, c := range cases {
		var resp Response
		encodeError(&resp, c.err)
		assert.ErrorIs(t, decodeError(&resp), c.want, c.err.Error())
	}

	var resp Response
	encodeError(&resp, errors.New("exit 9 out of range"))
	assert.EqualError(t, decodeError(&resp), "exit 9 out of range")

	assert.NoError(t, decodeError(&Response{}))
}

func actuate(ctx context.Context, g *core.BoomGate) {
	for {
		st, err := g.AwaitMotion(ctx)
		if err != nil {
			return
		}
		time.Sleep(time.Millisecond)
		_ = g.Complete(st)
	}
}

type fixture struct {
	seg    *segment.Segment
	hs     *core.Handshake
	srv    *Server
	client *Client
	path   string
}

func newFixture(t *testing.T, opts segment.Options) *fixture {
	ctx, cancel := context.WithCancel(context.Background())

	f := &fixture{
		seg:  segment.New(opts),
		hs:   core.NewHandshake(),
		path: filepath.Join(t.TempDir(), "carpark.sock"),
	}
	f.srv = NewServer(f.seg, f.hs)

	ln, err := Listen(f.path)
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- f.srv.Serve(ctx, ln) }()

	f.client, err = Dial(ctx, f.path)
	require.NoError(t, err)
	// one round trip so the server has accepted the connection
	_, err = f.client.ReadLevel(ctx, 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		f.client.Close()
		cancel()
		assert.NoError(t, <-served)
	})
	return f
}

func TestDialMissingSocketIsAttachFailure(t *testing.T) {
	_, err := Dial(context.Background(), filepath.Join(t.TempDir(), "none.sock"))
	assert.ErrorIs(t, err, fatalerror.ErrAttachFailure)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = DialRetry(ctx, filepath.Join(t.TempDir(), "none.sock"), time.Millisecond)
	assert.ErrorIs(t, err, fatalerror.ErrAttachFailure)
}

func TestRemoteHandshake(t *testing.T) {
	f := newFixture(t, segment.Options{})
	ctx := context.Background()

	ctxShort, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.client.AwaitShmReady(ctxShort), fatalerror.ErrHandshakeTimeout)

	assert.ErrorIs(t, f.client.SignalManagerLinked(), fatalerror.ErrProtocolViolation)

	require.NoError(t, f.hs.SignalShmReady())
	require.NoError(t, f.client.AwaitShmReady(ctx))
	require.NoError(t, f.client.SignalManagerLinked())
	require.NoError(t, f.hs.AwaitManagerLinked(ctx))

	finished := make(chan error, 1)
	go func() { finished <- f.client.AwaitSimulationFinished(ctx) }()
	require.NoError(t, f.hs.SignalSimulationFinished())

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("simulation_finished did not reach the manager")
	}
}

func TestRemoteDevices(t *testing.T) {
	f := newFixture(t, segment.Options{GateFaultTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entrance := &f.seg.Entrances[1]
	go actuate(ctx, entrance.Gate)

	go func() { assert.NoError(t, entrance.Sensor.Trigger(ctx, core.ParsePlate("123ABC"))) }()
	p, err := f.client.ReadPlate(ctx, segment.ZoneEntrance, 1)
	require.NoError(t, err)
	assert.Equal(t, "123ABC", p.String())

	require.NoError(t, f.client.UpdateSign(ctx, 1, '3'))
	d, err := entrance.Sign.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte('3'), d)

	require.NoError(t, f.client.AdmitOne(ctx, segment.ZoneEntrance, 1, time.Millisecond))
	assert.Equal(t, uint64(1), entrance.Gate.Cycles())
	assert.Equal(t, core.GateClosed, entrance.Gate.State())

	f.seg.Levels[4].SetTemperature(31)
	f.seg.Levels[4].SetAlarm(true)
	r, err := f.client.ReadLevel(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, segment.LevelReading{Temperature: 31, Alarm: true}, r)

	_, err = f.client.ReadLevel(ctx, 9)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectionClosed)
}

func TestRemoteGateFault(t *testing.T) {
	f := newFixture(t, segment.Options{GateFaultTimeout: 10 * time.Millisecond})

	err := f.client.AdmitOne(context.Background(), segment.ZoneExit, 0, 0)
	assert.ErrorIs(t, err, fatalerror.ErrGateFault)
}

func TestCanceledReadDoesNotSwallowPlate(t *testing.T) {
	f := newFixture(t, segment.Options{})
	ctx := context.Background()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := f.client.ReadPlate(short, segment.ZoneExit, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a later round trip orders the cancel frame before the trigger
	_, err = f.client.ReadLevel(ctx, 0)
	require.NoError(t, err)

	require.NoError(t, f.seg.Exits[2].Sensor.Trigger(ctx, core.ParsePlate("029MZH")))
	p, err := f.client.ReadPlate(ctx, segment.ZoneExit, 2)
	require.NoError(t, err)
	assert.Equal(t, "029MZH", p.String())
}

func TestCallsFailAfterServerStops(t *testing.T) {
	seg := segment.New(segment.Options{})
	srv := NewServer(seg, core.NewHandshake())
	path := filepath.Join(t.TempDir(), "carpark.sock")
	ln, err := Listen(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	client, err := Dial(context.Background(), path)
	require.NoError(t, err)
	defer client.Close()

	blocked := make(chan error, 1)
	go func() {
		_, err := client.ReadPlate(context.Background(), segment.ZoneLevel, 0)
		blocked <- err
	}()

	cancel()
	require.NoError(t, <-served)

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("pending call survived the server")
	}
	<-client.Done()
	_, err = client.ReadLevel(context.Background(), 0)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestAwaitDisconnect(t *testing.T) {
	f := newFixture(t, segment.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.srv.AwaitDisconnect(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, f.srv.Connections())

	require.NoError(t, f.client.Close())
	require.NoError(t, f.srv.AwaitDisconnect(context.Background()))
	assert.Equal(t, 0, f.srv.Connections())
}

func TestWatchManagerReportsLostManager(t *testing.T) {
	f := newFixture(t, segment.Options{})
	ctx := context.Background()

	watched := make(chan error, 1)
	go func() { watched <- f.srv.WatchManager(ctx) }()

	require.NoError(t, f.hs.SignalShmReady())
	require.NoError(t, f.client.SignalManagerLinked())
	require.NoError(t, f.client.Close())

	err := testdata.WaitForErrorWithTimeout(watched, time.Second)
	assert.ErrorIs(t, err, fatalerror.ErrProtocolViolation)
}

func TestWatchManagerAfterFinish(t *testing.T) {
	f := newFixture(t, segment.Options{})
	ctx := context.Background()

	require.NoError(t, f.hs.SignalShmReady())
	require.NoError(t, f.client.SignalManagerLinked())
	require.NoError(t, f.hs.SignalSimulationFinished())

	watched := make(chan error, 1)
	go func() { watched <- f.srv.WatchManager(ctx) }()
	require.NoError(t, f.client.Close())

	assert.NoError(t, testdata.WaitForErrorWithTimeout(watched, time.Second))
}

func TestWatchManagerCanceled(t *testing.T) {
	f := newFixture(t, segment.Options{})
	require.NoError(t, f.hs.SignalShmReady())
	require.NoError(t, f.client.SignalManagerLinked())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.srv.WatchManager(ctx), context.DeadlineExceeded)
}

func TestAbandonedCallKeepsArrivedResponse(t *testing.T) {
	a, b := net.Pipe()
	c := newClient(a)
	defer c.Close()
	server := NewTransport(b)
	defer server.Close()

	register := func() (uint64, chan *Response) {
		ch := make(chan *Response, 1)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.nextID++
		c.pending[c.nextID] = ch
		return c.nextID, ch
	}

	id, ch := register()
	require.NoError(t, server.Send(&Response{ID: id, Plate: "029MZH"}))
	require.True(t, testdata.Eventually(t, func() (bool, error) { return len(ch) == 1, nil }, time.Millisecond, 50))

	resp, ok := c.abandon(id, ch)
	require.True(t, ok)
	assert.Equal(t, "029MZH", resp.Plate)

	id, ch = register()
	_, ok = c.abandon(id, ch)
	assert.False(t, ok)
	// a response after abandoning is dropped by the read loop
	require.NoError(t, server.Send(&Response{ID: id, Plate: "123ABC"}))
	_, ok = c.abandon(id, ch)
	assert.False(t, ok)
}

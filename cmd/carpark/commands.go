// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.parkwise.io/carpark/billing"
	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/ipc"
	"go.parkwise.io/carpark/manager"
	"go.parkwise.io/carpark/plates"
	"go.parkwise.io/carpark/segment"
	"go.parkwise.io/carpark/simulator"
	"go.parkwise.io/carpark/status"
	"go.parkwise.io/carpark/vehicle"
)

type plateOptions struct {
	Plates string `long:"plates" env:"CARPARK_PLATES" default:"plates.txt" description:"authorized plates, one per line"`
}

type trafficOptions struct {
	Vehicles int   `long:"vehicles" default:"100" description:"number of vehicles to generate"`
	Seed     int64 `long:"seed" description:"random seed, zero picks one"`
}

type managementOptions struct {
	Billing    string `long:"billing" env:"CARPARK_BILLING" default:"billing.txt" description:"file the bills are appended to"`
	StatusAddr string `long:"status-addr" env:"CARPARK_STATUS_ADDR" description:"address of the status API, empty disables it"`
}

type simulateCommand struct {
	global *options
	plateOptions
	trafficOptions
	Grace time.Duration `long:"grace" default:"5s" description:"how long to wait for the manager to detach"`
}

type manageCommand struct {
	global *options
	plateOptions
	managementOptions
}

type runCommand struct {
	global *options
	plateOptions
	trafficOptions
	managementOptions
}

func (o *options) simulatorConfig(t trafficOptions) simulator.Config {
	cfg := simulator.DefaultConfig()
	cfg.Vehicles = t.Vehicles
	cfg.TimeScale = o.TimeScale
	cfg.HandshakeTimeout = o.HandshakeTimeout
	if t.Seed != 0 {
		cfg.Seed = t.Seed
	}
	return cfg
}

func (o *options) managerConfig() manager.Config {
	cfg := manager.DefaultConfig()
	cfg.GateHold = o.scale(cfg.GateHold)
	cfg.MonitorInterval = o.scale(cfg.MonitorInterval)
	cfg.HandshakeTimeout = o.HandshakeTimeout
	return cfg
}

func (c *simulateCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	o := c.global

	table, err := plates.LoadFile(c.Plates)
	if err != nil {
		return err
	}

	seg := segment.Create(o.Name, o.segmentOptions())
	defer segment.Unlink(o.Name)
	hs := segment.CreateHandshake(o.handshakeName())
	defer segment.UnlinkHandshake(o.handshakeName())

	path := ipc.SocketPath(o.Name)
	ln, err := ipc.Listen(path)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	srv := ipc.NewServer(seg, hs)
	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	g := &errgroup.Group{}
	g.Go(func() error { return srv.Serve(serveCtx, ln) })
	log.WithField("socket", path).Info("Hardware segment published")

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	watchdog := core.NewWatchdog(cancelRun)
	watchdog.GoWait(runCtx, "manager", srv.WatchManager, context.Canceled)

	cfg := o.simulatorConfig(c.trafficOptions)
	sim := simulator.New(cfg, seg, hs, vehicle.NewGenerator(cfg.Seed, table.List()))
	runErr := sim.Run(runCtx)
	if runErr != nil && ctx.Err() == nil {
		if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			runErr = cause
		}
	}
	if runErr == nil {
		graceCtx, cancelGrace := context.WithTimeout(ctx, c.Grace)
		if err := srv.AwaitDisconnect(graceCtx); err != nil {
			log.WithError(err).Warn("Manager did not detach")
		}
		cancelGrace()
	} else {
		hs.CancelWithError(runErr)
	}

	watchdog.Cancel(context.Canceled)
	watchdog.Wait()
	stopServing()
	if err := g.Wait(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func (c *manageCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	o := c.global

	table, err := plates.LoadFile(c.Plates)
	if err != nil {
		return err
	}
	biller, err := billing.NewFileBiller(c.Billing)
	if err != nil {
		return err
	}
	defer biller.Close()

	dialCtx, cancelDial := context.WithTimeout(ctx, o.HandshakeTimeout)
	client, err := ipc.DialRetry(dialCtx, ipc.SocketPath(o.Name), 50*time.Millisecond)
	cancelDial()
	if err != nil {
		return err
	}
	defer client.Close()

	mgr := manager.New(o.managerConfig(), client, client, table, biller)
	return serveWithStatus(ctx, c.StatusAddr, status.NewRouter(mgr, nil), mgr.Run)
}

func (c *runCommand) Execute(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	o := c.global

	table, err := plates.LoadFile(c.Plates)
	if err != nil {
		return err
	}
	biller, err := billing.NewFileBiller(c.Billing)
	if err != nil {
		return err
	}
	defer biller.Close()

	seg := segment.Create(o.Name, o.segmentOptions())
	defer segment.Unlink(o.Name)
	hs := segment.CreateHandshake(o.handshakeName())
	defer segment.UnlinkHandshake(o.handshakeName())

	simCfg := o.simulatorConfig(c.trafficOptions)
	sim := simulator.New(simCfg, seg, hs, vehicle.NewGenerator(simCfg.Seed, table.List()))

	// the manager finds the hardware by name, like a separate process would
	attached, err := segment.Attach(o.Name)
	if err != nil {
		return err
	}
	attachedHs, err := segment.AttachHandshake(o.handshakeName())
	if err != nil {
		return err
	}
	mgr := manager.New(o.managerConfig(), segment.NewLocal(attached), attachedHs, table, biller)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sim.Run(gctx)
		if err != nil {
			attachedHs.CancelWithError(err)
		}
		return err
	})
	g.Go(func() error {
		return serveWithStatus(gctx, c.StatusAddr, status.NewRouter(mgr, sim), mgr.Run)
	})
	return g.Wait()
}

// serveWithStatus runs fn and, when addr is set, the status API next to it.
func serveWithStatus(ctx context.Context, addr string, router http.Handler, fn func(context.Context) error) error {
	if addr == "" {
		return fn(ctx)
	}

	statusCtx, stopStatus := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- status.Serve(statusCtx, addr, router) }()

	err := fn(ctx)
	stopStatus()
	if serveErr := <-done; serveErr != nil {
		log.WithError(serveErr).Warn("Status API failed")
	}
	return err
}

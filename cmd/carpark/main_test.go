// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.parkwise.io/carpark/fatalerror"
)

// parse runs the command line through the real parser but captures the
// selected command instead of executing it.
func parse(t *testing.T, args ...string) (*options, flags.Commander) {
	var opts options
	parser := newParser(&opts)
	require.NoError(t, loadConfig(parser, args))

	var selected flags.Commander
	parser.CommandHandler = func(cmd flags.Commander, _ []string) error {
		selected = cmd
		return nil
	}
	_, err := parser.ParseArgs(args)
	require.NoError(t, err)
	return &opts, selected
}

func TestDefaults(t *testing.T) {
	opts, cmd := parse(t, "simulate")

	assert.Equal(t, "info", opts.LogLevel)
	assert.Equal(t, "PARKING", opts.Name)
	assert.Equal(t, "PARKING_HANDSHAKE", opts.handshakeName())
	assert.Equal(t, 1.0, opts.TimeScale)
	assert.Equal(t, 30*time.Second, opts.HandshakeTimeout)

	sim, ok := cmd.(*simulateCommand)
	require.True(t, ok)
	assert.Equal(t, 100, sim.Vehicles)
	assert.Equal(t, "plates.txt", sim.Plates)
	assert.Equal(t, 5*time.Second, sim.Grace)
	assert.Same(t, opts, sim.global)
}

func TestCommandLine(t *testing.T) {
	opts, cmd := parse(t, "--time-scale", "0.1", "--name", "NORTH", "manage",
		"--billing", "/tmp/bills.txt", "--status-addr", ":8080")

	mgr, ok := cmd.(*manageCommand)
	require.True(t, ok)
	assert.Equal(t, "NORTH", opts.Name)
	assert.Equal(t, "/tmp/bills.txt", mgr.Billing)
	assert.Equal(t, ":8080", mgr.StatusAddr)

	cfg := opts.managerConfig()
	assert.Equal(t, 2*time.Millisecond, cfg.GateHold)
}

func TestGateFaultTimeoutIsScaled(t *testing.T) {
	opts, cmd := parse(t, "--time-scale", "600", "run")
	run, ok := cmd.(*runCommand)
	require.True(t, ok)

	seg := opts.segmentOptions()
	assert.Equal(t, 3000*time.Second, seg.GateFaultTimeout)

	sim := opts.simulatorConfig(run.trafficOptions)
	assert.Greater(t, seg.GateFaultTimeout, sim.Scale(sim.GateTransition))
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupted", fmt.Errorf("run: %w", context.Canceled), 0},
		{"help", &flags.Error{Type: flags.ErrHelp, Message: "usage"}, 0},
		{"attach failure", fatalerror.New(fatalerror.AttachFailure, "no segment"), 1},
		{"protocol violation", fatalerror.New(fatalerror.ProtocolViolation, "twice"), 1},
		{"handshake timeout", fatalerror.New(fatalerror.HandshakeTimeout, "late"), 2},
		{"gate fault", fatalerror.New(fatalerror.GateFault, "stuck"), 2},
		{"untyped", errors.New("boom"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitStatus(tt.err))
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carpark.ini")
	require.NoError(t, os.WriteFile(path, []byte(`[Application Options]
name = SOUTH
time-scale = 0.5

[run]
vehicles = 7
billing = south.txt
`), 0o644))

	opts, cmd := parse(t, "--config", path, "run", "--vehicles", "9")

	run, ok := cmd.(*runCommand)
	require.True(t, ok)
	assert.Equal(t, "SOUTH", opts.Name)
	assert.Equal(t, 0.5, opts.TimeScale)
	assert.Equal(t, 9, run.Vehicles, "command line wins over the config file")
	assert.Equal(t, "south.txt", run.Billing)

	cfg := opts.simulatorConfig(run.trafficOptions)
	assert.Equal(t, 9, cfg.Vehicles)
	assert.Equal(t, 0.5, cfg.TimeScale)
}

func TestMissingConfigFile(t *testing.T) {
	var opts options
	err := loadConfig(newParser(&opts), []string{"--config", filepath.Join(t.TempDir(), "none.ini"), "run"})
	assert.Error(t, err)
}

func TestHelp(t *testing.T) {
	var opts options
	_, err := newParser(&opts).ParseArgs([]string{"--help"})

	var flagsErr *flags.Error
	require.True(t, errors.As(err, &flagsErr))
	assert.Equal(t, flags.ErrHelp, flagsErr.Type)
	assert.Contains(t, flagsErr.Message, "simulate")
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/fatalerror"
	"go.parkwise.io/carpark/logging"
	"go.parkwise.io/carpark/segment"
)

type options struct {
	LogLevel         string        `long:"log-level" env:"CARPARK_LOG_LEVEL" default:"info" description:"log level"`
	Config           string        `long:"config" env:"CARPARK_CONFIG" description:"INI file with option defaults"`
	Name             string        `long:"name" env:"CARPARK_NAME" default:"PARKING" description:"name of the hardware segment"`
	TimeScale        float64       `long:"time-scale" env:"CARPARK_TIME_SCALE" default:"1" description:"multiplier applied to every simulated duration"`
	GateFaultTimeout time.Duration `long:"gate-fault-timeout" default:"5s" description:"gate transitions slower than this are faults, scaled by --time-scale"`
	HandshakeTimeout time.Duration `long:"handshake-timeout" default:"30s" description:"how long to wait for the other process"`
}

func (o *options) handshakeName() string {
	return o.Name + "_HANDSHAKE"
}

func (o *options) scale(d time.Duration) time.Duration {
	if o.TimeScale <= 0 {
		return d
	}
	return time.Duration(float64(d) * o.TimeScale)
}

// segmentOptions returns the hardware options with the fault timeout in
// simulated time.
func (o *options) segmentOptions() segment.Options {
	return segment.Options{GateFaultTimeout: o.scale(o.GateFaultTimeout)}
}

func main() {
	var opts options
	parser := newParser(&opts)

	if err := loadConfig(parser, os.Args[1:]); err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	_, err := parser.Parse()
	if code := exitStatus(err); code != 0 {
		os.Exit(code)
	}
}

// exitStatus logs how the car park stopped and returns the process exit
// status: 1 for fatal failures, 2 for any other failure.
func exitStatus(err error) int {
	var flagsErr *flags.Error
	switch {
	case err == nil:
		return 0
	case errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp:
		os.Stdout.WriteString(flagsErr.Message + "\n")
		return 0
	case errors.Is(err, context.Canceled):
		log.Info("Interrupted")
		return 0
	}

	t := fatalerror.TypeOf(err)
	if t.IsFatal() {
		log.WithError(err).WithField("type", t).Error("Car park failed")
		return 1
	}
	log.WithError(err).WithField("type", t).Warn("Car park stopped")
	return 2
}

func newParser(opts *options) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)

	mustAdd := func(name, short, long string, cmd interface{}) {
		if _, err := parser.AddCommand(name, short, long, cmd); err != nil {
			log.WithError(err).Fatal("Failed to register command ", name)
		}
	}
	mustAdd("simulate", "Run the simulator",
		"Creates the hardware segment, serves it to a manager and generates traffic.",
		&simulateCommand{global: opts})
	mustAdd("manage", "Run the manager",
		"Attaches to a running simulator and controls the car park.",
		&manageCommand{global: opts})
	mustAdd("run", "Run simulator and manager in one process",
		"Runs both sides of the car park sharing one in-process segment.",
		&runCommand{global: opts})

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := logging.SetLogLevel(opts.LogLevel); err != nil {
			return err
		}
		return cmd.Execute(args)
	}
	return parser
}

// loadConfig applies the INI file named by --config, if any. Command line
// options parsed afterwards override it.
func loadConfig(parser *flags.Parser, args []string) error {
	var pre struct {
		Config string `long:"config" env:"CARPARK_CONFIG"`
	}
	if _, err := flags.NewParser(&pre, flags.IgnoreUnknown).ParseArgs(args); err != nil {
		return err
	}
	if pre.Config == "" {
		return nil
	}
	return flags.NewIniParser(parser).ParseFile(pre.Config)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sig:
			log.WithField("signal", s.String()).Info("Received signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()
	return ctx, cancel
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package ipc lets the manager drive the simulator's hardware from another
// process. The simulator serves its segment and handshake on a unix socket;
// the manager's Client implements segment.ManagerPort and
// segment.HandshakePort over it.
//
// Every request carries an ID echoed by its response. A caller that gives up
// sends an OpCancel frame with the same ID so the blocked server side stops
// and cannot consume a later plate or sign update.
package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.parkwise.io/carpark/fatalerror"
)

// Op selects the operation of a request.
type Op uint8

const (
	OpReadPlate Op = iota + 1
	OpUpdateSign
	OpAdmitOne
	OpReadLevel
	OpAwaitShmReady
	OpSignalManagerLinked
	OpAwaitSimulationFinished
	OpCancel
)

func (o Op) String() string {
	switch o {
	case OpReadPlate:
		return "ReadPlate"
	case OpUpdateSign:
		return "UpdateSign"
	case OpAdmitOne:
		return "AdmitOne"
	case OpReadLevel:
		return "ReadLevel"
	case OpAwaitShmReady:
		return "AwaitShmReady"
	case OpSignalManagerLinked:
		return "SignalManagerLinked"
	case OpAwaitSimulationFinished:
		return "AwaitSimulationFinished"
	case OpCancel:
		return "Cancel"
	}
	return "Unknown"
}

type Request struct {
	ID      uint64 `msgpack:"id"`
	Op      Op     `msgpack:"op"`
	Zone    uint8  `msgpack:"zone,omitempty"`
	Index   int    `msgpack:"index,omitempty"`
	Display byte   `msgpack:"display,omitempty"`
	HoldNs  int64  `msgpack:"hold_ns,omitempty"`
}

type Response struct {
	ID          uint64 `msgpack:"id"`
	Plate       string `msgpack:"plate,omitempty"`
	Temperature int16  `msgpack:"temperature,omitempty"`
	Alarm       bool   `msgpack:"alarm,omitempty"`
	ErrType     string `msgpack:"err_type,omitempty"`
	ErrMsg      string `msgpack:"err_msg,omitempty"`
}

const (
	errTypeCanceled         = "Canceled"
	errTypeDeadlineExceeded = "DeadlineExceeded"
	errTypeGeneric          = "Error"
)

func encodeError(resp *Response, err error) {
	if err == nil {
		return
	}
	var fe *fatalerror.Error
	switch {
	case errors.As(err, &fe):
		resp.ErrType, resp.ErrMsg = string(fe.Type), fe.Msg
	case errors.Is(err, context.Canceled):
		resp.ErrType = errTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		resp.ErrType = errTypeDeadlineExceeded
	default:
		resp.ErrType, resp.ErrMsg = errTypeGeneric, err.Error()
	}
}

func decodeError(resp *Response) error {
	switch resp.ErrType {
	case "":
		return nil
	case errTypeCanceled:
		return context.Canceled
	case errTypeDeadlineExceeded:
		return context.DeadlineExceeded
	case errTypeGeneric:
		return errors.New(resp.ErrMsg)
	}
	return &fatalerror.Error{Type: fatalerror.ErrorType(resp.ErrType), Msg: resp.ErrMsg}
}

// SocketPath returns where the simulator publishing segment name listens.
func SocketPath(name string) string {
	return filepath.Join(os.TempDir(), "carpark-"+name+".sock")
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package fatalerror

import (
	"errors"
	"fmt"
)

// ErrorType names a class of failure. Types travel between the manager and
// the simulator, so they are plain strings.
type ErrorType string

const (
	AttachFailure     ErrorType = "Segment.AttachFailure"       // shared segment could not be opened or mapped
	AllocationFailure ErrorType = "Memory.AllocationFailure"    // task or descriptor storage exhausted
	LookupMiss        ErrorType = "Plate.LookupMiss"            // plate not in the authorized table
	GateFault         ErrorType = "Gate.Fault"                  // gate did not open in time, nobody passed
	GateCloseFault    ErrorType = "Gate.CloseFault"             // gate did not close in time after a vehicle passed
	HandshakeTimeout  ErrorType = "Handshake.Timeout"           // handshake step never arrived
	ProtocolViolation ErrorType = "Handshake.ProtocolViolation" // handshake step signaled out of order
	Unknown           ErrorType = "Unknown"
)

// IsFatal reports whether errors of this type must abort the process.
func (t ErrorType) IsFatal() bool {
	switch t {
	case AttachFailure, AllocationFailure, ProtocolViolation:
		return true
	}
	return false
}

// Error is an error tagged with an ErrorType. Two Errors match under
// errors.Is when their types are equal.
type Error struct {
	Type ErrorType
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Msg)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// New returns an Error of the given type.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Msg: fmt.Sprintf(format, args...)}
}

// TypeOf returns the ErrorType carried by err, or Unknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Unknown
}

var (
	ErrAttachFailure     = &Error{Type: AttachFailure}
	ErrAllocationFailure = &Error{Type: AllocationFailure}
	ErrLookupMiss        = &Error{Type: LookupMiss}
	ErrGateFault         = &Error{Type: GateFault}
	ErrGateCloseFault    = &Error{Type: GateCloseFault}
	ErrHandshakeTimeout  = &Error{Type: HandshakeTimeout}
	ErrProtocolViolation = &Error{Type: ProtocolViolation}
)

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

// Gate state names as shown in logs and the status API.
const (
	GateStateClosedName   = "Closed"
	GateStateOpenName     = "Open"
	GateStateRaisingName  = "Raising"
	GateStateLoweringName = "Lowering"
)

func (s GateState) String() string {
	switch s {
	case GateClosed:
		return GateStateClosedName
	case GateOpen:
		return GateStateOpenName
	case GateRaising:
		return GateStateRaisingName
	case GateLowering:
		return GateStateLoweringName
	}
	return "Unknown"
}

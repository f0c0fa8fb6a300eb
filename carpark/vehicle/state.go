// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package vehicle

// State is the position of a vehicle in its lifecycle.
type State uint8

const (
	Queued State = iota
	AtEntranceSensor
	AwaitingSign
	Admitted
	Rejected
	AtGate
	Parked
	AtLevelSensor
	AtExitSensor
	Gone
)

var stateNames = [...]string{
	Queued:           "Queued",
	AtEntranceSensor: "AtEntranceSensor",
	AwaitingSign:     "AwaitingSign",
	Admitted:         "Admitted",
	Rejected:         "Rejected",
	AtGate:           "AtGate",
	Parked:           "Parked",
	AtLevelSensor:    "AtLevelSensor",
	AtExitSensor:     "AtExitSensor",
	Gone:             "Gone",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal reports whether a vehicle in state s has released its entrance.
func (s State) Terminal() bool {
	return s == Rejected || s == Gone || s >= Parked
}

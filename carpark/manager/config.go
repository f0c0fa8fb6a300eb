// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package manager

import "time"

type Config struct {
	LevelCapacity    int
	GateHold         time.Duration
	HandshakeTimeout time.Duration
	MonitorInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		LevelCapacity:    LevelCapacity,
		GateHold:         20 * time.Millisecond,
		HandshakeTimeout: 30 * time.Second,
		MonitorInterval:  100 * time.Millisecond,
	}
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import "context"

// LicenseSensor delivers plates read at an entrance, exit or level.
type LicenseSensor struct {
	ch *Channel[Plate]
}

func NewLicenseSensor() *LicenseSensor {
	return &LicenseSensor{ch: NewChannel[Plate]()}
}

// Trigger reports a car in front of the sensor. It blocks while the previous
// plate has not been read.
func (s *LicenseSensor) Trigger(ctx context.Context, p Plate) error {
	return s.ch.Write(ctx, p)
}

// Pass reports a car without waiting for the previous plate to be read.
func (s *LicenseSensor) Pass(p Plate) {
	s.ch.Overwrite(p)
}

// Read blocks until a car triggers the sensor.
func (s *LicenseSensor) Read(ctx context.Context) (Plate, error) {
	return s.ch.Read(ctx)
}

// Sign displays a single character to the driver in front of an entrance.
type Sign struct {
	ch *Channel[byte]
}

// Characters shown by an entrance sign besides the level digits.
const (
	SignDenied byte = 'X'
	SignFull   byte = 'F'
)

// LevelDisplay returns the sign character for a zero based level.
func LevelDisplay(level int) byte {
	return byte('1' + level)
}

// DisplayLevel returns the zero based level shown by d, or false when d is not
// a level digit.
func DisplayLevel(d byte) (int, bool) {
	if d < '1' || d > '9' {
		return 0, false
	}
	return int(d - '1'), true
}

func NewSign() *Sign {
	return &Sign{ch: NewBroadcastChannel[byte]()}
}

// Update shows d. It blocks while the previous display has not been read.
func (s *Sign) Update(ctx context.Context, d byte) error {
	return s.ch.Write(ctx, d)
}

// Read blocks until the sign is updated.
func (s *Sign) Read(ctx context.Context) (byte, error) {
	return s.ch.Read(ctx)
}

// Display returns the character currently shown.
func (s *Sign) Display() byte {
	d, _ := s.ch.Peek()
	return d
}

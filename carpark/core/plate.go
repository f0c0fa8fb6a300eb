// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package core

// PlateLength is the fixed width of a license plate.
const PlateLength = 6

// Plate is a fixed width license plate. Shorter input is padded with spaces.
type Plate [PlateLength]byte

// ParsePlate truncates or pads s to PlateLength characters.
func ParsePlate(s string) Plate {
	var p Plate
	for i := range p {
		if i < len(s) {
			p[i] = s[i]
		} else {
			p[i] = ' '
		}
	}
	return p
}

func (p Plate) String() string {
	return string(p[:])
}

// IsZero reports whether the plate was never set.
func (p Plate) IsZero() bool {
	return p == Plate{}
}

// Generated reports whether the plate has the usual shape: three digits
// followed by three uppercase letters.
func (p Plate) Generated() bool {
	for i, c := range p {
		if i < PlateLength/2 {
			if c < '0' || c > '9' {
				return false
			}
		} else if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

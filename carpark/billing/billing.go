// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package billing charges vehicles for the time they spent in the car park.
package billing

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.parkwise.io/carpark/core"
)

// RatePerMillisecond is the price of one millisecond of parking.
const RatePerMillisecond = 0.05

// Amount returns what a stay of d costs.
func Amount(d time.Duration) float64 {
	return float64(d.Milliseconds()) * RatePerMillisecond
}

// Biller records the charge of a departing vehicle.
type Biller interface {
	Bill(plate core.Plate, stay time.Duration) (float64, error)
	Revenue() float64
}

// FileBiller appends one "PLATE $AMOUNT" line per departure to a writer.
type FileBiller struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	revenue float64
}

// NewFileBiller appends to the file at path, creating it when missing.
func NewFileBiller(path string) (*FileBiller, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open billing file: %w", err)
	}
	return &FileBiller{w: f, closer: f}, nil
}

// NewWriterBiller bills to w.
func NewWriterBiller(w io.Writer) *FileBiller {
	return &FileBiller{w: w}
}

func (b *FileBiller) Bill(plate core.Plate, stay time.Duration) (float64, error) {
	amount := Amount(stay)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := fmt.Fprintf(b.w, "%s $%.2f\n", plate, amount); err != nil {
		return 0, err
	}
	b.revenue += amount
	return amount, nil
}

func (b *FileBiller) Revenue() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revenue
}

// Close closes the billing file, if the biller owns one.
func (b *FileBiller) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

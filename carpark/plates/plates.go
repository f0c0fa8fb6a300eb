// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package plates loads the table of plates allowed into the car park.
package plates

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
)

// Table is the set of authorized plates. It is read-only once loaded.
type Table struct {
	plates map[core.Plate]struct{}
	order  []core.Plate
}

// NewTable returns a table holding plates.
func NewTable(plates ...core.Plate) *Table {
	t := &Table{plates: make(map[core.Plate]struct{}, len(plates))}
	for _, p := range plates {
		t.add(p)
	}
	return t
}

func (t *Table) add(p core.Plate) {
	if _, ok := t.plates[p]; ok {
		return
	}
	t.plates[p] = struct{}{}
	t.order = append(t.order, p)
}

// Load reads one plate per line from r. Blank lines are skipped.
func Load(r io.Reader) (*Table, error) {
	t := NewTable()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p := core.ParsePlate(line)
		if !p.Generated() {
			log.WithField("plate", line).Warn("Plate is not three digits and three letters")
		}
		t.add(p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read plates: %w", err)
	}
	return t, nil
}

// LoadFile reads the plate table at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plates: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Contains reports whether p is authorized.
func (t *Table) Contains(p core.Plate) bool {
	_, ok := t.plates[p]
	return ok
}

// Lookup returns a LookupMiss error when p is not authorized.
func (t *Table) Lookup(p core.Plate) error {
	if !t.Contains(p) {
		return fatalerror.New(fatalerror.LookupMiss, "plate %s not authorized", p)
	}
	return nil
}

// List returns the plates in file order.
func (t *Table) List() []core.Plate {
	out := make([]core.Plate, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of distinct plates.
func (t *Table) Len() int {
	return len(t.order)
}

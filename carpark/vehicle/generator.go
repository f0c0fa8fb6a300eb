// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package vehicle

import (
	"math/rand"
	"sync"
	"time"

	"go.parkwise.io/carpark/core"
)

// Generator is the simulator's source of randomness. A single generator is
// shared by every goroutine of the simulator.
type Generator struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	authorized []core.Plate
}

// NewGenerator returns a generator seeded with seed that draws authorized
// plates from authorized.
func NewGenerator(seed int64, authorized []core.Plate) *Generator {
	return &Generator{
		rnd:        rand.New(rand.NewSource(seed)),
		authorized: authorized,
	}
}

// RandomPlate returns three digits followed by three uppercase letters.
func (g *Generator) RandomPlate() core.Plate {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.randomPlateLocked()
}

func (g *Generator) randomPlateLocked() core.Plate {
	var p core.Plate
	for i := 0; i < 3; i++ {
		p[i] = byte('0' + g.rnd.Intn(10))
	}
	for i := 3; i < core.PlateLength; i++ {
		p[i] = byte('A' + g.rnd.Intn(26))
	}
	return p
}

// Plate picks, with even odds, an authorized plate or a random one.
func (g *Generator) Plate() core.Plate {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.authorized) > 0 && g.rnd.Intn(2) == 0 {
		return g.authorized[g.rnd.Intn(len(g.authorized))]
	}
	return g.randomPlateLocked()
}

// Lane picks one of n entrances or exits.
func (g *Generator) Lane(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}

// Between returns a uniform duration in [lo, hi].
func (g *Generator) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + time.Duration(g.rnd.Int63n(int64(hi-lo)+1))
}

// Temperature returns a level temperature reading around ambient.
func (g *Generator) Temperature() int16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int16(18 + g.rnd.Intn(15))
}

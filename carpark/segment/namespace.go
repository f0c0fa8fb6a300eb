// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package segment

import (
	"sync"

	"go.parkwise.io/carpark/core"
	"go.parkwise.io/carpark/fatalerror"
)

// namespace maps segment names to live objects within one process, the same
// way a shared memory name maps to a mapping.
type namespace[T any] struct {
	mu      sync.Mutex
	objects map[string]T
}

func (n *namespace[T]) create(name string, obj T) T {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.objects == nil {
		n.objects = make(map[string]T)
	}
	// an existing object from a previous run is replaced
	n.objects[name] = obj
	return obj
}

func (n *namespace[T]) attach(name string) (T, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	obj, ok := n.objects[name]
	if !ok {
		var zero T
		return zero, fatalerror.New(fatalerror.AttachFailure, "no segment named %q", name)
	}
	return obj, nil
}

func (n *namespace[T]) unlink(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.objects, name)
}

var (
	segments   namespace[*Segment]
	handshakes namespace[*core.Handshake]
)

// Create makes a new hardware segment available under name.
func Create(name string, opts Options) *Segment {
	return segments.create(name, New(opts))
}

// Attach returns the hardware segment published under name.
func Attach(name string) (*Segment, error) {
	return segments.attach(name)
}

// Unlink removes name from the namespace. Attached users keep their segment.
func Unlink(name string) {
	segments.unlink(name)
}

// CreateHandshake makes a new handshake segment available under name.
func CreateHandshake(name string) *core.Handshake {
	return handshakes.create(name, core.NewHandshake())
}

// AttachHandshake returns the handshake segment published under name.
func AttachHandshake(name string) (*core.Handshake, error) {
	return handshakes.attach(name)
}

// UnlinkHandshake removes the handshake segment name from the namespace.
func UnlinkHandshake(name string) {
	handshakes.unlink(name)
}

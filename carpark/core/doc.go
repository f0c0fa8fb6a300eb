// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package core provides the device primitives and synchronization aids shared by
the car park manager and simulator.

# Channels

A Channel is a single-value mailbox guarded by a mutex and two condition
variables. It models one physical device: a license plate sensor, an
information sign, or the plate slot of a level sensor.

	[simulator] sensor.Write(ctx, plate)   // blocks while the previous plate is unread
	[manager]   plate, _ := sensor.Read(ctx) // blocks until a plate is written

Exactly one Read claims a given Write.

# Boom gates

BoomGate is a four state machine (Closed, Open, Raising, Lowering). The manager
drives it with Open, Close or AdmitOne; the hardware side (the simulator's
actuator) waits for motion with AwaitMotion and finishes it with Complete.

# Gates, semaphores and the handshake

Gate is a count based rendezvous: awaiting parties block until the expected
number of arrivals walked through. Handshake wraps three gates into the
startup/shutdown protocol between the simulator and the manager:

	shm_ready -> manager_linked -> simulation_finished

Semaphore is a counting semaphore used by the entrance admission pipeline.

Every blocking call takes a context. Waits end either when their condition
holds or when the context is done.
*/
package core

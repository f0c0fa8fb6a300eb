// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single message on the wire.
const MaxFrameSize = 1 << 16

const headerSize = 4

// Transport sends and receives msgpack values framed by a 4 byte big endian
// length. Send may be called concurrently; Receive must not.
type Transport struct {
	rwc io.ReadWriteCloser

	sendMu sync.Mutex
	header [headerSize]byte
}

func NewTransport(rwc io.ReadWriteCloser) *Transport {
	return &Transport{rwc: rwc}
}

// Send encodes v and writes it as one frame.
func (t *Transport) Send(v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds %d", len(data), MaxFrameSize)
	}

	frame := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[headerSize:], data)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	_, err = t.rwc.Write(frame)
	return err
}

// Receive reads one frame and decodes it into v.
func (t *Transport) Receive(v interface{}) error {
	if _, err := io.ReadFull(t.rwc, t.header[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(t.header[:])
	if length > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds %d", length, MaxFrameSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(t.rwc, data); err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	return t.rwc.Close()
}

// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

package testdata

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunWithTimeout(t *testing.T) {
	errBoom := errors.New("boom")
	assert.ErrorIs(t, RunWithTimeout(func() error { return errBoom }, time.Second), errBoom)
	assert.ErrorIs(t, RunWithTimeout(func() error { time.Sleep(time.Second); return nil }, time.Millisecond), ErrTimeout)
}

func TestEventually(t *testing.T) {
	calls := 0
	assert.True(t, Eventually(t, func() (bool, error) {
		calls++
		return calls == 3, errors.New("not yet")
	}, time.Millisecond, 5))
	assert.False(t, Eventually(t, func() (bool, error) { return false, nil }, time.Millisecond, 3))
}

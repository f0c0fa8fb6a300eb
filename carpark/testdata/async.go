// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package testdata holds helpers shared by the concurrency tests.
package testdata

import (
	"errors"
	"testing"
	"time"
)

// ErrTimeout is returned when nothing arrived before the deadline.
var ErrTimeout = errors.New("timed out")

// WaitForErrorWithTimeout returns the first error sent on channel, or
// ErrTimeout.
func WaitForErrorWithTimeout(channel <-chan error, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-channel:
		return err
	case <-t.C:
		return ErrTimeout
	}
}

// RunWithTimeout runs fn in its own goroutine and waits at most timeout for it
// to return.
func RunWithTimeout(fn func() error, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return WaitForErrorWithTimeout(done, timeout)
}

// Eventually polls testFunc with a growing interval until it succeeds or the
// retries run out.
func Eventually(t *testing.T, testFunc func() (bool, error), pollingIntervalMultiple time.Duration, retries int) bool {
	for try := 0; try < retries; try++ {
		success, err := testFunc()
		if success {
			return true
		}
		if err != nil {
			t.Logf("try %d: %v", try, err)
		}
		time.Sleep(time.Duration(try) * pollingIntervalMultiple)
	}
	return false
}

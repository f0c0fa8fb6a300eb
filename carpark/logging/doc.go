// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package logging configures the internal logs of the car park binaries.

Both processes log through logrus with InternalFormatter:

	2026-10-18T10:21:03.120Z [INFO] Vehicle parked entrance=0 level=2 plate=123ABC

Fields are printed sorted by key after the message.
*/
package logging

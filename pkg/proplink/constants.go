// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package proplink implements the line protocol spoken between the proparm
// host console and the flight controller.
//
// Device to host traffic is ASCII text, one scalar per line, terminated by
// a line feed. Host to device traffic is a bare command frame of the form
// "<tag>" or "<tag>:<value>" written without a terminator. There is no
// checksum, escaping or acknowledgement; the device is trusted to send
// well-formed numbers.
package proplink

import "time"

// Framing
const (
	Delimiter    = '\n'
	ValueSep     = ':'
	MaxFrameSize = 256 // Longest line accepted before the decoder resyncs
)

// Transport defaults
const (
	DefaultPortName       = "/dev/ttyUSB0"
	DefaultBaudRate       = 115200
	DefaultReadBufferSize = 64
	DefaultPollInterval   = 10 * time.Millisecond
	DefaultReadTimeout    = time.Millisecond
	DefaultQueueDepth     = 256
)

// Telemetry window defaults
const (
	DefaultCapacity = 100
	DefaultTimeStep = 0.1
)

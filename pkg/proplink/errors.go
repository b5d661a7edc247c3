// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import "errors"

// Fatal conditions. Either one stops the link worker.
var (
	ErrTransportOpen   = errors.New("transport open failed")
	ErrTransportClosed = errors.New("transport closed")
)

// Non-fatal conditions. The offending frame, sample or command is dropped
// and the link keeps running.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameOverflow  = errors.New("frame overflow")
	ErrTelemetryParse = errors.New("telemetry parse error")
	ErrWriteFailure   = errors.New("write failure")
)

// ErrUnknownTag is returned when an event or command names a tag outside
// the device's command set.
var ErrUnknownTag = errors.New("unknown tag")

// ErrInvalidValue is returned when a parameter value is not finite or lies
// outside the parameter's range.
var ErrInvalidValue = errors.New("invalid value")

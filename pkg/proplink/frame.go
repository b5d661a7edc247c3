// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"strings"
	"time"
	"unicode"
)

// Frame is one newline-delimited line received from the device. The
// delimiter itself is not part of the frame.
type Frame struct {
	raw       []byte
	timestamp time.Time
}

// NewFrame creates a frame from a raw payload (without the delimiter).
func NewFrame(raw []byte) *Frame {
	return &Frame{
		raw:       append([]byte(nil), raw...),
		timestamp: time.Now(),
	}
}

// Raw returns the payload bytes exactly as received
func (f *Frame) Raw() []byte {
	return f.raw
}

// Len returns the payload length in bytes
func (f *Frame) Len() int {
	return len(f.raw)
}

// Timestamp returns the host time at which the delimiter was seen
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Text returns the payload with control characters removed and surrounding
// whitespace trimmed. Firmware printf output commonly carries "\r" and
// stray NUL padding, neither of which belongs to the number.
func (f *Frame) Text() string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, string(f.raw))
	return strings.TrimSpace(cleaned)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"fmt"
	"unicode/utf8"
)

// Decoder splits the byte stream coming from the device into frames.
//
// Bytes that do not yet complete a line are kept across calls, so a line
// split over several reads is reassembled intact.
type Decoder struct {
	buffer     []byte
	discarding bool // Dropping an oversized line until the next delimiter
}

// NewDecoder creates a new line decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset drops any partial line and returns the decoder to its initial state
func (d *Decoder) Reset() {
	d.buffer = d.buffer[:0]
	d.discarding = false
}

// Pending returns the bytes received since the last delimiter
func (d *Decoder) Pending() []byte {
	return d.buffer
}

// DecodeByte processes a single byte.
// Returns a completed frame when b is the delimiter, or nil otherwise.
// Returns an error wrapping ErrMalformedFrame when the completed line is not
// valid UTF-8 or exceeds MaxFrameSize; the line is dropped and decoding
// continues with the next byte.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if b != Delimiter {
		if d.discarding {
			return nil, nil
		}
		if len(d.buffer) >= MaxFrameSize {
			dropped := len(d.buffer)
			d.buffer = d.buffer[:0]
			d.discarding = true
			return nil, fmt.Errorf("%w: %w: line longer than %d bytes (%d dropped)",
				ErrMalformedFrame, ErrFrameOverflow, MaxFrameSize, dropped)
		}
		d.buffer = append(d.buffer, b)
		return nil, nil
	}

	// Delimiter - close the current line
	if d.discarding {
		d.Reset()
		return nil, nil
	}

	defer func() { d.buffer = d.buffer[:0] }()

	if !utf8.Valid(d.buffer) {
		return nil, fmt.Errorf("%w: invalid UTF-8 in %q", ErrMalformedFrame, d.buffer)
	}

	// NewFrame copies, so the line buffer can be reused
	return NewFrame(d.buffer), nil
}

// Decode runs every byte of data through DecodeByte and collects the
// results in arrival order. An empty slice is a no-op.
func (d *Decoder) Decode(data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"iter"

	"github.com/proparm/console/pkg/proplink"
	"github.com/proparm/console/pkg/telemetry"
)

// Session is the console's end of the link: it turns events into queued
// command frames and moves received values into the telemetry buffer.
// It must only be used from the console's goroutine.
type Session struct {
	commands  *Queue[string]
	telemetry *Queue[float64]
	buffer    *telemetry.Buffer
	dropped   int
}

// NewSession creates a session on the console side of ch
func NewSession(ch Channels, buffer *telemetry.Buffer) *Session {
	return &Session{
		commands:  ch.Commands,
		telemetry: ch.Telemetry,
		buffer:    buffer,
	}
}

// Send encodes ev and queues the frame for the worker without blocking.
// Returns ErrQueueFull if the worker has fallen behind.
func (s *Session) Send(ev proplink.Event) error {
	frame, err := proplink.EncodeEvent(ev)
	if err != nil {
		return err
	}
	if !s.commands.TrySend(frame) {
		s.dropped++
		return ErrQueueFull
	}
	return nil
}

// Poll moves every value received since the last call into the buffer,
// in arrival order, and returns how many were added
func (s *Session) Poll() int {
	return s.telemetry.Drain(func(v float64) {
		s.buffer.Add(v)
	})
}

// Buffer returns the telemetry window read by the renderer
func (s *Session) Buffer() *telemetry.Buffer {
	return s.buffer
}

// Samples iterates the buffered window, oldest first
func (s *Session) Samples() iter.Seq[telemetry.Sample] {
	return s.buffer.All()
}

// Dropped returns how many commands were refused because the queue was full
func (s *Session) Dropped() int {
	return s.dropped
}

// Pending returns how many queued commands the worker has not taken yet
func (s *Session) Pending() int {
	return s.commands.Len()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks link throughput and error counts.
// It is not safe for concurrent use; the link worker owns it.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesRead       uint64
	Frames          uint64
	Samples         uint64
	MalformedFrames uint64
	Overflows       uint64
	ParseErrors     uint64
	DroppedSamples  uint64
	CommandsSent    uint64
	WriteFailures   uint64
	ReadErrors      uint64

	// Rates (calculated)
	SampleRate float64 // samples/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordRead counts bytes returned by one transport read
func (s *Statistics) RecordRead(n int) {
	if n > 0 {
		s.BytesRead += uint64(n)
	}
}

// RecordDecode counts the outcome of one DecodeByte call that produced a
// frame or an error
func (s *Statistics) RecordDecode(frame *Frame, decodeErr error) {
	if decodeErr != nil {
		s.MalformedFrames++
		if errors.Is(decodeErr, ErrFrameOverflow) {
			s.Overflows++
		}
		s.LastUpdateTime = time.Now()
		return
	}
	if frame != nil {
		s.Frames++
		s.LastUpdateTime = time.Now()
	}
}

// RecordSample counts a parsed sample; delivered is false when the
// telemetry queue was full
func (s *Statistics) RecordSample(parseErr error, delivered bool) {
	switch {
	case parseErr != nil:
		s.ParseErrors++
	case !delivered:
		s.DroppedSamples++
	default:
		s.Samples++
	}
}

// RecordWrite counts the outcome of one command write
func (s *Statistics) RecordWrite(err error) {
	if err != nil {
		s.WriteFailures++
		return
	}
	s.CommandsSent++
}

// RecordReadError counts a transient read error
func (s *Statistics) RecordReadError() {
	s.ReadErrors++
}

// Errors returns the total number of non-fatal errors seen
func (s *Statistics) Errors() uint64 {
	return s.MalformedFrames + s.ParseErrors + s.WriteFailures + s.ReadErrors
}

// CalculateRates calculates sample and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.SampleRate = float64(s.Samples) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.Frames+s.MalformedFrames > 0 {
		validPercent = float64(s.Samples) * 100.0 / float64(s.Frames+s.MalformedFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Read:      %8d\n", s.BytesRead)
	result += fmt.Sprintf("Frames:          %8d\n", s.Frames)
	result += fmt.Sprintf("Samples:         %8d (%.1f%%)\n", s.Samples, validPercent)

	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d\n", s.MalformedFrames)
		if s.Overflows > 0 {
			result += fmt.Sprintf("  Overflows:        %5d\n", s.Overflows)
		}
	}
	if s.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d\n", s.ParseErrors)
	}
	if s.DroppedSamples > 0 {
		result += fmt.Sprintf("Dropped Samples: %8d\n", s.DroppedSamples)
	}
	if s.ReadErrors > 0 {
		result += fmt.Sprintf("Read Errors:     %8d\n", s.ReadErrors)
	}

	result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	if s.WriteFailures > 0 {
		result += fmt.Sprintf("Write Failures:  %8d\n", s.WriteFailures)
	}

	result += fmt.Sprintf("Sample Rate:     %8.1f samples/sec\n", s.SampleRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "=====================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry holds the sliding window of samples shown on the plot.
package telemetry

import (
	"iter"
	"math"
)

// Sample is one timestamped telemetry value. The timestamp comes from the
// buffer's own clock; the wire format carries no device time.
type Sample struct {
	Time  float64
	Value float64
}

// Buffer is a fixed-capacity, time-ordered window of samples. When full,
// adding a sample evicts the oldest one.
//
// A Buffer is not safe for concurrent use. It belongs to the UI side and is
// only touched from the render/update loop.
type Buffer struct {
	samples  []Sample // Ring storage
	head     int      // Index of the oldest sample
	count    int
	clock    float64
	step     float64
	capacity int
}

// NewBuffer creates a buffer holding at most capacity samples whose
// timestamps advance by step per sample. Non-positive arguments fall back
// to 100 samples and a step of 0.1.
func NewBuffer(capacity int, step float64) *Buffer {
	if capacity <= 0 {
		capacity = 100
	}
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		step = 0.1
	}
	return &Buffer{
		samples:  make([]Sample, capacity),
		step:     step,
		capacity: capacity,
	}
}

// Add stamps value with the next clock tick and appends it, evicting the
// oldest sample if the buffer is full. Returns the stored sample.
func (b *Buffer) Add(value float64) Sample {
	b.clock += b.step
	s := Sample{Time: b.clock, Value: value}

	if b.count < b.capacity {
		b.samples[(b.head+b.count)%b.capacity] = s
		b.count++
		return s
	}

	// Full - overwrite the oldest slot and advance head
	b.samples[b.head] = s
	b.head = (b.head + 1) % b.capacity
	return s
}

// Len returns the number of samples held
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the maximum number of samples held
func (b *Buffer) Cap() int {
	return b.capacity
}

// At returns the i-th oldest sample. It panics if i is out of range.
func (b *Buffer) At(i int) Sample {
	if i < 0 || i >= b.count {
		panic("telemetry: index out of range")
	}
	return b.samples[(b.head+i)%b.capacity]
}

// Last returns the newest sample, or false if the buffer is empty
func (b *Buffer) Last() (Sample, bool) {
	if b.count == 0 {
		return Sample{}, false
	}
	return b.At(b.count - 1), true
}

// All yields the samples from oldest to newest. The sequence reads the
// buffer as it is when iterated, so each render sees the current window.
func (b *Buffer) All() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for i := 0; i < b.count; i++ {
			if !yield(b.samples[(b.head+i)%b.capacity]) {
				return
			}
		}
	}
}

// Range returns the smallest and largest finite values in the window.
// ok is false when no finite value is present.
func (b *Buffer) Range() (lo, hi float64, ok bool) {
	for s := range b.All() {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		if !ok {
			lo, hi, ok = s.Value, s.Value, true
			continue
		}
		lo = math.Min(lo, s.Value)
		hi = math.Max(hi, s.Value)
	}
	return lo, hi, ok
}

// Reset empties the buffer and restarts the clock
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
	b.clock = 0
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "errors"

// ErrQueueFull is returned when a command cannot be queued without blocking
var ErrQueueFull = errors.New("queue full")

// Queue is a bounded single-producer/single-consumer queue whose send and
// receive never block. Items come out in the order they went in.
type Queue[T any] struct {
	ch chan T
}

// NewQueue creates a queue holding up to depth items (minimum 1)
func NewQueue[T any](depth int) *Queue[T] {
	if depth < 1 {
		depth = 1
	}
	return &Queue[T]{ch: make(chan T, depth)}
}

// TrySend enqueues v and reports whether there was room
func (q *Queue[T]) TrySend(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryRecv dequeues the oldest item, if any
func (q *Queue[T]) TryRecv() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Drain hands queued items to fn in order and returns how many it handled.
// At most one queue's worth is drained per call so a fast producer cannot
// keep the consumer looping.
func (q *Queue[T]) Drain(fn func(T)) int {
	n := 0
	for n < cap(q.ch) {
		v, ok := q.TryRecv()
		if !ok {
			break
		}
		fn(v)
		n++
	}
	return n
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Channels are the two queues between the console and the link worker
type Channels struct {
	Commands  *Queue[string]  // Encoded command frames, console to worker
	Telemetry *Queue[float64] // Parsed sample values, worker to console
}

// NewChannels creates both queues with the same depth
func NewChannels(depth int) Channels {
	return Channels{
		Commands:  NewQueue[string](depth),
		Telemetry: NewQueue[float64](depth),
	}
}

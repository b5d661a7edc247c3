// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "testing"

func TestQueue_NonBlocking(t *testing.T) {
	q := NewQueue[int](2)

	if _, ok := q.TryRecv(); ok {
		t.Error("TryRecv() on empty queue reported a value")
	}
	if !q.TrySend(1) || !q.TrySend(2) {
		t.Fatal("TrySend() failed with room available")
	}
	if q.TrySend(3) {
		t.Error("TrySend() succeeded on a full queue")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[string](8)
	for _, s := range []string{"a", "b", "c"} {
		q.TrySend(s)
	}

	var got []string
	n := q.Drain(func(s string) { got = append(got, s) })
	if n != 3 || len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Drain() = %d %v, want 3 [a b c]", n, got)
	}
	if _, ok := q.TryRecv(); ok {
		t.Error("queue not empty after Drain")
	}
}

func TestQueue_MinimumDepth(t *testing.T) {
	q := NewQueue[int](0)
	if !q.TrySend(1) {
		t.Error("zero-depth queue should hold one item")
	}
}

func TestNewChannels(t *testing.T) {
	ch := NewChannels(4)
	if ch.Commands == nil || ch.Telemetry == nil {
		t.Fatal("NewChannels returned nil queue")
	}
	ch.Commands.TrySend("K")
	if ch.Telemetry.Len() != 0 {
		t.Error("queues are not independent")
	}
}

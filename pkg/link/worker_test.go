// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/proparm/console/pkg/proplink"
	"github.com/rs/zerolog"
)

func newTestWorker(conn Connection, depth int) (*Worker, Channels) {
	ch := NewChannels(depth)
	return NewWorker(conn, ch, DefaultConfig()), ch
}

func drainValues(q *Queue[float64]) []float64 {
	var out []float64
	q.Drain(func(v float64) { out = append(out, v) })
	return out
}

func runCycles(t *testing.T, w *Worker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := w.cycle(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
}

// ============================================================
// Cycle Tests
// ============================================================

func TestWorker_DecodesAcrossReads(t *testing.T) {
	conn := newFakeConn("12.5\n3", ".0\n")
	w, ch := newTestWorker(conn, 16)

	runCycles(t, w, 3)

	got := drainValues(ch.Telemetry)
	want := []float64{12.5, 3.0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWorker_EmptyReadIsNoop(t *testing.T) {
	conn := newFakeConn()
	w, ch := newTestWorker(conn, 16)

	runCycles(t, w, 5)

	if ch.Telemetry.Len() != 0 {
		t.Errorf("telemetry queue has %d items after empty reads", ch.Telemetry.Len())
	}
	if w.Stats().ReadErrors != 0 {
		t.Errorf("ReadErrors = %d, want 0", w.Stats().ReadErrors)
	}
}

func TestWorker_BadSampleDoesNotStall(t *testing.T) {
	conn := newFakeConn("abc\n", "1.5\n")
	w, ch := newTestWorker(conn, 16)

	runCycles(t, w, 2)

	got := drainValues(ch.Telemetry)
	if len(got) != 1 || got[0] != 1.5 {
		t.Errorf("samples = %v, want [1.5]", got)
	}
	if w.Stats().ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", w.Stats().ParseErrors)
	}
}

func TestWorker_MalformedFrameIsDropped(t *testing.T) {
	conn := newFakeConn("\xff\xfe\n2\n")
	w, ch := newTestWorker(conn, 16)

	runCycles(t, w, 1)

	got := drainValues(ch.Telemetry)
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("samples = %v, want [2]", got)
	}
	if w.Stats().MalformedFrames != 1 {
		t.Errorf("MalformedFrames = %d, want 1", w.Stats().MalformedFrames)
	}
}

func TestWorker_LargeReadUsesFixedBuffer(t *testing.T) {
	var stream string
	for i := 0; i < 40; i++ {
		stream += "1.25\n"
	}
	conn := newFakeConn(stream)
	w, ch := newTestWorker(conn, 64)

	// 200 bytes through a 64 byte buffer takes four reads
	runCycles(t, w, 1)
	if n := ch.Telemetry.Len(); n >= 40 {
		t.Fatalf("one cycle read %d samples, buffer size not honoured", n)
	}
	runCycles(t, w, 3)

	if got := len(drainValues(ch.Telemetry)); got != 40 {
		t.Errorf("got %d samples, want 40", got)
	}
}

func TestWorker_OneCommandPerCycle(t *testing.T) {
	conn := newFakeConn()
	w, ch := newTestWorker(conn, 16)

	ch.Commands.TrySend("P")
	ch.Commands.TrySend("p:0.5")

	runCycles(t, w, 1)
	if got := conn.written(); len(got) != 1 || got[0] != "P" {
		t.Fatalf("after one cycle writes = %q, want [P]", got)
	}

	runCycles(t, w, 1)
	if got := conn.written(); len(got) != 2 || got[1] != "p:0.5" {
		t.Fatalf("after two cycles writes = %q, want [P p:0.5]", got)
	}
}

func TestWorker_LogsSentCommand(t *testing.T) {
	var logs bytes.Buffer
	conn := newFakeConn()
	ch := NewChannels(16)
	cfg := DefaultConfig()
	cfg.Logger = zerolog.New(&logs).Level(zerolog.DebugLevel)
	w := NewWorker(conn, ch, cfg)

	ch.Commands.TrySend("p:0.5")
	runCycles(t, w, 1)

	if !strings.Contains(logs.String(), `(P = 0.5)`) {
		t.Errorf("debug log = %q, want the decoded command", logs.String())
	}
}

func TestWorker_ShortWritesComplete(t *testing.T) {
	conn := newFakeConn()
	conn.maxWrite = 2
	w, ch := newTestWorker(conn, 16)

	ch.Commands.TrySend("a:0.125")
	runCycles(t, w, 1)

	if got := conn.wire(); got != "a:0.125" {
		t.Errorf("wire = %q, want %q", got, "a:0.125")
	}
	if w.Stats().CommandsSent != 1 {
		t.Errorf("CommandsSent = %d, want 1", w.Stats().CommandsSent)
	}
}

func TestWorker_WriteFailureIsTolerated(t *testing.T) {
	conn := newFakeConn("4\n")
	conn.writeErr = errors.New("device unplugged")
	w, ch := newTestWorker(conn, 16)

	ch.Commands.TrySend("K")
	runCycles(t, w, 1)

	if w.Stats().WriteFailures != 1 {
		t.Errorf("WriteFailures = %d, want 1", w.Stats().WriteFailures)
	}
	if ch.Commands.Len() != 0 {
		t.Errorf("failed command was requeued")
	}
	if got := drainValues(ch.Telemetry); len(got) != 1 {
		t.Errorf("telemetry stalled after write failure: %v", got)
	}
}

func TestWorker_TransientReadError(t *testing.T) {
	conn := newFakeConn()
	conn.readErr = errors.New("interrupted system call")
	w, _ := newTestWorker(conn, 16)

	runCycles(t, w, 3)

	if w.Stats().ReadErrors != 3 {
		t.Errorf("ReadErrors = %d, want 3", w.Stats().ReadErrors)
	}
}

func TestWorker_TransportClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"eof", io.EOF},
		{"closed", proplink.ErrTransportClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn()
			conn.readErr = tt.err
			w, _ := newTestWorker(conn, 16)

			err := w.cycle()
			if !errors.Is(err, proplink.ErrTransportClosed) {
				t.Errorf("cycle() = %v, want ErrTransportClosed", err)
			}
		})
	}
}

func TestWorker_DropsWhenTelemetryFull(t *testing.T) {
	conn := newFakeConn("1\n2\n3\n")
	w, ch := newTestWorker(conn, 1)

	runCycles(t, w, 1)

	got := drainValues(ch.Telemetry)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("samples = %v, want [1]", got)
	}
	if w.Stats().DroppedSamples != 2 {
		t.Errorf("DroppedSamples = %d, want 2", w.Stats().DroppedSamples)
	}
}

// ============================================================
// Run Tests
// ============================================================

func TestWorker_RunStopsOnCancel(t *testing.T) {
	conn := newFakeConn()
	w, _ := newTestWorker(conn, 16)

	ctx, cancel := context.WithCancel(context.Background())
	errc := w.Start(ctx)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorker_RunEndsOnTransportLoss(t *testing.T) {
	conn := newFakeConn("7\n8\n")
	conn.readErr = io.EOF
	w, ch := newTestWorker(conn, 16)

	select {
	case err := <-w.Start(context.Background()):
		if !errors.Is(err, proplink.ErrTransportClosed) {
			t.Errorf("Run() = %v, want ErrTransportClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker kept running after EOF")
	}

	got := drainValues(ch.Telemetry)
	if len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("samples = %v, want [7 8]", got)
	}
}

func TestWorker_EndToEndWithSession(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannels(16)
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	w := NewWorker(conn, ch, cfg)
	s := newTestSession(ch, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := w.Start(ctx)

	if err := s.Send(proplink.NewParameterChange(proplink.ParamKp, 0.5)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	conn.push("0.1\n0.2\n0.")
	conn.push("3\n")

	deadline := time.Now().Add(2 * time.Second)
	for s.Buffer().Len() < 3 || len(conn.written()) < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: buffer=%d writes=%q", s.Buffer().Len(), conn.written())
		}
		s.Poll()
		time.Sleep(time.Millisecond)
	}

	if got := conn.written()[0]; got != "p:0.5" {
		t.Errorf("written frame = %q, want %q", got, "p:0.5")
	}
	want := []float64{0.1, 0.2, 0.3}
	got := slices.Collect(s.Samples())
	if len(got) != len(want) {
		t.Fatalf("buffered %d samples, want %d", len(got), len(want))
	}
	for i, smp := range got {
		if smp.Value != want[i] {
			t.Errorf("sample %d = %v, want %v", i, smp.Value, want[i])
		}
	}

	cancel()
	<-errc
}

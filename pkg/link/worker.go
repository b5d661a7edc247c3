// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/proparm/console/pkg/proplink"
	"github.com/rs/zerolog"
)

// Config controls the link worker's polling loop
type Config struct {
	PollInterval   time.Duration // Sleep between cycles
	ReadBufferSize int           // Bytes requested per read
	StatsInterval  time.Duration // Statistics log period, 0 disables
	Logger         zerolog.Logger
}

// DefaultConfig returns the worker settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		PollInterval:   proplink.DefaultPollInterval,
		ReadBufferSize: proplink.DefaultReadBufferSize,
		Logger:         zerolog.Nop(),
	}
}

// Worker owns the transport and runs the read/decode/write cycle on its own
// goroutine. It talks to the console only through Channels.
//
// Each cycle makes one non-blocking read, decodes whatever arrived, queues
// the parsed samples, then sends at most one pending command. Malformed
// frames, unparsable samples and failed writes are logged, counted and
// dropped; only loss of the transport stops the worker.
type Worker struct {
	conn      Connection
	decoder   *proplink.Decoder
	commands  *Queue[string]
	telemetry *Queue[float64]
	stats     *proplink.Statistics
	cfg       Config
	log       zerolog.Logger
	buf       []byte
	lastStats time.Time
}

// NewWorker creates a worker for conn. The worker takes ownership of conn
// but does not close it.
func NewWorker(conn Connection, ch Channels, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = proplink.DefaultPollInterval
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = proplink.DefaultReadBufferSize
	}
	return &Worker{
		conn:      conn,
		decoder:   proplink.NewDecoder(),
		commands:  ch.Commands,
		telemetry: ch.Telemetry,
		stats:     proplink.NewStatistics(),
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "link").Logger(),
		buf:       make([]byte, cfg.ReadBufferSize),
		lastStats: time.Now(),
	}
}

// Run cycles until ctx is done or the transport is lost. It returns
// ctx.Err() on cancellation and an error wrapping
// proplink.ErrTransportClosed on transport loss.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("link worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.cycle(); err != nil {
			w.log.Error().Err(err).Msg("link worker stopped")
			return err
		}
		w.maybeLogStats()

		select {
		case <-ctx.Done():
			w.log.Debug().Msg("link worker cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Start runs the worker on a new goroutine. The returned channel receives
// Run's result.
func (w *Worker) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- w.Run(ctx)
	}()
	return errc
}

// Stats returns the worker's counters. Only read it after Run has returned.
func (w *Worker) Stats() *proplink.Statistics {
	return w.stats
}

// cycle performs one Reading -> Decoding -> Draining -> Writing pass
func (w *Worker) cycle() error {
	n, readErr := w.conn.Read(w.buf)
	w.stats.RecordRead(n)

	for i := 0; i < n; i++ {
		w.decodeByte(w.buf[i])
	}

	if readErr != nil {
		if errors.Is(readErr, proplink.ErrTransportClosed) {
			return readErr
		}
		if errors.Is(readErr, io.EOF) {
			return fmt.Errorf("%w: %w", proplink.ErrTransportClosed, readErr)
		}
		// Transient (e.g. serial timeout quirks) - try again next cycle
		w.stats.RecordReadError()
		w.log.Debug().Err(readErr).Msg("read error")
	}

	if frame, ok := w.commands.TryRecv(); ok {
		w.send(frame)
	}

	return nil
}

func (w *Worker) decodeByte(b byte) {
	frame, decodeErr := w.decoder.DecodeByte(b)
	if decodeErr == nil && frame == nil {
		return
	}
	w.stats.RecordDecode(frame, decodeErr)

	if decodeErr != nil {
		w.log.Warn().Err(decodeErr).Msg("dropped malformed frame")
		return
	}

	value, parseErr := proplink.ParseSample(frame)
	if parseErr != nil {
		w.stats.RecordSample(parseErr, false)
		w.log.Warn().Err(parseErr).Msg("dropped sample")
		return
	}

	delivered := w.telemetry.TrySend(value)
	w.stats.RecordSample(nil, delivered)
	if !delivered {
		w.log.Warn().Float64("value", value).Msg("telemetry queue full, sample dropped")
		return
	}
	w.log.Trace().Float64("value", value).Msg("sample")
}

// send writes one command frame in full. Delivery is best effort: a failed
// write is logged and the command is not retried.
func (w *Worker) send(frame string) {
	err := writeFull(w.conn, []byte(frame))
	if err != nil {
		err = fmt.Errorf("%w: %q: %w", proplink.ErrWriteFailure, frame, err)
		w.stats.RecordWrite(err)
		w.log.Warn().Err(err).Msg("command not sent")
		return
	}
	w.stats.RecordWrite(nil)
	if e := w.log.Debug(); e.Enabled() {
		e.Str("command", proplink.FormatCommand(frame)).Msg("command sent")
	}
}

func writeFull(wr io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := wr.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

func (w *Worker) maybeLogStats() {
	if w.cfg.StatsInterval <= 0 || time.Since(w.lastStats) < w.cfg.StatsInterval {
		return
	}
	w.lastStats = time.Now()
	w.stats.CalculateRates()
	w.log.Info().
		Uint64("bytes", w.stats.BytesRead).
		Uint64("frames", w.stats.Frames).
		Uint64("samples", w.stats.Samples).
		Uint64("malformed", w.stats.MalformedFrames).
		Uint64("parse_errors", w.stats.ParseErrors).
		Uint64("dropped", w.stats.DroppedSamples).
		Uint64("commands", w.stats.CommandsSent).
		Uint64("write_failures", w.stats.WriteFailures).
		Float64("sample_rate", w.stats.SampleRate).
		Msg("link statistics")
}

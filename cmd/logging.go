// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const envLogLevel = "PROPARM_LOG_LEVEL"

func applyEnvOverrides(cfg *consoleConfig) {
	if raw := os.Getenv(envLogLevel); raw != "" {
		if _, ok := parseLevel(raw); ok {
			cfg.LogLevel = raw
		}
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "", "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// newLogger returns a logger writing human-readable lines to out
func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "proparm").Logger()
}

// setupLogger builds the command logger from cfg. With a log file, logs are
// appended there as JSON. Otherwise interactive commands stay silent and
// text commands log to stderr. The returned func closes the log file.
func setupLogger(cfg consoleConfig, interactive bool) (zerolog.Logger, func() error, error) {
	level, ok := parseLevel(cfg.LogLevel)
	if !ok {
		return zerolog.Nop(), nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	noop := func() error { return nil }

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		logger := zerolog.New(f).Level(level).With().Timestamp().Str("app", "proparm").Logger()
		return logger, f.Close, nil
	}

	if interactive {
		// stderr would tear the alternate screen
		return zerolog.Nop(), noop, nil
	}

	return newLogger(os.Stderr, level), noop, nil
}

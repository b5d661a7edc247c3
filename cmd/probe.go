// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a telemetry sample",
	Long: `Wait for a valid telemetry sample on the connection until timeout.

This command connects to a serial port or WebSocket and waits for one line
that parses as a number. Malformed lines and anything else that fails to
parse are skipped.

Exit codes:
  0 - Sample received before timeout
  1 - Timeout reached without receiving a sample
  2 - Connection error

Useful for checking wiring and baud rate before starting the console.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a sample")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Proparm - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a telemetry sample...\n\n")

	worker, session := newLink(conn, cfg, logger)
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	errc := worker.Start(ctx)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	timeout := time.After(time.Duration(probeTimeout) * time.Second)

	for {
		select {
		case <-ticker.C:
			if session.Poll() == 0 {
				continue
			}
			cancel()
			<-errc
			sample, _ := session.Buffer().Last()
			stats := worker.Stats()
			fmt.Printf("SUCCESS: Received sample\n")
			fmt.Printf("  Value: %v\n", sample.Value)
			fmt.Printf("  Bytes read: %d\n", stats.BytesRead)
			if skipped := stats.MalformedFrames + stats.ParseErrors; skipped > 0 {
				fmt.Printf("  (skipped %d bad line(s) first)\n", skipped)
			}
			os.Exit(0)

		case err := <-errc:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-timeout:
			cancel()
			<-errc
			fmt.Fprintf(os.Stderr, "TIMEOUT: No sample received within %d seconds\n", probeTimeout)
			if stats := worker.Stats(); stats.Frames > 0 {
				fmt.Fprintf(os.Stderr, "  %d line(s) received, none parsed as a number\n", stats.Frames)
			}
			os.Exit(1)
		}
	}
}

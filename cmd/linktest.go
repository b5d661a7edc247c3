// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/proparm/console/pkg/link"
	"github.com/proparm/console/pkg/proplink"
	"github.com/spf13/cobra"
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw link stability",
	Long: `Test the connection without sending any commands.

This command connects and just listens, logging each chunk of data received
and any errors encountered. Frames are decoded so malformed lines show up in
the results. Useful for debugging cabling, baud rate and bridge stability.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkTest,
}

var linkTestDuration int

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)
	go readChunks(conn, cfg.PollInterval, readChan, errChan)

	start := time.Now()
	endTime := start.Add(time.Duration(linkTestDuration) * time.Second)
	decoder := proplink.NewDecoder()
	stats := proplink.NewStatistics()

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			stats.RecordRead(len(data))
			fmt.Printf("[%s] Received %d bytes: %x\n",
				time.Now().Format("15:04:05.000"), len(data), data)
			frames, errs := decoder.Decode(data)
			for _, f := range frames {
				stats.RecordDecode(f, nil)
			}
			for _, e := range errs {
				stats.RecordDecode(nil, e)
				fmt.Printf("[%s] %v\n", time.Now().Format("15:04:05.000"), e)
			}

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			printLinkTestResults(time.Since(start), stats)
			fmt.Printf("Result: FAILED (connection error)\n")
			os.Exit(1)

		case <-time.After(1 * time.Second):
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	printLinkTestResults(time.Since(start), stats)
	fmt.Printf("Result: PASSED (connection stable)\n")

	return nil
}

// readChunks forwards whatever conn delivers until the transport goes away.
// Empty reads and transient errors both wait idle before the next attempt.
func readChunks(conn link.Connection, idle time.Duration, out chan<- []byte, errc chan<- error) {
	buf := make([]byte, proplink.MaxFrameSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- data
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, proplink.ErrTransportClosed) {
				errc <- err
				return
			}
			time.Sleep(idle)
			continue
		}
		if n == 0 {
			time.Sleep(idle)
		}
	}
}

func printLinkTestResults(elapsed time.Duration, stats *proplink.Statistics) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Bytes received: %d\n", stats.BytesRead)
	fmt.Printf("Frames received: %d\n", stats.Frames)
	fmt.Printf("Malformed frames: %d\n", stats.MalformedFrames)
}

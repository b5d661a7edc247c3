// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/proparm/console/pkg/link"
	"github.com/proparm/console/pkg/proplink"
	"github.com/proparm/console/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	monitorRaw bool
	monitorHex bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print telemetry as it arrives",
	Long: `Continuously print the values streamed by the device, one per line,
with the console's synthetic timestamp:

  t=0.1 value=12.5

With --raw every received line is shown as a frame instead, including the
ones that fail to parse; --hex adds a hex dump of each frame.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Print decoded frames instead of samples")
	monitorCmd.Flags().BoolVar(&monitorHex, "hex", false, "Hex dump each frame (with --raw)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
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
		return err
	}
	defer conn.Close()

	fmt.Printf("Proparm - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if monitorRaw {
		return monitorFrames(ctx, conn, cfg, logger)
	}
	return monitorSamples(ctx, conn, cfg, logger)
}

func monitorSamples(ctx context.Context, conn link.Connection, cfg consoleConfig, logger zerolog.Logger) error {
	worker, session := newLink(conn, cfg, logger)
	errc := worker.Start(ctx)

	color := term.IsTerminal(int(os.Stdout.Fd()))
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errc:
			printNewSamples(os.Stdout, session.Buffer(), session.Poll(), color)
			fmt.Printf("\n%s", worker.Stats())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ticker.C:
			printNewSamples(os.Stdout, session.Buffer(), session.Poll(), color)
		}
	}
}

// printNewSamples writes the n most recently added samples of b
func printNewSamples(w io.Writer, b *telemetry.Buffer, n int, color bool) {
	n = min(n, b.Len())
	for i := b.Len() - n; i < b.Len(); i++ {
		fmt.Fprintln(w, formatSample(b.At(i), color))
	}
}

func formatSample(s telemetry.Sample, color bool) string {
	t := strconv.FormatFloat(s.Time, 'f', 1, 64)
	v := strconv.FormatFloat(s.Value, 'g', -1, 64)
	if color {
		return fmt.Sprintf("%s %s", headerStyle.Render("t="+t), valueStyle.Render("value="+v))
	}
	return fmt.Sprintf("t=%s value=%s", t, v)
}

// monitorFrames shows every line the device sends, without the worker
func monitorFrames(ctx context.Context, conn link.Connection, cfg consoleConfig, logger zerolog.Logger) error {
	decoder := proplink.NewDecoder()
	stats := proplink.NewStatistics()
	buf := make([]byte, proplink.DefaultReadBufferSize)
	bad := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	color := term.IsTerminal(int(os.Stdout.Fd()))

	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		stats.RecordRead(n)
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr == nil && frame == nil {
				continue
			}
			stats.RecordDecode(frame, decodeErr)
			if decodeErr != nil {
				line := fmt.Sprintf("[ERROR] %v", decodeErr)
				if color {
					line = bad.Render(line)
				}
				fmt.Println(line)
				continue
			}
			fmt.Print(proplink.FormatFrame(frame))
			if monitorHex {
				fmt.Println(proplink.HexDump(frame.Raw()))
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, proplink.ErrTransportClosed) {
				logger.Info().Err(err).Msg("connection closed")
				break
			}
			stats.RecordReadError()
			logger.Debug().Err(err).Msg("read error")
		}
		if n == 0 {
			time.Sleep(cfg.PollInterval)
		}
	}

	fmt.Printf("\n%s", stats)
	return nil
}

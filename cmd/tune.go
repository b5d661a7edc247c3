// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Interactive console for tuning filters and controllers",
	Long: `Tune the propeller arm from an interactive terminal UI.

Two pages list the attitude filters (complementary, Kalman) and the
controllers (PID, cascade, LQR) with their parameters. Tab switches pages,
arrow keys move and adjust, Enter activates a mode and e types in an exact
value. A command is sent only when something actually changes.

The telemetry plot shows the most recent window of values received from the
device. Logs are discarded unless --log-file is given.

Supports both serial and WebSocket connections.`,
	RunE: runTune,
}

func init() {
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	worker, session := newLink(conn, cfg, logger)
	m := newConsoleModel(session, connInfo, cfg.Parameters)

	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	linkDone := make(chan error, 1)
	errc := worker.Start(ctx)
	go func() {
		err := <-errc
		linkDone <- err
		p.Send(linkClosedMsg{err: err})
	}()

	logger.Info().Str("connection", connInfo).Msg("console started")

	_, runErr := p.Run()
	cancel()
	linkErr := <-linkDone

	stats := worker.Stats()
	logger.Info().
		Uint64("samples", stats.Samples).
		Uint64("commands", stats.CommandsSent).
		Uint64("errors", stats.Errors()).
		Int("dropped_commands", session.Dropped()).
		Msg("console stopped")

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	if linkErr != nil && !errors.Is(linkErr, context.Canceled) {
		logger.Warn().Err(linkErr).Msg("link ended before quit")
	}
	return nil
}

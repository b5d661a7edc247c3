// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/proparm/console/pkg/proplink"
	"github.com/spf13/cobra"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <command>...",
	Short: "Send commands to the device and exit",
	Long: `Send one or more commands, in order, then exit.

A command is a mode symbol or a parameter update:
  proparm send K           select the Kalman filter
  proparm send P p:0.4     select PID, then set its proportional gain

Run "proparm send --list" to see every tag.`,
	RunE: runSend,
}

var sendList bool

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "Give up if the commands are not written in time")
	sendCmd.Flags().BoolVar(&sendList, "list", false, "List the command tags and exit")
}

func parseCommands(args []string) ([]proplink.Event, error) {
	events := make([]proplink.Event, 0, len(args))
	for _, arg := range args {
		ev, err := proplink.ParseCommand(arg)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendList {
		fmt.Print(proplink.FormatTags())
		return nil
	}
	if len(args) == 0 {
		return errors.New("no commands given")
	}

	// Reject bad input before touching the device
	events, err := parseCommands(args)
	if err != nil {
		return err
	}

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

	if len(events) > cfg.QueueDepth {
		cfg.QueueDepth = len(events)
	}
	worker, session := newLink(conn, cfg, logger)
	for _, ev := range events {
		if err := session.Send(ev); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()
	errc := worker.Start(ctx)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var runErr error
wait:
	for session.Pending() > 0 {
		select {
		case runErr = <-errc:
			break wait
		case <-ticker.C:
		}
	}
	if runErr == nil {
		// The worker finishes the cycle in progress before it sees the cancel
		cancel()
		runErr = <-errc
	}

	stats := worker.Stats()
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sent %d of %d command(s)\n", stats.CommandsSent, len(events))

	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		return fmt.Errorf("timed out with %d command(s) unsent", session.Pending())
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return runErr
	case stats.WriteFailures > 0:
		return fmt.Errorf("%w: %d command(s) failed", proplink.ErrWriteFailure, stats.WriteFailures)
	}
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/proparm/console/pkg/link"
	"github.com/proparm/console/pkg/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const envPassword = "PROPARM_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(envPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a WebSocket connection when a URL is configured and
// the serial port otherwise
func OpenConnection(cfg consoleConfig) (link.Connection, string, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := link.OpenWebSocket(cfg.URL, cfg.Username, password, cfg.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", cfg.URL), nil
	}

	if cfg.Port == "" {
		return nil, "", fmt.Errorf("either --port or --url must be specified")
	}

	conn, err := link.OpenSerial(cfg.Port, cfg.Baud, cfg.ReadTimeout)
	if err != nil {
		return nil, "", err
	}

	return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
}

// newLink wires a worker and a session around conn
func newLink(conn link.Connection, cfg consoleConfig, logger zerolog.Logger) (*link.Worker, *link.Session) {
	ch := link.NewChannels(cfg.QueueDepth)

	wcfg := link.DefaultConfig()
	wcfg.PollInterval = cfg.PollInterval
	wcfg.StatsInterval = cfg.StatsInterval
	wcfg.Logger = logger

	worker := link.NewWorker(conn, ch, wcfg)
	session := link.NewSession(ch, telemetry.NewBuffer(cfg.BufferCapacity, cfg.TimeStep))
	return worker, session
}

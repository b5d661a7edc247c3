// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Proparm - tuning console for the propeller arm
//
// Sends filter and controller settings to the device over a serial line and
// plots the telemetry it streams back.

package main

import (
	"os"

	"github.com/proparm/console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

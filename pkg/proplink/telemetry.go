// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"fmt"
	"strconv"
)

// ParseSample extracts the scalar carried by a telemetry frame.
// Returns an error wrapping ErrTelemetryParse if the cleaned text is not a
// number.
func ParseSample(f *Frame) (float64, error) {
	return ParseValue(f.Text())
}

// ParseValue parses cleaned frame text as a real number
func ParseValue(text string) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrTelemetryParse, text)
	}
	return v, nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"iter"
	"math"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/proparm/console/pkg/telemetry"
)

const plotPrecision = 2

// renderPlot draws the samples as a line chart with a value axis, at most
// width columns wide (axis included) and about height rows tall. Windows longer
// than the space left by the axis are resampled to fit. Non-finite samples
// leave a gap. Returns "" when there is nothing to draw.
func renderPlot(samples iter.Seq[telemetry.Sample], width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	var values []float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for s := range samples {
		v := s.Value
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		if !math.IsNaN(v) {
			lo, hi = min(lo, v), max(hi, v)
		}
		values = append(values, v)
	}
	if lo > hi {
		return ""
	}

	cols := width - plotAxisWidth(lo, hi)
	if cols < 1 {
		return ""
	}

	opts := []asciigraph.Option{
		asciigraph.Height(max(height-1, 1)),
		asciigraph.Precision(plotPrecision),
	}
	if len(values) > cols {
		opts = append(opts, asciigraph.Width(cols))
	}
	return asciigraph.Plot(values, opts...)
}

// plotAxisWidth is the room taken by the labels, the default label offset
// and the axis line
func plotAxisWidth(lo, hi float64) int {
	label := max(
		len(strconv.FormatFloat(lo, 'f', plotPrecision, 64)),
		len(strconv.FormatFloat(hi, 'f', plotPrecision, 64)),
	)
	return label + 5
}

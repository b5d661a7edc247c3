// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"fmt"
	"strings"
)

// FormatFrame formats a received frame into a human-readable line
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	return fmt.Sprintf("[%s] FRAME %q len=%d\n", timestamp, f.Text(), f.Len())
}

// FormatCommand formats an outgoing command frame with its meaning
func FormatCommand(frame string) string {
	ev, err := ParseCommand(frame)
	if err != nil {
		return fmt.Sprintf("%q (unknown)", frame)
	}
	return fmt.Sprintf("%q (%s)", frame, ev)
}

// FormatTags returns a table of every command the device understands
func FormatTags() string {
	var s strings.Builder
	s.WriteString("Modes:\n")
	for _, m := range Modes() {
		s.WriteString(fmt.Sprintf("  %s  %-22s %s\n", m.Tag, m.Name, m.Group))
	}
	s.WriteString("Parameters:\n")
	for _, p := range Parameters() {
		mode, _ := LookupMode(p.Mode)
		s.WriteString(fmt.Sprintf("  %s  %-6s %-22s range %s..%s\n",
			p.Tag, p.Name, mode.Name, FormatValue(p.Min), FormatValue(p.Max)))
	}
	return s.String()
}

// HexDump formats raw bytes as a hex listing, 16 bytes per row
func HexDump(data []byte) string {
	var s strings.Builder
	for i, b := range data {
		if i > 0 {
			if i%16 == 0 {
				s.WriteString("\n")
			} else {
				s.WriteString(" ")
			}
		}
		s.WriteString(fmt.Sprintf("%02X", b))
	}
	return s.String()
}

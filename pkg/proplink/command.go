// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"fmt"
	"strconv"
	"strings"
)

// Event is a single change raised by the console: either a new value for a
// tunable parameter or the selection of a mode.
type Event struct {
	Tag      Tag
	Value    float64
	HasValue bool
}

// NewParameterChange creates an event carrying a new parameter value
func NewParameterChange(tag Tag, value float64) Event {
	return Event{Tag: tag, Value: value, HasValue: true}
}

// NewModeSelect creates a bare mode selection event
func NewModeSelect(tag Tag) Event {
	return Event{Tag: tag}
}

func (e Event) String() string {
	if e.HasValue {
		if p, ok := LookupParameter(e.Tag); ok {
			return fmt.Sprintf("%s = %s", p.Name, FormatValue(e.Value))
		}
		return fmt.Sprintf("%s = %s", e.Tag, FormatValue(e.Value))
	}
	if m, ok := LookupMode(e.Tag); ok {
		return "select " + m.Name
	}
	return "select " + e.Tag.String()
}

// FormatValue renders a value as the shortest decimal that parses back to
// the same float64. The firmware reads it with sscanf("%f") into a float32,
// so precision beyond that is lost on the device side.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EncodeEvent maps an event to its command frame: "<tag>" for a mode
// selection, "<tag>:<value>" for a parameter change. No range checking is
// done; the console clamps values before raising events.
func EncodeEvent(e Event) (string, error) {
	if e.HasValue {
		if !e.Tag.IsParameter() {
			return "", fmt.Errorf("%w: %q does not take a value", ErrUnknownTag, e.Tag.String())
		}
		return e.Tag.String() + string(rune(ValueSep)) + FormatValue(e.Value), nil
	}

	if !e.Tag.IsMode() {
		return "", fmt.Errorf("%w: %q is not a mode symbol", ErrUnknownTag, e.Tag.String())
	}
	return e.Tag.String(), nil
}

// ParseCommand is the inverse of EncodeEvent. It accepts "K" or "p:0.5";
// surrounding whitespace is ignored. Parameter values must pass
// Parameter.Check, so user input never reaches the device out of range.
func ParseCommand(s string) (Event, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Event{}, fmt.Errorf("%w: empty command", ErrUnknownTag)
	}

	tag := Tag(s[0])
	rest := s[1:]
	if !tag.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownTag, s)
	}

	if rest == "" {
		if !tag.IsMode() {
			return Event{}, fmt.Errorf("%w: %q is not a mode symbol", ErrUnknownTag, s)
		}
		return NewModeSelect(tag), nil
	}

	if rest[0] != ValueSep {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownTag, s)
	}
	param, ok := LookupParameter(tag)
	if !ok {
		return Event{}, fmt.Errorf("%w: %q does not take a value", ErrUnknownTag, tag.String())
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(rest[1:]), 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w in %q: %w", ErrInvalidValue, s, err)
	}
	if err := param.Check(value); err != nil {
		return Event{}, err
	}
	return NewParameterChange(tag, value), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package proplink

import (
	"fmt"
	"math"
)

// Tag identifies a device command. Every tag is a single ASCII character.
type Tag byte

// Mode selection symbols (sent without a value)
const (
	ModeComplementary Tag = 'k'
	ModeKalman        Tag = 'K'
	ModePID           Tag = 'P'
	ModeCascade       Tag = 'C'
	ModeLQR           Tag = 'L'
)

// Tunable parameters (sent as tag:value)
const (
	ParamAlpha   Tag = 'a' // Complementary filter blend
	ParamKalmanX Tag = 'x'
	ParamKalmanY Tag = 'y'
	ParamKalmanZ Tag = 'z'
	ParamKp      Tag = 'p'
	ParamKi      Tag = 'i'
	ParamKd      Tag = 'd'
)

// Group separates attitude filters from flight controllers. The device runs
// one mode of each group at a time.
type Group int

const (
	GroupFilter Group = iota
	GroupController
)

func (g Group) String() string {
	switch g {
	case GroupFilter:
		return "Filters"
	case GroupController:
		return "Controllers"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

// Mode describes a selectable filter or controller
type Mode struct {
	Tag   Tag
	Name  string
	Group Group
}

// Parameter describes a tunable value and the slider that edits it
type Parameter struct {
	Tag     Tag
	Name    string
	Mode    Tag // Mode the parameter belongs to
	Min     float64
	Max     float64
	Default float64
	Step    float64
}

// Clamp limits v to the parameter range
func (p Parameter) Clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}

// Check reports whether v can be sent as this parameter's value. NaN and
// the infinities are refused, as is anything outside Min..Max.
func (p Parameter) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite", ErrInvalidValue, p.Name)
	}
	if v < p.Min || v > p.Max {
		return fmt.Errorf("%w: %s = %s is outside %s..%s", ErrInvalidValue,
			p.Name, FormatValue(v), FormatValue(p.Min), FormatValue(p.Max))
	}
	return nil
}

var modeTable = []Mode{
	{Tag: ModeComplementary, Name: "Complementary filter", Group: GroupFilter},
	{Tag: ModeKalman, Name: "Kalman filter", Group: GroupFilter},
	{Tag: ModePID, Name: "PID", Group: GroupController},
	{Tag: ModeCascade, Name: "Cascade", Group: GroupController},
	{Tag: ModeLQR, Name: "LQR", Group: GroupController},
}

// The Kalman defaults sit above the slider range on purpose: they match the
// firmware's power-on values, and the first adjustment clamps them.
var parameterTable = []Parameter{
	{Tag: ParamAlpha, Name: "Alpha", Mode: ModeComplementary, Min: 0, Max: 1, Default: 0.99, Step: 0.01},
	{Tag: ParamKalmanX, Name: "x", Mode: ModeKalman, Min: 0, Max: 1, Default: 1, Step: 0.01},
	{Tag: ParamKalmanY, Name: "y", Mode: ModeKalman, Min: 0, Max: 1, Default: 2, Step: 0.01},
	{Tag: ParamKalmanZ, Name: "z", Mode: ModeKalman, Min: 0, Max: 1, Default: 3, Step: 0.01},
	{Tag: ParamKp, Name: "P", Mode: ModePID, Min: 0, Max: 1, Default: 0.5, Step: 0.01},
	{Tag: ParamKi, Name: "I", Mode: ModePID, Min: 0, Max: 1, Default: 0.5, Step: 0.01},
	{Tag: ParamKd, Name: "D", Mode: ModePID, Min: 0, Max: 1, Default: 0.5, Step: 0.01},
}

// Modes returns every selectable mode in display order
func Modes() []Mode {
	return append([]Mode(nil), modeTable...)
}

// ModesInGroup returns the modes of one group in display order
func ModesInGroup(g Group) []Mode {
	var out []Mode
	for _, m := range modeTable {
		if m.Group == g {
			out = append(out, m)
		}
	}
	return out
}

// Parameters returns every tunable parameter in display order
func Parameters() []Parameter {
	return append([]Parameter(nil), parameterTable...)
}

// ParametersFor returns the parameters that belong to a mode
func ParametersFor(mode Tag) []Parameter {
	var out []Parameter
	for _, p := range parameterTable {
		if p.Mode == mode {
			out = append(out, p)
		}
	}
	return out
}

// LookupMode finds a mode by its selection symbol
func LookupMode(t Tag) (Mode, bool) {
	for _, m := range modeTable {
		if m.Tag == t {
			return m, true
		}
	}
	return Mode{}, false
}

// LookupParameter finds a parameter by tag
func LookupParameter(t Tag) (Parameter, bool) {
	for _, p := range parameterTable {
		if p.Tag == t {
			return p, true
		}
	}
	return Parameter{}, false
}

// IsMode reports whether t is a mode selection symbol
func (t Tag) IsMode() bool {
	_, ok := LookupMode(t)
	return ok
}

// IsParameter reports whether t names a tunable parameter
func (t Tag) IsParameter() bool {
	_, ok := LookupParameter(t)
	return ok
}

// Valid reports whether t belongs to the device command set
func (t Tag) Valid() bool {
	return t.IsMode() || t.IsParameter()
}

func (t Tag) String() string {
	return string(rune(t))
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/proparm/console/pkg/link"
	"github.com/proparm/console/pkg/proplink"
	"github.com/proparm/console/pkg/telemetry"
)

func newTestConsole(depth int) (*consoleModel, link.Channels) {
	ch := link.NewChannels(depth)
	session := link.NewSession(ch, telemetry.NewBuffer(proplink.DefaultCapacity, proplink.DefaultTimeStep))
	return newConsoleModel(session, "test", nil), ch
}

func press(m *consoleModel, keys ...tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(k)
	}
	return cmd
}

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyEdit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

func sentFrames(ch link.Channels) []string {
	var out []string
	ch.Commands.Drain(func(s string) { out = append(out, s) })
	return out
}

func assertFrames(t *testing.T, ch link.Channels, want ...string) {
	t.Helper()
	got := sentFrames(ch)
	if len(got) != len(want) {
		t.Fatalf("sent %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// ============================================================
// Mode Activation Tests
// ============================================================

func TestConsole_ActivateOnlyWhenInactive(t *testing.T) {
	m, ch := newTestConsole(16)

	// Complementary filter is active at start
	press(m, keyEnter)
	assertFrames(t, ch)

	// Filters page: k, a, K, x, y, z
	press(m, keyDown, keyDown, keyEnter)
	assertFrames(t, ch, "K")

	press(m, keyEnter)
	assertFrames(t, ch)

	press(m, keyUp, keyUp, keyEnter)
	assertFrames(t, ch, "k")
}

func TestConsole_ControllerPage(t *testing.T) {
	m, ch := newTestConsole(16)

	press(m, keyTab)
	if m.pages[m.page] != proplink.GroupController {
		t.Fatalf("page = %v after tab, want controllers", m.pages[m.page])
	}

	// PID is active at start
	press(m, keyEnter)
	assertFrames(t, ch)

	// Controllers page: P, p, i, d, C, L
	press(m, keyDown, keyDown, keyDown, keyDown, keyEnter)
	assertFrames(t, ch, "C")

	press(m, keyDown, keyEnter)
	assertFrames(t, ch, "L")

	// Filter selection is independent of the controller
	press(m, keyTab, keyEnter)
	assertFrames(t, ch)
}

func TestConsole_EnterOnParameterRowDoesNothing(t *testing.T) {
	m, ch := newTestConsole(16)
	press(m, keyDown, keyEnter)
	assertFrames(t, ch)
}

// ============================================================
// Parameter Tests
// ============================================================

func TestConsole_AdjustEmitsOnChange(t *testing.T) {
	m, ch := newTestConsole(16)

	press(m, keyDown) // Alpha, 0.99
	press(m, keyRight)
	assertFrames(t, ch, "a:1")

	// Already at the top of the range
	press(m, keyRight)
	assertFrames(t, ch)

	press(m, keyLeft, keyLeft)
	assertFrames(t, ch, "a:0.99", "a:0.98")
}

func TestConsole_AdjustOnModeRowDoesNothing(t *testing.T) {
	m, ch := newTestConsole(16)
	press(m, keyLeft, keyRight)
	assertFrames(t, ch)
}

func TestConsole_OutOfRangeDefaultIsClamped(t *testing.T) {
	m, ch := newTestConsole(16)

	press(m, keyDown, keyDown, keyDown, keyDown) // y, default 2
	press(m, keyRight)
	assertFrames(t, ch, "y:1")
	if got := m.values[proplink.ParamKalmanY]; got != 1 {
		t.Errorf("y = %v, want 1", got)
	}
}

func TestConsole_InitialValuesFromConfig(t *testing.T) {
	ch := link.NewChannels(16)
	session := link.NewSession(ch, telemetry.NewBuffer(10, 0.1))
	m := newConsoleModel(session, "test", map[proplink.Tag]float64{proplink.ParamAlpha: 0.5})

	press(m, keyDown, keyRight)
	assertFrames(t, ch, "a:0.51")
	if got := m.values[proplink.ParamKp]; got != 0.5 {
		t.Errorf("p = %v, want default 0.5", got)
	}
}

func TestConsole_EditValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"exact", "0.25", []string{"a:0.25"}},
		{"clamped", "5", []string{"a:1"}},
		{"unchanged", "0.99", nil},
		{"invalid", "abc", nil},
		{"nan", "NaN", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ch := newTestConsole(16)
			press(m, keyDown, keyEdit)
			if !m.editing {
				t.Fatal("e did not start editing")
			}
			if got := m.input.Value(); got != "0.99" {
				t.Errorf("input starts at %q, want %q", got, "0.99")
			}

			m.input.SetValue(tt.input)
			press(m, keyEnter)

			if m.editing {
				t.Error("still editing after enter")
			}
			assertFrames(t, ch, tt.want...)
		})
	}
}

func TestConsole_EditCancel(t *testing.T) {
	m, ch := newTestConsole(16)
	press(m, keyDown, keyEdit)
	m.input.SetValue("0.1")
	press(m, keyEsc)

	if m.editing {
		t.Error("still editing after esc")
	}
	assertFrames(t, ch)
	if got := m.values[proplink.ParamAlpha]; got != 0.99 {
		t.Errorf("alpha = %v after cancel, want 0.99", got)
	}
}

func TestConsole_EditOnlyParameters(t *testing.T) {
	m, _ := newTestConsole(16)
	press(m, keyEdit)
	if m.editing {
		t.Error("editing started on a mode row")
	}
}

func TestConsole_QueueFullKeepsState(t *testing.T) {
	m, ch := newTestConsole(1)

	press(m, keyDown, keyLeft) // a:0.98 fills the queue
	press(m, keyLeft)          // refused

	if got := m.values[proplink.ParamAlpha]; got != 0.98 {
		t.Errorf("alpha = %v, want 0.98 (unsent change not recorded)", got)
	}
	last := m.events[len(m.events)-1]
	if !last.isError {
		t.Errorf("last event %q is not an error", last.message)
	}
	assertFrames(t, ch, "a:0.98")

	// With room again the same adjustment goes out
	press(m, keyLeft)
	assertFrames(t, ch, "a:0.97")
}

// ============================================================
// Loop Tests
// ============================================================

func TestConsole_RefreshPollsTelemetry(t *testing.T) {
	m, ch := newTestConsole(16)
	ch.Telemetry.TrySend(1.5)
	ch.Telemetry.TrySend(2.5)

	_, cmd := m.Update(refreshTickMsg(time.Now()))
	if cmd == nil {
		t.Error("refresh tick was not rescheduled")
	}
	if got := m.session.Buffer().Len(); got != 2 {
		t.Errorf("buffer has %d samples, want 2", got)
	}
	view := m.View()
	if !strings.Contains(view, "2/100") {
		t.Error("view does not show the telemetry window")
	}
	if !strings.Contains(view, "2.50") || !strings.Contains(view, "1.50") {
		t.Error("plot axis does not span the polled samples")
	}
}

func TestConsole_LinkClosed(t *testing.T) {
	m, _ := newTestConsole(16)
	m.Update(linkClosedMsg{err: proplink.ErrTransportClosed})

	if !m.linkLost {
		t.Error("linkLost not set")
	}
	if !strings.Contains(m.View(), "LINK LOST") {
		t.Error("view does not report the lost link")
	}
}

func TestConsole_Quit(t *testing.T) {
	m, _ := newTestConsole(16)
	cmd := press(m, keyQuit)
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestConsole_View(t *testing.T) {
	m, _ := newTestConsole(16)
	view := m.View()
	for _, want := range []string{"PROPARM TUNE", "Complementary filter", "Kalman filter", "waiting for samples"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	press(m, keyTab)
	view = m.View()
	for _, want := range []string{"PID", "Cascade", "LQR"} {
		if !strings.Contains(view, want) {
			t.Errorf("controllers view missing %q", want)
		}
	}
}

func TestSnapToStep(t *testing.T) {
	tests := []struct {
		v, step, want float64
	}{
		{0.99 + 0.01, 0.01, 1},
		{0.1 + 0.2, 0.01, 0.3},
		{0.504, 0.01, 0.5},
		{2.6, 0.5, 2.5},
		{7, 0, 7},
	}
	for _, tt := range tests {
		if got := snapToStep(tt.v, tt.step); got != tt.want {
			t.Errorf("snapToStep(%v, %v) = %v, want %v", tt.v, tt.step, got, tt.want)
		}
	}
}

func TestRenderSlider(t *testing.T) {
	p, _ := proplink.LookupParameter(proplink.ParamKp)
	if got := renderSlider(p, 0.5, 4); got != "[██░░]" {
		t.Errorf("renderSlider(0.5) = %q", got)
	}
	if got := renderSlider(p, 3, 4); got != "[████]" {
		t.Errorf("renderSlider(3) = %q, want full", got)
	}
}

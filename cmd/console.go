// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/proparm/console/pkg/link"
	"github.com/proparm/console/pkg/proplink"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	defaultRefreshInterval = 50 * time.Millisecond
	maxLogEntries          = 100
	visibleLogEntries      = 6
	sliderWidth            = 20
	plotHeight             = 8
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type rowKind int

const (
	rowMode rowKind = iota
	rowParameter
)

// consoleRow is one selectable line on a page: a mode to activate or one
// of its parameters
type consoleRow struct {
	kind  rowKind
	mode  proplink.Mode
	param proplink.Parameter
}

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type consoleKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Decrease key.Binding
	Increase key.Binding
	Page     key.Binding
	Activate key.Binding
	Edit     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultConsoleKeys() consoleKeyMap {
	return consoleKeyMap{
		Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
		Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
		Decrease: key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "decrease")),
		Increase: key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "increase")),
		Page:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch page")),
		Activate: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "activate mode")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enter value")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k consoleKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Page, k.Activate, k.Increase, k.Decrease, k.Help, k.Quit}
}

func (k consoleKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Page},
		{k.Decrease, k.Increase, k.Edit},
		{k.Activate, k.Help, k.Quit},
	}
}

// consoleModel is the Bubble Tea model for the tuning console. All of its
// state is owned by the Bubble Tea event loop; the link worker is reached
// only through the session's queues.
type consoleModel struct {
	session  *link.Session
	connInfo string

	// Pages and selection
	pages  []proplink.Group
	page   int
	rows   []consoleRow
	cursor int

	// Last state sent to the device
	active map[proplink.Group]proplink.Tag
	values map[proplink.Tag]float64

	// Value entry
	input   textinput.Model
	editing bool
	editTag proplink.Tag

	keys consoleKeyMap
	help help.Model

	events          []eventLogEntry
	refreshInterval time.Duration

	// UI state
	width    int
	height   int
	linkLost bool
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type refreshTickMsg time.Time

// linkClosedMsg reports that the link worker has stopped
type linkClosedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newConsoleModel(session *link.Session, connInfo string, params map[proplink.Tag]float64) *consoleModel {
	ti := textinput.New()
	ti.Placeholder = "0.5"
	ti.CharLimit = 16
	ti.Width = 12

	values := make(map[proplink.Tag]float64)
	for _, p := range proplink.Parameters() {
		values[p.Tag] = p.Default
		if v, ok := params[p.Tag]; ok {
			values[p.Tag] = v
		}
	}

	m := &consoleModel{
		session:  session,
		connInfo: connInfo,
		pages:    []proplink.Group{proplink.GroupFilter, proplink.GroupController},
		// The firmware boots with these
		active: map[proplink.Group]proplink.Tag{
			proplink.GroupFilter:     proplink.ModeComplementary,
			proplink.GroupController: proplink.ModePID,
		},
		values:          values,
		input:           ti,
		keys:            defaultConsoleKeys(),
		help:            help.New(),
		refreshInterval: defaultRefreshInterval,
		width:           80,
		height:          24,
	}
	m.rows = pageRows(m.pages[m.page])
	return m
}

func pageRows(g proplink.Group) []consoleRow {
	var rows []consoleRow
	for _, mode := range proplink.ModesInGroup(g) {
		rows = append(rows, consoleRow{kind: rowMode, mode: mode})
		for _, p := range proplink.ParametersFor(mode.Tag) {
			rows = append(rows, consoleRow{kind: rowParameter, mode: mode, param: p})
		}
	}
	return rows
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m *consoleModel) Init() tea.Cmd {
	return refreshTickCmd(m.refreshInterval)
}

func refreshTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case refreshTickMsg:
		m.session.Poll()
		return m, refreshTickCmd(m.refreshInterval)

	case linkClosedMsg:
		m.linkLost = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Link closed: %v", msg.err), true)
		} else {
			m.addLogEntry("Link closed", true)
		}
	}

	return m, nil
}

func (m *consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Page):
		m.page = (m.page + 1) % len(m.pages)
		m.rows = pageRows(m.pages[m.page])
		m.cursor = 0

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Increase):
		m.adjust(1)

	case key.Matches(msg, m.keys.Decrease):
		m.adjust(-1)

	case key.Matches(msg, m.keys.Activate):
		m.activate()

	case key.Matches(msg, m.keys.Edit):
		return m, m.startEdit()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

func (m *consoleModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.commitEdit()
		return m, nil
	case tea.KeyEsc:
		m.stopEdit()
		return m, nil
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

//////////////////////////////////////////////////////////////
// Actions
//////////////////////////////////////////////////////////////

func (m *consoleModel) currentRow() *consoleRow {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return &m.rows[m.cursor]
}

// adjust moves the selected parameter by one step in dir
func (m *consoleModel) adjust(dir int) {
	row := m.currentRow()
	if row == nil || row.kind != rowParameter {
		return
	}
	p := row.param
	next := p.Clamp(snapToStep(m.values[p.Tag]+float64(dir)*p.Step, p.Step))
	m.setParameter(p, next)
}

// setParameter records and sends v if it differs from the current value
func (m *consoleModel) setParameter(p proplink.Parameter, v float64) {
	if v == m.values[p.Tag] {
		return
	}
	if m.send(proplink.NewParameterChange(p.Tag, v)) {
		m.values[p.Tag] = v
	}
}

// activate selects the highlighted mode. Nothing is sent if it is already
// the active mode of its group.
func (m *consoleModel) activate() {
	row := m.currentRow()
	if row == nil || row.kind != rowMode {
		return
	}
	mode := row.mode
	if m.active[mode.Group] == mode.Tag {
		return
	}
	if m.send(proplink.NewModeSelect(mode.Tag)) {
		m.active[mode.Group] = mode.Tag
	}
}

func (m *consoleModel) send(ev proplink.Event) bool {
	if err := m.session.Send(ev); err != nil {
		m.addLogEntry(fmt.Sprintf("Not sent (%s): %v", ev, err), true)
		return false
	}
	m.addLogEntry(fmt.Sprintf("Sent %s", ev), false)
	return true
}

func (m *consoleModel) startEdit() tea.Cmd {
	row := m.currentRow()
	if row == nil || row.kind != rowParameter {
		return nil
	}
	m.editing = true
	m.editTag = row.param.Tag
	m.input.SetValue(proplink.FormatValue(m.values[row.param.Tag]))
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *consoleModel) commitEdit() {
	defer m.stopEdit()

	p, ok := proplink.LookupParameter(m.editTag)
	if !ok {
		return
	}

	raw := strings.TrimSpace(m.input.Value())
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		m.addLogEntry(fmt.Sprintf("Invalid value for %s: %q", p.Name, raw), true)
		return
	}

	clamped := p.Clamp(v)
	if clamped != v {
		m.addLogEntry(fmt.Sprintf("%s limited to %s..%s", p.Name,
			proplink.FormatValue(p.Min), proplink.FormatValue(p.Max)), true)
	}
	m.setParameter(p, clamped)
}

func (m *consoleModel) stopEdit() {
	m.editing = false
	m.input.Blur()
	m.input.SetValue("")
}

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.events = append(m.events, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.events) > maxLogEntries {
		m.events = m.events[len(m.events)-maxLogEntries:]
	}
}

// snapToStep rounds v to the nearest multiple of step so repeated
// adjustments do not accumulate float error
func snapToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	scale := math.Round(1 / step)
	if scale < 1 {
		return math.Round(v/step) * step
	}
	return math.Round(v*scale) / scale
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12"))

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("10")).
			Padding(0, 2)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 2)
)

func (m *consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("PROPARM TUNE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.linkLost {
		connStatus = errorStyle.Render("LINK LOST")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n")

	controls := boxStyle.Render(m.renderRows())
	plotWidth := m.width - lipgloss.Width(controls) - 5
	if plotWidth < 20 {
		plotWidth = 20
	}
	plot := boxStyle.Render(m.renderPlotPanel(plotWidth))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, controls, " ", plot))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog())
	s.WriteString("\n")

	if m.editing {
		if p, ok := proplink.LookupParameter(m.editTag); ok {
			s.WriteString(labelStyle.Render(p.Name + ": "))
		}
		s.WriteString(m.input.View())
		s.WriteString(headerStyle.Render("  enter=apply esc=cancel"))
	} else {
		s.WriteString(m.help.View(m.keys))
	}
	s.WriteString("\n")

	return s.String()
}

func (m *consoleModel) renderTabs() string {
	tabs := make([]string, len(m.pages))
	for i, g := range m.pages {
		title := "Filters"
		if g == proplink.GroupController {
			title = "Controllers"
		}
		if i == m.page {
			tabs[i] = activeTabStyle.Render(title)
		} else {
			tabs[i] = tabStyle.Render(title)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *consoleModel) renderRows() string {
	var s strings.Builder
	for i, row := range m.rows {
		var line string
		switch row.kind {
		case rowMode:
			marker := "○"
			if m.active[row.mode.Group] == row.mode.Tag {
				marker = valueStyle.Render("●")
			}
			line = fmt.Sprintf("%s %s (%s)", marker, labelStyle.Render(row.mode.Name), row.mode.Tag)
		case rowParameter:
			v := m.values[row.param.Tag]
			line = fmt.Sprintf("    %-6s %s %s", row.param.Name,
				renderSlider(row.param, v, sliderWidth), valueStyle.Render(proplink.FormatValue(v)))
		}
		if i == m.cursor {
			line = selectedStyle.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		if i > 0 && row.kind == rowMode {
			s.WriteString("\n")
		}
		s.WriteString(line)
		s.WriteString("\n")
	}
	return strings.TrimRight(s.String(), "\n")
}

// renderSlider draws v's position within p's range as a bar width cells wide
func renderSlider(p proplink.Parameter, v float64, width int) string {
	filled := 0
	if p.Max > p.Min {
		filled = int(math.Round((p.Clamp(v) - p.Min) / (p.Max - p.Min) * float64(width)))
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func (m *consoleModel) renderPlotPanel(width int) string {
	var s strings.Builder
	buf := m.session.Buffer()

	s.WriteString(labelStyle.Render("TELEMETRY"))
	last, ok := buf.Last()
	if !ok {
		s.WriteString("\n")
		s.WriteString(headerStyle.Render("  (waiting for samples)"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("  %s %s  %s %s  %s %d/%d",
		labelStyle.Render("t:"), valueStyle.Render(strconv.FormatFloat(last.Time, 'f', 1, 64)),
		labelStyle.Render("value:"), valueStyle.Render(strconv.FormatFloat(last.Value, 'g', 6, 64)),
		labelStyle.Render("window:"), buf.Len(), buf.Cap()))
	if dropped := m.session.Dropped(); dropped > 0 {
		s.WriteString(warningStyle.Render(fmt.Sprintf("  dropped commands: %d", dropped)))
	}
	s.WriteString("\n")

	if _, _, ok := buf.Range(); !ok {
		s.WriteString(headerStyle.Render("  (no finite samples)"))
		return s.String()
	}
	s.WriteString(renderPlot(m.session.Samples(), width, plotHeight))
	return s.String()
}

func (m *consoleModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	if len(m.events) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		return boxStyle.Width(m.width - 4).Render(s.String())
	}

	start := len(m.events) - visibleLogEntries
	if start < 0 {
		start = 0
	}
	for _, entry := range m.events[start:] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}

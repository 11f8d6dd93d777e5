// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofb"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusChannelList = iota
	focusSetPointInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// channel is one BPM/corrector slot shown in the channel list
type channel struct {
	index       int
	coefficient float64
	setPoint    float64
	position    float64
	rawPosition int32
}

// Implement list.Item interface
func (c channel) Title() string { return fmt.Sprintf("Channel %03d", c.index) }
func (c channel) Description() string {
	return fmt.Sprintf("pos %.4g  sp %.4g", c.position, c.setPoint)
}
func (c channel) FilterValue() string { return strconv.Itoa(c.index) }

// logEntry is one line in the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// setPointWriter is the part of the server the monitor writes through
type setPointWriter interface {
	WriteSetPoint(value int32) error
	Snapshot() fofb.Snapshot
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	srv      setPointWriter
	connInfo string
	widths   fofb.FracWidths

	// Session state
	connected    bool
	remote       string
	stats        *fofb.Statistics
	gain         int32
	lastSetPoint int32
	hasSetPoint  bool

	// Channels
	channels    []channel
	channelList list.Model

	// Event log
	eventLog      []logEntry
	maxLogEntries int

	// Control
	setPointInput textinput.Model
	focusedField  int

	// UI state
	width    int
	height   int
	quitting bool
	done     bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorBatchMsg struct {
	events []sessionEvent
}

type sessionDoneMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(srv setPointWriter, connInfo string, widths fofb.FracWidths) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "0"
	ti.CharLimit = 16
	ti.Width = 16

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	channelList := list.New([]list.Item{}, delegate, 30, 10)
	channelList.Title = "Channels"
	channelList.SetShowStatusBar(false)
	channelList.SetShowHelp(false)
	channelList.SetFilteringEnabled(false)

	m := monitorModel{
		srv:           srv,
		connInfo:      connInfo,
		widths:        widths,
		stats:         fofb.NewStatistics(),
		channelList:   channelList,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		setPointInput: ti,
		focusedField:  focusChannelList,
		width:         80,
		height:        24,
	}
	m.refreshState()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case monitorBatchMsg:
		refresh := false
		for _, ev := range msg.events {
			if m.processEvent(ev) {
				refresh = true
			}
		}
		if refresh {
			m.refreshState()
		}

	case sessionDoneMsg:
		m.done = true
		m.connected = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Session ended: %v", msg.err), true)
		} else {
			m.addLogEntry("Session ended, press q to quit", false)
		}
	}

	return m, nil
}

func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return *m, tea.Quit

	case "q":
		if m.focusedField != focusSetPointInput {
			m.quitting = true
			return *m, tea.Quit
		}

	case "tab":
		m.cycleFocus(1)
		return *m, nil

	case "shift+tab":
		m.cycleFocus(-1)
		return *m, nil

	case "enter":
		if m.focusedField != focusChannelList {
			m.sendSetPoint()
			return *m, nil
		}

	case "up", "k", "down", "j", "pgup", "pgdown":
		if m.focusedField == focusChannelList {
			var cmd tea.Cmd
			m.channelList, cmd = m.channelList.Update(msg)
			return *m, cmd
		}
	}

	// Pass through to focused component
	if m.focusedField == focusSetPointInput {
		var cmd tea.Cmd
		m.setPointInput, cmd = m.setPointInput.Update(msg)
		return *m, cmd
	}

	return *m, nil
}

func (m *monitorModel) cycleFocus(delta int) {
	m.focusedField = (m.focusedField + delta + focusButton + 1) % (focusButton + 1)
	if m.focusedField == focusSetPointInput {
		m.setPointInput.Focus()
	} else {
		m.setPointInput.Blur()
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("FOFBSIM - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Q gain/coeffs/bpm: %d/%d/%d | Tab to switch, 'q' to quit",
		m.connInfo, m.widths.Gain, m.widths.Coeffs, m.widths.BPM)))
	s.WriteString("\n\n")

	// Connection status
	switch {
	case m.connected:
		s.WriteString(statsValueStyle.Render("● Connected to " + m.remote))
	case m.done:
		s.WriteString(headerStyle.Render("○ Session ended"))
	default:
		s.WriteString(warningStyle.Render("⏳ Waiting for a client..."))
	}
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Channel list and control panel side by side
	listStyle := boxStyle
	if m.focusedField == focusChannelList {
		listStyle = focusedBoxStyle
	}
	left := listStyle.Render(m.channelList.View())
	right := boxStyle.Width(m.width - lipgloss.Width(left) - 4).
		Render(m.renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, headerStyle, errorStyle, warningStyle, boxStyle))

	return s.String()
}

func (m monitorModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	errors := statsValueStyle.Render("0")
	if m.stats.ParseErrors > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%d", m.stats.ParseErrors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalMessages)),
		statsLabelStyle.Render("Data:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.DataMessages)),
		statsLabelStyle.Render("Parse Errors:"), errors,
		statsLabelStyle.Render("Set-Points:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.SetPoints)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msg/s", m.stats.MessageRate)),
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatUptime(time.Since(m.stats.StartTime))),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(fmt.Sprintf("%s %s (raw %d)\n",
		statsLabelStyle.Render("Gain:"),
		statsValueStyle.Render(fmt.Sprintf("%.6g", fixedpoint.ToFloat(m.gain, m.widths.Gain))),
		m.gain))

	if ch := m.selectedChannel(); ch != nil {
		s.WriteString(fmt.Sprintf("%s %d\n", statsLabelStyle.Render("Channel:"), ch.index))
		s.WriteString(fmt.Sprintf("  %s %s\n", statsLabelStyle.Render("Coefficient:"), statsValueStyle.Render(fmt.Sprintf("%.6g", ch.coefficient))))
		s.WriteString(fmt.Sprintf("  %s %s\n", statsLabelStyle.Render("Set-Point:  "), statsValueStyle.Render(fmt.Sprintf("%.6g", ch.setPoint))))
		s.WriteString(fmt.Sprintf("  %s %s\n", statsLabelStyle.Render("Position:   "), statsValueStyle.Render(fmt.Sprintf("%.6g", ch.position))))
		vec := fixedpoint.ToLogicVector(ch.rawPosition)
		s.WriteString(headerStyle.Render("  " + vec.String()))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	if m.hasSetPoint {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Last reply:"), statsValueStyle.Render(fmt.Sprintf("%d", m.lastSetPoint))))
	}

	s.WriteString(statsLabelStyle.Render("Set-point: "))
	if m.focusedField == focusSetPointInput {
		s.WriteString(m.setPointInput.View())
	} else {
		val := m.setPointInput.Value()
		if val == "" {
			val = m.setPointInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n\n")

	btnText := "[ Send ]"
	if m.focusedField == focusButton {
		s.WriteString(focusedButtonStyle.Render(btnText))
	} else {
		s.WriteString(buttonStyle.Render(btnText))
	}

	return s.String()
}

func (m monitorModel) renderEventLog(statsLabelStyle, headerStyle, errorStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
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
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Event Processing
//////////////////////////////////////////////////////////////

// processEvent applies one session event and reports whether the state
// shown in the channel list may have changed
func (m *monitorModel) processEvent(ev sessionEvent) bool {
	switch ev.kind {
	case eventListening:
		m.connected = false
		m.addLogEntry("Listening on "+ev.remote, false)

	case eventConnected:
		m.connected = true
		m.remote = ev.remote
		m.addLogEntry("Client connected: "+ev.remote, false)

	case eventMessage:
		m.stats.Update(ev.msgType)
		switch ev.msgType {
		case fofb.MsgParseError:
			m.addLogEntry("Parse error", true)
		case fofb.MsgDisconnected:
			m.connected = false
			m.addLogEntry("Client disconnected", false)
		case fofb.MsgClearAccumulator, fofb.MsgDebug, fofb.MsgExit:
			m.addLogEntry("Received "+fofb.FormatMsgType(ev.msgType), false)
		}
		return ev.msgType.HasData()

	case eventSetPoint:
		m.stats.RecordSetPoint()
		m.lastSetPoint = ev.setPoint
		m.hasSetPoint = true

	case eventFault:
		m.connected = false
		m.addLogEntry(fmt.Sprintf("Connection fault: %v", ev.err), true)

	case eventSnapshot:
		if ev.err != nil {
			m.addLogEntry(fmt.Sprintf("Snapshot failed: %v", ev.err), true)
		} else {
			m.addLogEntry("Snapshot written", false)
		}
	}
	return false
}

// refreshState reloads gain and channel values from the server
func (m *monitorModel) refreshState() {
	snap := m.srv.Snapshot()
	m.gain = snap.Gain

	if len(m.channels) != fofb.NumChannels {
		m.channels = make([]channel, fofb.NumChannels)
	}
	items := make([]list.Item, fofb.NumChannels)
	for i := range m.channels {
		m.channels[i] = channel{
			index:       i,
			coefficient: fixedpoint.ToFloat(snap.Coefficients[i], m.widths.Coeffs),
			setPoint:    fixedpoint.ToFloat(snap.SetPoints[i], m.widths.BPM),
			position:    fixedpoint.ToFloat(snap.Positions[i], m.widths.BPM),
			rawPosition: snap.Positions[i],
		}
		items[i] = m.channels[i]
	}
	m.channelList.SetItems(items)
}

func (m *monitorModel) sendSetPoint() {
	raw := strings.TrimSpace(m.setPointInput.Value())
	if raw == "" {
		raw = m.setPointInput.Placeholder
	}

	value, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid set-point: %s", raw), true)
		return
	}
	if !m.connected {
		m.addLogEntry("Cannot send set-point: no client", true)
		return
	}

	if err := m.srv.WriteSetPoint(int32(value)); err != nil {
		m.connected = false
		m.addLogEntry(fmt.Sprintf("Failed to send set-point: %v", err), true)
		return
	}
	m.stats.RecordSetPoint()
	m.lastSetPoint = int32(value)
	m.hasSetPoint = true
	m.addLogEntry(fmt.Sprintf("Sent set-point %d", value), false)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// formatUptime formats a duration as "1 hour, 2 minutes and 3 seconds"
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func (m monitorModel) selectedChannel() *channel {
	idx := m.channelList.Index()
	if idx < 0 || idx >= len(m.channels) {
		return nil
	}
	return &m.channels[idx]
}

func (m *monitorModel) updateListSize() {
	listHeight := m.height - 20
	if listHeight < 6 {
		listHeight = 6
	}
	m.channelList.SetSize(28, listHeight)
}

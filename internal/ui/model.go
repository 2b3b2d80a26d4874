// ABOUTME: Bubbletea model for the producer status TUI
// ABOUTME: Shows pipe, driver progress, signal level and monitor volume
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/virtual-audio-driver/micfeed/internal/streamer"
	"github.com/virtual-audio-driver/micfeed/internal/version"
	"github.com/virtual-audio-driver/micfeed/pkg/audio"
)

// Info is the static part of the display
type Info struct {
	Pin       int
	Pipe      string
	SessionID string
	HTTPAddr  string
	Monitor   bool
	Volume    int
}

// Model represents the TUI state
type Model struct {
	info Info

	// Driver
	state     streamer.State
	cycle     int
	steps     int64
	bytes     int64
	audio     time.Duration
	current   string
	lastError string
	listeners int

	// Level of the last written buffer
	peak      int
	lastLabel string

	// Speaker monitor
	volume int
	muted  bool

	showDebug bool
	quitting  bool
	startTime time.Time
	now       time.Time

	control *Control

	width  int
	height int
}

// StatusMsg carries a driver stats snapshot
type StatusMsg struct {
	Stats     streamer.Stats
	Listeners int
}

// LevelMsg carries the peak of the last written buffer
type LevelMsg struct {
	Label string
	Peak  int
}

// VolumeChangeMsg is sent to the control channel when the user changes the
// monitor volume or mute state
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

type tickMsg time.Time

// NewModel creates a new TUI model
func NewModel(info Info, ctrl *Control) Model {
	if info.Volume == 0 {
		info.Volume = 100
	}
	now := time.Now()
	return Model{
		info:      info,
		volume:    info.Volume,
		control:   ctrl,
		startTime: now,
		now:       now,
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	case LevelMsg:
		m.peak = msg.Peak
		m.lastLabel = msg.Label
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.control != nil {
			select {
			case m.control.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		if m.info.Monitor && m.volume < 100 {
			m.volume = min(m.volume+5, 100)
			m.sendVolume()
		}
	case "down":
		if m.info.Monitor && m.volume > 0 {
			m.volume = max(m.volume-5, 0)
			m.sendVolume()
		}
	case "m":
		if m.info.Monitor {
			m.muted = !m.muted
			m.sendVolume()
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendVolume() {
	if m.control == nil {
		return
	}
	select {
	case m.control.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// applyStatus updates model from a stats snapshot
func (m *Model) applyStatus(msg StatusMsg) {
	st := msg.Stats
	m.state = st.State
	m.cycle = st.Cycle
	m.steps = st.Steps
	m.bytes = st.Bytes
	m.audio = st.Audio
	m.current = st.Current
	m.lastError = st.LastError
	m.listeners = msg.Listeners
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(version.String()))
	b.WriteString("\n\n")

	field(&b, "Pin", fmt.Sprintf("%d", m.info.Pin))
	field(&b, "Pipe", m.info.Pipe)
	field(&b, "Format", formatName(audio.DefaultFormat))
	field(&b, "State", m.stateText())
	field(&b, "Uptime", m.now.Sub(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Stream"))
	b.WriteString("\n")
	field(&b, "Cycle", fmt.Sprintf("%d", m.cycle))
	field(&b, "Now", m.current)
	field(&b, "Sent", fmt.Sprintf("%d steps, %s, %s of audio", m.steps, formatBytes(m.bytes), m.audio.Round(100*time.Millisecond)))
	field(&b, "Level", fmt.Sprintf("[%s] %5.1f%%", renderBar(m.peak, audio.MaxInt16, 20), 100*float64(m.peak)/audio.MaxInt16))
	if m.lastError != "" {
		b.WriteString(headerStyle.Render("Error: "))
		b.WriteString(errorStyle.Render(truncate(m.lastError, 60)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.info.Monitor {
		mute := ""
		if m.muted {
			mute = " (muted)"
		}
		field(&b, "Monitor", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, mute))
	}
	if m.info.HTTPAddr != "" {
		field(&b, "HTTP", fmt.Sprintf("%s (%d tap listeners)", m.info.HTTPAddr, m.listeners))
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("Debug"))
		b.WriteString("\n")
		field(&b, "Session", m.info.SessionID)
		field(&b, "Last step", m.lastLabel)
		field(&b, "Bytes", fmt.Sprintf("%d", m.bytes))
	}

	b.WriteString("\n")
	help := "d:Debug  q:Quit"
	if m.info.Monitor {
		help = "↑/↓:Volume  m:Mute  " + help
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m Model) stateText() string {
	if m.state == streamer.Started {
		return "waiting for consumer"
	}
	return m.state.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name + ": "))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// Peak returns the largest absolute sample value
func Peak(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return min(peak, audio.MaxInt16)
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatName(f audio.Format) string {
	ch := "Stereo"
	if f.Channels == 1 {
		ch = "Mono"
	}
	return fmt.Sprintf("%s %dHz %s %d-bit", f.Codec, f.SampleRate, ch, f.BitDepth)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Package tui is the interactive control surface: a Bubbletea
// program that renders both generator slots, the mixer ratio and the
// playhead, and forwards key presses to the shared store's edit
// operations. Adapted from a four-channel step-grid editor's
// renderer and gradient clock bar.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/genidi-core/internal/midisink"
	"github.com/icco/genidi-core/internal/state"
)

const tickInterval = 33 * time.Millisecond // ~30fps redraw, independent of playback tempo

// Key constants, named to avoid goconst complaints.
const (
	keyUp    = "up"
	keyDown  = "down"
	keyLeft  = "left"
	keyRight = "right"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	activeSlotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

type tickMsg time.Time

// Model is the Bubbletea model backing the control surface. It holds no
// sequencing state of its own: every read goes through Store.ReadSnapshot
// and every edit goes through a Store method, so the render loop and the
// engine's scheduler never race on anything but the store's own lock.
type Model struct {
	Store *state.Store
	Sink  midisink.Sink

	width, height int
	message       string

	selectingPort bool
	ports         []midisink.PortInfo
	selectedPort  int
}

// New creates a control-surface model bound to store and sink.
func New(store *state.Store, sink midisink.Sink) Model {
	return Model{Store: store, Sink: sink}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tickMsg:
		return m, tick()
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.selectingPort {
		return m.updatePortSelection(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ":
		m.Store.TogglePlaying()
	case "tab":
		m.Store.SwitchActiveSlot()
	case "c":
		m.Store.CycleMIDIChannel()
	case keyUp, "k":
		m.Store.StepDelta(1)
	case keyDown, "j":
		m.Store.StepDelta(-1)
	case keyRight, "l":
		m.Store.PulseDelta(1)
	case keyLeft, "h":
		m.Store.PulseDelta(-1)
	case "]":
		m.Store.PhaseDelta(1)
	case "[":
		m.Store.PhaseDelta(-1)
	case "w":
		m.Store.PitchDelta(1)
	case "s":
		m.Store.PitchDelta(-1)
	case "W":
		m.Store.PitchDelta(12)
	case "S":
		m.Store.PitchDelta(-12)
	case "+", "=":
		m.Store.IncreaseBPM()
	case "-", "_":
		m.Store.DecreaseBPM()
	case ">":
		m.Store.RatioDelta(0.05)
	case "<":
		m.Store.RatioDelta(-0.05)
	case "o":
		m.refreshPorts()
		m.selectingPort = true
	}
	return m, nil
}

func (m *Model) refreshPorts() {
	ports, err := m.Sink.GetPorts(context.Background())
	if err != nil {
		m.message = fmt.Sprintf("list ports: %v", err)
		return
	}
	m.ports = ports
	m.message = fmt.Sprintf("found %d midi output(s)", len(ports))
}

func (m Model) updatePortSelection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyUp, "k":
		if m.selectedPort > 0 {
			m.selectedPort--
		}
	case keyDown, "j":
		if m.selectedPort < len(m.ports)-1 {
			m.selectedPort++
		}
	case "enter":
		if m.selectedPort >= 0 && m.selectedPort < len(m.ports) {
			id := m.ports[m.selectedPort].ID
			if err := m.Sink.SetPort(context.Background(), id); err != nil {
				m.message = fmt.Sprintf("connect failed: %v", err)
			} else {
				m.message = fmt.Sprintf("connected to %s", id)
			}
		}
		m.selectingPort = false
	case "r":
		m.refreshPorts()
	case "esc", "q", "o":
		m.selectingPort = false
	}
	return m, nil
}

func (m Model) View() string {
	if m.selectingPort {
		return m.viewPortSelection()
	}

	snap := m.Store.ReadSnapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Generative Sequencer") + "\n\n")
	b.WriteString(fmt.Sprintf("BPM: %.0f (+/-)   Channel: %d (c)   Ratio: %.2f (</>) \n",
		snap.Transport.BPM, snap.Transport.MIDIChannel, snap.Mixer.Ratio))

	status := "Stopped"
	statusStyle := helpStyle
	if snap.Transport.Playing {
		status = "Playing"
		statusStyle = activeSlotStyle
	}
	b.WriteString(statusStyle.Render(status) + "\n\n")

	b.WriteString(renderClockBar(snap.Transport.CurrentNoteIndex, snap.Transport.Playing))
	b.WriteString("\n\n")

	b.WriteString(m.renderSlot("Left ", state.Left, snap))
	b.WriteString(m.renderSlot("Right", state.Right, snap))

	if m.message != "" {
		b.WriteString("\n" + errorStyle.Render(m.message) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("tab: switch slot • h/l: pulses • k/j: steps • [ ]: phase • w/s(+shift): pitch"))
	b.WriteString("\n" + helpStyle.Render("space: play/stop • c: channel • </>: ratio • o: midi output • q: quit"))

	return b.String()
}

func (m Model) renderSlot(label string, slot state.Slot, snap state.SharedState) string {
	params := snap.ParamsFor(slot)

	line := fmt.Sprintf("%s  steps=%-2d pulses=%-2d phase=%-2d pitch=%-3d",
		label, params.Steps, params.Pulses, params.Phase, params.Pitch)
	if snap.Transport.ActiveSlot == slot {
		return activeSlotStyle.Render("> "+line) + "\n"
	}
	return "  " + line + "\n"
}

func renderClockBar(currentIndex int, playing bool) string {
	colors := []string{
		"#00FFFF", "#00E5FF", "#00CCFF", "#00B2FF",
		"#0099FF", "#0080FF", "#0066FF", "#1A4DFF",
		"#3333FF", "#4D1AFF", "#6600FF", "#8000FF",
		"#9900FF", "#B300FF", "#CC00FF", "#FF00FF",
	}

	var bar strings.Builder
	bar.WriteString("Clock  ")
	for i := 0; i < len(colors); i++ {
		var cell string
		var style lipgloss.Style
		switch {
		case playing && i == currentIndex%len(colors):
			cell = " ▶ "
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color(colors[i])).Bold(true)
		case playing && i < currentIndex%len(colors):
			cell = " █ "
			style = lipgloss.NewStyle().Foreground(lipgloss.Color(colors[i]))
		default:
			cell = " · "
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
		}
		bar.WriteString(style.Render(cell))
	}
	return bar.String()
}

func (m Model) viewPortSelection() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Select MIDI Output") + "\n\n")

	if len(m.ports) == 0 {
		b.WriteString("No MIDI output ports found.\n")
	}
	for i, p := range m.ports {
		cursor := "  "
		if i == m.selectedPort {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%s\n", cursor, p.Name)
		if i == m.selectedPort {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
	}

	if m.message != "" {
		b.WriteString("\n" + errorStyle.Render(m.message) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("↑/k ↓/j: move • enter: select • r: refresh • q/esc: cancel"))
	return b.String()
}

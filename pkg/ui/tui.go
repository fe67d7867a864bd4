// Package ui provides the Bubble Tea TUI for the basis arbitrage engine.
package ui

import (
	"fmt"
	"strings"
	"time"

	"basisarb/pkg/ui/components"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ConnectionInfo holds connection state and latency.
type ConnectionInfo struct {
	Connected bool
	Latency   time.Duration
	LastSeen  time.Time
}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// balanceInfo is the latest snapshot of one venue balance.
type balanceInfo struct {
	free      decimal.Decimal
	maxVolume decimal.Decimal
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	pairs *components.PairsComponent
	deals *components.DealsComponent
	keys  KeyMap

	ready    bool
	quitting bool
	showHelp bool
	width    int
	height   int

	connectionState map[string]*ConnectionInfo
	balances        map[string]balanceInfo
	lastUpdate      time.Time
	errors          []ErrorEntry // Persistent error panel (last 3)
	logs            []string     // Recent log messages
}

// New creates a new TUI model. The threshold highlights pairs whose open
// ratio currently clears the entry level.
func New(openThreshold decimal.Decimal) Model {
	return Model{
		pairs: components.NewPairsComponent(openThreshold),
		deals: components.NewDealsComponent(20),
		keys:  DefaultKeyMap(),
		connectionState: map[string]*ConnectionInfo{
			"Spot": {Connected: false},
			"Swap": {Connected: false},
		},
		balances: make(map[string]balanceInfo),
		logs:     make([]string, 0, 5),
		errors:   make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 250ms to refresh the
// relative timestamps.
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		return m, tickCmd()

	case PairStatusMsg:
		m.pairs.Update(components.PairRow{
			Pair:       msg.Pair,
			OpenRatio:  msg.OpenRatio,
			CloseRatio: msg.CloseRatio,
			MinOpen:    msg.Extrema.Min,
			MaxOpen:    msg.Extrema.Max,
			UpdatedAt:  time.Now(),
		})
		m.lastUpdate = time.Now()

	case DealMsg:
		if msg.Deal != nil {
			row := components.DealRow{
				Timestamp: time.Now().Format("15:04:05"),
				Pair:      msg.Deal.PairKey,
				Stage:     string(msg.Deal.Stage),
			}
			if msg.PnL != nil {
				row.NetPnL = msg.PnL.Net
				row.ROI = msg.PnL.ROI
				row.HasPnL = true
			} else if msg.Deal.Close != nil {
				row.NetPnL = msg.Deal.Close.NetPnL
				row.ROI = msg.Deal.Close.ROI
				row.HasPnL = true
			}
			m.deals.Add(row)
			m.pairs.SetDeal(msg.Deal.PairKey, msg.Deal.IsOpen())
			m.lastUpdate = time.Now()
		}

	case BalanceMsg:
		m.balances[msg.Venue] = balanceInfo{free: msg.Free, maxVolume: msg.MaxVolume}
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		m.connectionState[msg.Name] = &ConnectionInfo{
			Connected: msg.Connected,
			Latency:   msg.Latency,
			LastSeen:  time.Now(),
		}
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	var b strings.Builder

	title := TitleStyle.Render(" basisarb | spot/perp basis engine ")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.pairs.View()
	rightCol := m.deals.View()

	if m.width > 140 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(max(m.width-4, 40)).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(max(m.width-4, 40)).Render(rightCol))
	}

	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.showHelp && len(m.logs) > 0 {
		b.WriteString(MutedValue.Render("LOG"))
		b.WriteString("\n")
		for _, line := range m.logs {
			b.WriteString(MutedValue.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("q: quit • e: clear errors • ?: log"))

	return b.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	for _, name := range []string{"Spot", "Swap"} {
		info := m.connectionState[name]
		var statusStyle lipgloss.Style
		var icon, status string
		if info != nil && info.Connected {
			statusStyle = StatusConnected
			icon = "●"
			if info.Latency > 0 {
				status = fmt.Sprintf("%s (%dms)", name, info.Latency.Milliseconds())
			} else {
				status = name
			}
		} else {
			statusStyle = StatusDisconnected
			icon = "○"
			status = name + " (disconnected)"
		}
		parts = append(parts, statusStyle.Render(icon+" "+status))
	}

	for _, venue := range []string{"spot", "swap"} {
		if bal, ok := m.balances[venue]; ok {
			parts = append(parts, fmt.Sprintf("%s free: %s", venue, bal.free.StringFixed(2)))
		}
	}
	if bal, ok := m.balances["spot"]; ok && bal.maxVolume.IsPositive() {
		parts = append(parts, fmt.Sprintf("deal cap: %s", bal.maxVolume.StringFixed(2)))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// Send sends a message to the running program. It is a no-op when the TUI is
// not active, so reporters can call it unconditionally.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(openThreshold decimal.Decimal) error {
	Program = tea.NewProgram(New(openThreshold), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

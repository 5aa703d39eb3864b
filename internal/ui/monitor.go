package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/playerclient/internal/events"
	"github.com/muurk/playerclient/pkg/device"
)

// DataMsg carries one accepted DATA frame into the monitor.
type DataMsg events.Data

// ClosedMsg reports that the connection closed.
type ClosedMsg struct{ Err error }

// staleAfter marks a device row stale when no frame arrived for this long.
const staleAfter = 3 * time.Second

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Pause key.Binding
	Clear key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Clear},
		{k.Help, k.Quit},
	}
}

func defaultMonitorKeys() monitorKeyMap {
	return monitorKeyMap{
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// deviceRow is the monitor's view of one device.
type deviceRow struct {
	key     device.Key
	last    *device.Snapshot
	frames  uint64
	first   time.Time
	updated time.Time
}

func (r *deviceRow) rate(now time.Time) float64 {
	elapsed := now.Sub(r.first).Seconds()
	if r.frames < 2 || elapsed <= 0 {
		return 0
	}
	return float64(r.frames-1) / elapsed
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Title  string
	Server string
	Banner string
}

// Monitor is a bubbletea model showing the latest frame of every device.
type Monitor struct {
	cfg     MonitorConfig
	rows    map[device.Key]*deviceRow
	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap
	paused  bool
	closed  bool
	err     error
	width   int
	now     func() time.Time
}

// NewMonitor creates a monitor model.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Title == "" {
		cfg.Title = "Device Monitor"
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = mutedStyle

	return &Monitor{
		cfg:     cfg,
		rows:    make(map[device.Key]*deviceRow),
		spinner: s,
		help:    help.New(),
		keys:    defaultMonitorKeys(),
		width:   terminalWidth(),
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.rows = make(map[device.Key]*deviceRow)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.help.Width = m.width
		return m, nil

	case DataMsg:
		if !m.paused {
			m.record(events.Data(msg))
		}
		return m, nil

	case ClosedMsg:
		m.closed = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Monitor) record(ev events.Data) {
	now := m.now()
	r, ok := m.rows[ev.Key]
	if !ok {
		r = &deviceRow{key: ev.Key, first: now}
		m.rows[ev.Key] = r
	}
	r.frames++
	r.updated = now
	if ev.Snapshot != nil {
		r.last = ev.Snapshot
	}
}

// Err returns the connection error reported by ClosedMsg, if any.
func (m *Monitor) Err() error { return m.err }

// View implements tea.Model.
func (m *Monitor) View() string {
	var b strings.Builder

	params := map[string]string{}
	if m.cfg.Server != "" {
		params["Server"] = m.cfg.Server
	}
	if m.cfg.Banner != "" {
		params["Banner"] = m.cfg.Banner
	}
	b.WriteString(RenderHeader(HeaderConfig{Title: m.cfg.Title, Params: params}, m.width))
	b.WriteString("\n\n")

	switch {
	case m.closed && m.err != nil:
		b.WriteString(RenderErrorBox("Connection closed", m.err, m.width))
		b.WriteString("\n")
	case len(m.rows) == 0:
		b.WriteString("  " + m.spinner.View() + " " + mutedStyle.Render("waiting for data"))
		b.WriteString("\n")
	default:
		b.WriteString(m.table())
	}

	b.WriteString("\n")
	if m.paused {
		b.WriteString("  " + pausedStyle.Render("PAUSED") + "\n")
	}
	b.WriteString("  " + m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m *Monitor) table() string {
	keys := make([]device.Key, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Code != keys[j].Code {
			return keys[i].Code < keys[j].Code
		}
		return keys[i].Index < keys[j].Index
	})

	now := m.now()
	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %-16s %-12s %-12s %-14s %s", "DEVICE", "SEQ", "RATE", "SAMPLED", "DATA")))
	b.WriteString("\n")
	summaryWidth := m.width - 60
	for _, k := range keys {
		r := m.rows[k]
		keyStyle := deviceStyle
		if now.Sub(r.updated) > staleAfter {
			keyStyle = staleStyle
		}
		seq, sampled, summary := "-", "-", ""
		if r.last != nil {
			seq = fmt.Sprintf("%d", r.last.Seq)
			sampled = r.last.Sampled().Format("15:04:05.000")
			summary = Summarize(r.last.Record, summaryWidth)
		}
		b.WriteString("  ")
		b.WriteString(keyStyle.Render(k.String()))
		b.WriteString(" ")
		b.WriteString(cellStyle.Render(seq))
		b.WriteString(" ")
		b.WriteString(cellStyle.Render(fmt.Sprintf("%.1f Hz", r.rate(now))))
		b.WriteString(" ")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%-14s", sampled)))
		b.WriteString(" ")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	return b.String()
}

// Source is the part of a client the monitor listens to.
type Source interface {
	OnData(fn func(events.Data)) (func(), error)
	OnClosed(fn func(events.Closed)) (func(), error)
}

// RunMonitor runs an interactive monitor fed by src until the user quits,
// ctx ends or the connection closes.
func RunMonitor(ctx context.Context, src Source, cfg MonitorConfig) error {
	m := NewMonitor(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	stopData, err := src.OnData(func(ev events.Data) { p.Send(DataMsg(ev)) })
	if err != nil {
		return err
	}
	defer stopData()
	stopClosed, err := src.OnClosed(func(ev events.Closed) { p.Send(ClosedMsg{Err: ev.Err}) })
	if err != nil {
		return err
	}
	defer stopClosed()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return m.Err()
}

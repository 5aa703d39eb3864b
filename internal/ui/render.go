package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/playerclient/pkg/device"
)

// HeaderConfig holds configuration for rendering a command header
type HeaderConfig struct {
	Title   string            // e.g., "DEVICE LIST"
	Command string            // e.g., "player-cli devices"
	Params  map[string]string // e.g., {"Server": "localhost:6665"}
}

// RenderHeader renders a command header with title, command path, and parameters
func RenderHeader(cfg HeaderConfig, width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render(strings.ToUpper(cfg.Title)))
	if cfg.Command != "" {
		lines = append(lines, commandStyle.Render(cfg.Command))
	}
	if len(cfg.Params) > 0 {
		lines = append(lines, "")
		keys := make([]string, 0, len(cfg.Params))
		maxLen := 0
		for k := range cfg.Params {
			keys = append(keys, k)
			if len(k) > maxLen {
				maxLen = len(k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			label := paramKeyStyle.Render(fmt.Sprintf("%-*s", maxLen+1, k+":"))
			lines = append(lines, label+" "+paramValueStyle.Render(cfg.Params[k]))
		}
	}
	return headerBox(width).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders a failure box with a title and the error text.
func RenderErrorBox(title string, err error, width int) string {
	body := errTitleStyle.Render(failMark+" "+title) + "\n\n" +
		errTextStyle.Render(err.Error())
	return errorBox(width).Render(body)
}

// DeviceRow is one line of a device listing.
type DeviceRow struct {
	Key    device.Key
	Driver string
	Mode   string
}

// RenderDeviceTable renders a static device listing.
func RenderDeviceTable(rows []DeviceRow) string {
	if len(rows) == 0 {
		return mutedStyle.Render("  no devices")
	}
	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %-16s %-12s %s", "DEVICE", "MODE", "DRIVER")))
	for _, r := range rows {
		b.WriteString("\n  ")
		b.WriteString(deviceStyle.Render(r.Key.String()))
		b.WriteString(" ")
		b.WriteString(cellStyle.Render(r.Mode))
		b.WriteString(" ")
		b.WriteString(r.Driver)
	}
	return b.String()
}

// Summarize renders a decoded record as sorted name=value pairs. Lists are
// shown by length only. The result is truncated to max runes when max > 0.
func Summarize(rec device.Record, max int) string {
	if len(rec) == 0 {
		return ""
	}
	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+summarizeValue(rec[name]))
	}
	s := strings.Join(parts, " ")
	if max > 0 {
		if r := []rune(s); len(r) > max {
			s = string(r[:max-1]) + "…"
		}
	}
	return s
}

func summarizeValue(v any) string {
	switch t := v.(type) {
	case []int64:
		return fmt.Sprintf("[%d]", len(t))
	case []device.Record:
		return fmt.Sprintf("[%d]", len(t))
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprint(t)
	}
}

// Printer provides one-shot styled output for commands.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer for stdout sized to the terminal.
func NewPrinter() *Printer {
	return &Printer{out: os.Stdout, width: terminalWidth()}
}

// NewPrinterTo creates a Printer writing to w with a fixed width.
func NewPrinterTo(w io.Writer, width int) *Printer {
	return &Printer{out: w, width: clampWidth(width)}
}

// PrintHeader prints a command header.
func (p *Printer) PrintHeader(cfg HeaderConfig) {
	fmt.Fprintln(p.out, RenderHeader(cfg, p.width))
	fmt.Fprintln(p.out)
}

// PrintDevices prints a device listing.
func (p *Printer) PrintDevices(rows []DeviceRow) {
	fmt.Fprintln(p.out, RenderDeviceTable(rows))
}

// PrintSnapshot prints one decoded frame.
func (p *Printer) PrintSnapshot(s *device.Snapshot) {
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		deviceStyle.Render(s.Key.String()),
		cellStyle.Render(fmt.Sprintf("seq %d", s.Seq)),
		mutedStyle.Render(s.Sampled().Format("15:04:05.000")+"  "),
		Summarize(s.Record, p.width-44),
	)
	fmt.Fprintln(p.out, "  "+line)
}

// PrintSuccess prints a success line.
func (p *Printer) PrintSuccess(msg string) {
	fmt.Fprintln(p.out, okStyle.Render(okMark+" "+msg))
}

// PrintError prints an error box.
func (p *Printer) PrintError(title string, err error) {
	fmt.Fprintln(p.out, RenderErrorBox(title, err, p.width))
}

package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette
var (
	accent  = lipgloss.Color("#7D56F4") // borders, titles
	live    = lipgloss.Color("#43BF6D")
	failed  = lipgloss.Color("#FF5555")
	stale   = lipgloss.Color("#FFA500")
	subtle  = lipgloss.Color("#626262")
	primary = lipgloss.Color("#FFFFFF")
)

// Width bounds for rendered output.
const (
	minWidth = 60
	maxWidth = 120

	fallbackHeight = 24
)

var (
	titleStyle      = lipgloss.NewStyle().Foreground(primary).Bold(true).PaddingLeft(2)
	commandStyle    = lipgloss.NewStyle().Foreground(subtle).PaddingLeft(2)
	paramKeyStyle   = lipgloss.NewStyle().Foreground(subtle).PaddingLeft(2)
	paramValueStyle = lipgloss.NewStyle().Foreground(primary)

	deviceStyle = lipgloss.NewStyle().Foreground(live).Bold(true).Width(16)
	staleStyle  = deviceStyle.Foreground(stale)
	cellStyle   = lipgloss.NewStyle().Foreground(primary).Width(12)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtle)
	pausedStyle = lipgloss.NewStyle().Foreground(stale).Bold(true)

	okStyle       = lipgloss.NewStyle().Foreground(live).Bold(true)
	errTitleStyle = lipgloss.NewStyle().Foreground(failed).Bold(true)
	errTextStyle  = lipgloss.NewStyle().Foreground(failed)
)

const (
	okMark   = "✓"
	failMark = "✗"
)

// headerBox frames a command header. width includes the border.
func headerBox(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Width(width - 2)
}

// errorBox frames an error report. width includes the border.
func errorBox(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(failed).
		Width(width - 2).
		Padding(0, 2)
}

// TerminalSize returns the width and height of stdout. The width is clamped
// to the supported range; when stdout is not a terminal the minimum width and
// a 24 line height are returned.
func TerminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return minWidth, fallbackHeight
	}
	return clampWidth(w), h
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	w, _ := TerminalSize()
	return w
}

func clampWidth(w int) int {
	return max(minWidth, min(w, maxWidth))
}

package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/tessro/paira/internal/daemon"
)

var (
	// Colors
	runningColor = lipgloss.Color("#10B981") // Green
	mutedColor   = lipgloss.Color("#6B7280") // Gray
	errorColor   = lipgloss.Color("#EF4444") // Red

	runningBadgeStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(runningColor)

	stoppedBadgeStyle = lipgloss.NewStyle().
				Foreground(mutedColor)

	stderrLineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	dimStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// stateBadge renders a worker state for status output.
func stateBadge(state string) string {
	if state == "running" {
		return runningBadgeStyle.Render(state)
	}
	return stoppedBadgeStyle.Render(state)
}

// terminalWidth returns the stdout width, or 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

// formatLogLine wraps a worker line to width (0 disables wrapping) and
// colors stderr output.
func formatLogLine(line daemon.LogLine, width int) string {
	text := line.Text
	if width > 0 {
		text = wordwrap.String(text, width)
	}
	if line.Source != "stderr" {
		return text
	}
	// Styled per line; Render pads multi-line blocks to a common width
	rows := strings.Split(text, "\n")
	for i, row := range rows {
		rows[i] = stderrLineStyle.Render(row)
	}
	return strings.Join(rows, "\n")
}

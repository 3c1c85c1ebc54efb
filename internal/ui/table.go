package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DoorRow is one line of the door table.
type DoorRow struct {
	Ready     bool   // Paired or has credentials
	Name      string // Door key from config
	Transport string // "ssh" or "bluetooth"
	Target    string // Host description or device address
	Default   bool
}

// RenderDoorTable renders the configured doors as a fixed width table.
func RenderDoorTable(rows []DoorRow) string {
	if len(rows) == 0 {
		return "No doors configured\n"
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)
	selectedStyle := lipgloss.NewStyle().Bold(true)

	var b strings.Builder
	b.WriteString(headerStyle.Render("  "+padRight("", 3)+padRight("DOOR", 17)+padRight("TRANSPORT", 12)+"TARGET") + "\n")

	for _, row := range rows {
		icon := MutedStyle().Render(SymbolPending)
		if row.Ready {
			icon = SuccessStyle().Render(SymbolComplete)
		}
		name := row.Name
		if row.Default {
			name = selectedStyle.Render(row.Name + " *")
		}
		b.WriteString("  " + padRight(icon, 3) + padRight(name, 17) + padRight(row.Transport, 12) + MutedStyle().Render(row.Target) + "\n")
	}
	return b.String()
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

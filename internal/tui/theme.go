package tui

import (
	"github.com/charmbracelet/lipgloss"

	"smartsprint/internal/dashboard"
	"smartsprint/internal/domain"
)

// Theme holds the styles of the sprint UI.
type Theme struct {
	Title     lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Selected  lipgloss.Style
	Faint     lipgloss.Style
	Notice    lipgloss.Style
	Help      lipgloss.Style
	Label     lipgloss.Style
}

// DefaultTheme uses the dashboard palette so both surfaces agree.
var DefaultTheme = Theme{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(dashboard.Blue.Hex)),
	Tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color(dashboard.Gray.Hex)),
	ActiveTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color(dashboard.Blue.Hex)),
	Selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(dashboard.Teal.Hex)),
	Faint:     lipgloss.NewStyle().Faint(true),
	Notice:    lipgloss.NewStyle().Foreground(lipgloss.Color(dashboard.Yellow.Hex)),
	Help:      lipgloss.NewStyle().Foreground(lipgloss.Color(dashboard.Gray.Hex)),
	Label:     lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color(dashboard.Gray.Hex)),
}

func statusStyle(s domain.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(dashboard.StatusColor(s).Hex))
}

func priorityStyle(p domain.Priority) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(dashboard.PriorityColor(p).Hex))
}

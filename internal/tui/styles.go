package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Width(14)
	focusStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	lockedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	optionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")).Underline(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelBorder   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

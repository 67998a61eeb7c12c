package main

import "github.com/charmbracelet/lipgloss"

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
	heading   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EE6FF8")).Render
	faint     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}).Render
	bad       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Render
)

// yesNo renders a capability flag.
func yesNo(ok bool) string {
	if ok {
		return keyword("yes")
	}
	return bad("no")
}

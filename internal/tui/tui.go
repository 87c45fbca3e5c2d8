// SPDX-License-Identifier: MPL-2.0

// Package tui is the interactive terminal shell: a search-as-you-type browser
// over the session and a pager for a single help page.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styles holds the lipgloss styles of the browser and pager.
type Styles struct {
	Title    lipgloss.Style
	Prompt   lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Match    lipgloss.Style
	Package  lipgloss.Style
	Pane     lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Footer   lipgloss.Style
}

// DefaultStyles returns styles that adapt to the terminal background.
func DefaultStyles() Styles {
	accent := lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "212"}
	faint := lipgloss.AdaptiveColor{Light: "245", Dark: "240"}

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		Prompt:   lipgloss.NewStyle().Foreground(accent),
		Item:     lipgloss.NewStyle().PaddingLeft(2),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(accent).SetString("> "),
		Match:    lipgloss.NewStyle().Underline(true).Foreground(lipgloss.AdaptiveColor{Light: "#D7005F", Dark: "#FF87D7"}),
		Package:  lipgloss.NewStyle().Foreground(faint),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faint).
			Padding(0, 1),
		Status: lipgloss.NewStyle().Foreground(faint),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Footer: lipgloss.NewStyle().Foreground(faint),
	}
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of the terminal f is connected to, or 0
// when it is not a terminal.
func Width(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

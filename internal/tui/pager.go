// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PagerOptions configures the Pager component.
type PagerOptions struct {
	// Content is the text content to display.
	Content string
	// Title is the title displayed at the top.
	Title string
	// Height limits the visible height (0 for auto).
	Height int
	// Width limits the visible width (0 for auto).
	Width int
	// Styles overrides DefaultStyles when set.
	Styles *Styles
}

// pagerModel is the bubbletea model for the pager component.
type pagerModel struct {
	viewport viewport.Model
	title    string
	styles   Styles
	done     bool
	width    int
	height   int
}

// NewPagerModel creates a pager over opts.Content.
func NewPagerModel(opts PagerOptions) *pagerModel {
	height := opts.Height
	if height == 0 {
		height = 20
	}

	width := opts.Width
	if width == 0 {
		width = 80
	}

	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}

	vp := viewport.New(width, max(1, height-2))
	vp.SetContent(opts.Content)

	return &pagerModel{
		viewport: vp,
		title:    opts.Title,
		styles:   styles,
		width:    width,
		height:   height,
	}
}

func (m *pagerModel) Init() tea.Cmd {
	return nil
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc", "enter":
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *pagerModel) View() string {
	if m.done {
		return ""
	}

	title := ""
	if m.title != "" {
		title = m.styles.Title.Render(m.title) + "\n"
	}

	footer := m.styles.Footer.Render("↑/↓: scroll • q/Enter: close")

	content := title + m.viewport.View() + "\n" + footer
	return lipgloss.NewStyle().MaxWidth(m.width).Render(content)
}

// IsDone reports whether the pager was dismissed.
func (m *pagerModel) IsDone() bool {
	return m.done
}

// SetSize resizes the pager, keeping one line each for title and footer.
func (m *pagerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(1, height-2)
}

// Pager displays content in a scrollable viewport on the alternate screen.
func Pager(opts PagerOptions) error {
	model := NewPagerModel(opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagerView(t *testing.T) {
	t.Parallel()

	m := NewPagerModel(PagerOptions{Title: "stats::lm", Content: "Fitting Linear Models"})
	assert.Nil(t, m.Init())

	view := m.View()
	assert.Contains(t, view, "stats::lm")
	assert.Contains(t, view, "Fitting Linear Models")
	assert.Contains(t, view, "q/Enter: close")
}

func TestPagerDefaults(t *testing.T) {
	t.Parallel()

	m := NewPagerModel(PagerOptions{})
	assert.Equal(t, 80, m.width)
	assert.Equal(t, 20, m.height)
	assert.Equal(t, 18, m.viewport.Height)
}

func TestPagerResize(t *testing.T) {
	t.Parallel()

	m := NewPagerModel(PagerOptions{Content: "x"})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 10})
	assert.Equal(t, 60, m.viewport.Width)
	assert.Equal(t, 8, m.viewport.Height)
}

func TestPagerCloseKeys(t *testing.T) {
	t.Parallel()

	for _, k := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyEnter},
		{Type: tea.KeyCtrlC},
	} {
		m := NewPagerModel(PagerOptions{Content: "x"})
		_, cmd := m.Update(k)
		require.NotNil(t, cmd, k.String())
		assert.True(t, m.IsDone())
		assert.Empty(t, m.View())
	}
}

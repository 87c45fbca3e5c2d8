// SPDX-License-Identifier: MPL-2.0

package rank

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Highlight renders name with the runes at positions styled by match.
// Consecutive matched runes are rendered as one styled run.
func Highlight(name string, positions []int, match lipgloss.Style) string {
	if len(positions) == 0 {
		return name
	}
	hit := make(map[int]bool, len(positions))
	for _, p := range positions {
		hit[p] = true
	}

	var b, run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			b.WriteString(match.Render(run.String()))
			run.Reset()
		}
	}
	i := 0
	for _, r := range name {
		if hit[i] {
			run.WriteRune(r)
		} else {
			flush()
			b.WriteRune(r)
		}
		i++
	}
	flush()
	return b.String()
}

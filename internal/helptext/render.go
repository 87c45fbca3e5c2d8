// SPDX-License-Identifier: MPL-2.0

package helptext

import (
	"io"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/wordwrap"
)

const (
	// StyleAuto picks dark or light from the terminal background.
	StyleAuto = "auto"
	// StyleDark is glamour's dark style.
	StyleDark = "dark"
	// StyleLight is glamour's light style.
	StyleLight = "light"
	// StylePlain renders without colors, for pipes and files.
	StylePlain = "notty"

	// DefaultWidth is used when no width is known.
	DefaultWidth = 80

	minWidth = 20
	maxWidth = 120
	// widthSlack is how far the requested width may drift before the cached
	// glamour renderer is rebuilt.
	widthSlack = 10
)

type (
	// Renderer turns HTML help pages into styled terminal text. It is safe
	// for concurrent use.
	Renderer struct {
		style  string
		logger *log.Logger

		mu      sync.Mutex
		term    *glamour.TermRenderer
		termFor int
	}

	// Option configures a Renderer.
	Option func(*Renderer)
)

// WithStyle selects a glamour style: StyleAuto, StyleDark, StyleLight or
// StylePlain. Unknown names fall back to StyleAuto.
func WithStyle(style string) Option {
	return func(r *Renderer) {
		switch style {
		case StyleAuto, StyleDark, StyleLight, StylePlain:
			r.style = style
		}
	}
}

// WithLogger sets the renderer's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{style: StyleAuto, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render converts doc to markdown and styles it for a terminal width columns
// wide. If glamour fails the markdown is word wrapped instead.
func (r *Renderer) Render(doc string, width int) string {
	md := ToMarkdown(doc)
	if md == "" {
		return ""
	}
	width = clampWidth(width)

	r.mu.Lock()
	defer r.mu.Unlock()

	term, err := r.renderer(width)
	if err == nil {
		var out string
		if out, err = term.Render(md); err == nil {
			return out
		}
	}
	r.logger.Debug("glamour render failed, using plain text", "error", err)
	return PlainText(md, width)
}

// renderer returns the cached glamour renderer, rebuilding it when width has
// moved by more than widthSlack.
func (r *Renderer) renderer(width int) (*glamour.TermRenderer, error) {
	if r.term != nil && abs(r.termFor-width) <= widthSlack {
		return r.term, nil
	}

	styleOpt := glamour.WithAutoStyle()
	if r.style != StyleAuto {
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	term, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	r.term = term
	r.termFor = width
	return term, nil
}

// PlainText word wraps markdown to width columns.
func PlainText(md string, width int) string {
	return wordwrap.String(md, clampWidth(width))
}

func clampWidth(width int) int {
	switch {
	case width <= 0:
		return DefaultWidth
	case width < minWidth:
		return minWidth
	case width > maxWidth:
		return maxWidth
	}
	return width
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

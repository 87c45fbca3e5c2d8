// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/invowk/fuzzyhelp/internal/catalog"
	"github.com/invowk/fuzzyhelp/internal/helpdoc"
	"github.com/invowk/fuzzyhelp/internal/rank"
	"github.com/invowk/fuzzyhelp/internal/session"
)

const (
	focusInput focus = iota
	focusPage
)

const (
	minListWidth = 24
	// chromeHeight is the header line plus the status and help lines.
	chromeHeight = 3
)

type (
	// Searcher is the part of *session.Session the browser drives.
	Searcher interface {
		Query(ctx context.Context, q string) session.QueryResult
		Select(ctx context.Context, pkg, topic string) helpdoc.Page
	}

	// Renderer turns a help page into terminal text. *helptext.Renderer
	// satisfies it.
	Renderer interface {
		Render(doc string, width int) string
	}

	// queryMsg carries the generation of the query command that produced
	// it. Commands run concurrently, so the session's own sequence numbers
	// may not follow typing order.
	queryMsg struct {
		gen uint64
		res session.QueryResult
	}

	pageMsg struct {
		seq  uint64
		page helpdoc.Page
		text string
	}

	focus int

	// Browser is the bubbletea model of the interactive help browser.
	Browser struct {
		ctx      context.Context
		searcher Searcher
		renderer Renderer
		styles   Styles
		keys     keyMap
		help     help.Model

		input   textinput.Model
		spinner spinner.Model
		page    viewport.Model

		results []rank.Result
		cursor  int
		offset  int
		token   string
		marker  int
		err     error

		lastQuery string
		queryGen  uint64
		querying  bool

		pageSeq   uint64
		rendering bool
		shown     catalog.Key
		pageHTML  string
		pageFound bool

		focus         focus
		width, height int
		quitting      bool
	}

	// BrowserOption configures a Browser.
	BrowserOption func(*Browser)
)

// WithInitialQuery pre-fills the search input.
func WithInitialQuery(q string) BrowserOption {
	return func(b *Browser) { b.input.SetValue(q) }
}

// WithStyles replaces the default styles.
func WithStyles(s Styles) BrowserOption {
	return func(b *Browser) { b.styles = s }
}

// NewBrowser creates a browser over searcher. ctx bounds every query and
// render the browser starts.
func NewBrowser(ctx context.Context, searcher Searcher, renderer Renderer, opts ...BrowserOption) *Browser {
	in := textinput.New()
	in.Placeholder = "search help topics, pkg:: installs pkg"
	in.Prompt = "? "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	b := &Browser{
		ctx:      ctx,
		searcher: searcher,
		renderer: renderer,
		styles:   DefaultStyles(),
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    in,
		spinner:  sp,
		page:     viewport.New(0, 0),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.input.PromptStyle = b.styles.Prompt
	b.resize(80, 24)
	return b
}

// Run starts the browser on the terminal and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, searcher Searcher, renderer Renderer, opts ...BrowserOption) error {
	p := tea.NewProgram(NewBrowser(ctx, searcher, renderer, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (b *Browser) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, b.spinner.Tick, b.query(b.input.Value()))
}

// Update implements tea.Model.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil

	case tea.KeyMsg:
		return b.updateKey(msg)

	case queryMsg:
		// Results of anything but the latest query are dropped.
		if msg.gen != b.queryGen {
			return b, nil
		}
		b.querying = false
		b.results = msg.res.Results
		b.token = msg.res.Token
		b.marker = msg.res.InstallMarker
		b.err = msg.res.Err
		b.cursor, b.offset = 0, 0
		return b, nil

	case pageMsg:
		if msg.seq != b.pageSeq {
			return b, nil
		}
		b.rendering = false
		b.shown = catalog.Key{Package: msg.page.Package, Topic: msg.page.Topic}
		b.pageHTML = msg.page.HTML
		b.pageFound = msg.page.Found
		b.setPageText(msg.text)
		return b, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinner, cmd = b.spinner.Update(msg)
		return b, cmd
	}

	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	return b, cmd
}

func (b *Browser) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, b.keys.Quit):
		b.quitting = true
		return b, tea.Quit
	case key.Matches(msg, b.keys.Back):
		if b.focus == focusPage {
			b.setFocus(focusInput)
			return b, nil
		}
		b.quitting = true
		return b, tea.Quit
	case key.Matches(msg, b.keys.Focus):
		if b.focus == focusPage {
			b.setFocus(focusInput)
		} else {
			b.setFocus(focusPage)
		}
		return b, nil
	}

	if b.focus == focusPage {
		var cmd tea.Cmd
		b.page, cmd = b.page.Update(msg)
		return b, cmd
	}

	switch {
	case key.Matches(msg, b.keys.Up):
		b.move(-1)
		return b, nil
	case key.Matches(msg, b.keys.Down):
		b.move(1)
		return b, nil
	case key.Matches(msg, b.keys.Open):
		return b, b.open()
	}

	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	if q := b.input.Value(); q != b.lastQuery {
		return b, tea.Batch(cmd, b.query(q))
	}
	return b, cmd
}

// query issues q to the searcher in the background.
func (b *Browser) query(q string) tea.Cmd {
	b.lastQuery = q
	b.querying = true
	b.queryGen++
	gen := b.queryGen
	ctx, s := b.ctx, b.searcher
	return func() tea.Msg {
		return queryMsg{gen: gen, res: s.Query(ctx, q)}
	}
}

// open resolves and renders the selected result in the background.
func (b *Browser) open() tea.Cmd {
	if len(b.results) == 0 {
		return nil
	}
	entry := b.results[b.cursor].Entry
	b.pageSeq++
	seq := b.pageSeq
	b.rendering = true
	width := b.page.Width
	ctx, s, r := b.ctx, b.searcher, b.renderer
	return func() tea.Msg {
		page := s.Select(ctx, entry.Package, entry.Topic)
		return pageMsg{seq: seq, page: page, text: r.Render(page.HTML, width)}
	}
}

func (b *Browser) move(delta int) {
	if len(b.results) == 0 {
		return
	}
	b.cursor = max(0, min(len(b.results)-1, b.cursor+delta))
	rows := b.listHeight()
	if b.cursor < b.offset {
		b.offset = b.cursor
	} else if b.cursor >= b.offset+rows {
		b.offset = b.cursor - rows + 1
	}
}

func (b *Browser) setFocus(f focus) {
	b.focus = f
	if f == focusInput {
		b.input.Focus()
	} else {
		b.input.Blur()
	}
}

func (b *Browser) setPageText(text string) {
	if !b.pageFound {
		text = b.styles.Status.Render(fmt.Sprintf("No help available for %s.", b.shownName()))
	}
	b.page.SetContent(text)
	b.page.GotoTop()
}

func (b *Browser) shownName() string {
	if b.shown.Package == "" || b.shown.Topic == "" {
		return "this topic"
	}
	return catalog.DisplayName(b.shown.Package, b.shown.Topic)
}

func (b *Browser) resize(width, height int) {
	b.width, b.height = width, height
	b.help.Width = width
	b.input.Width = max(10, width-len(b.input.Prompt)-2)

	frameW, frameH := b.styles.Pane.GetFrameSize()
	b.page.Width = max(10, width-b.listWidth()-frameW-1)
	b.page.Height = max(1, b.listHeight()-frameH)

	// Rendered text is wrapped to the old width.
	if b.pageHTML != "" && b.renderer != nil {
		b.page.SetContent(b.renderer.Render(b.pageHTML, b.page.Width))
	}
}

func (b *Browser) listWidth() int {
	return max(minListWidth, b.width/3)
}

func (b *Browser) listHeight() int {
	return max(1, b.height-chromeHeight)
}

// View implements tea.Model.
func (b *Browser) View() string {
	if b.quitting {
		return ""
	}

	header := b.input.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, b.listView(), " ", b.styles.Pane.Render(b.page.View()))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, b.statusView(), b.help.View(b.keys))
}

func (b *Browser) listView() string {
	width := b.listWidth()
	rows := b.listHeight()
	lines := make([]string, 0, rows)

	end := min(len(b.results), b.offset+rows)
	for i := b.offset; i < end; i++ {
		r := b.results[i]
		name := rank.Highlight(r.Entry.Name, r.Positions, b.styles.Match)
		if i == b.cursor {
			lines = append(lines, b.styles.Selected.String()+name)
		} else {
			lines = append(lines, b.styles.Item.Render(name))
		}
	}
	if len(b.results) == 0 && !b.querying {
		lines = append(lines, b.styles.Status.Render("  no matches"))
	}
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Height(rows).Render(strings.Join(lines, "\n"))
}

func (b *Browser) statusView() string {
	var parts []string
	if b.querying || b.rendering {
		parts = append(parts, b.spinner.View())
	}
	parts = append(parts, fmt.Sprintf("%d results", len(b.results)))
	if b.token != "" {
		parts = append(parts, b.token)
	}
	parts = append(parts, fmt.Sprintf("%d packages", b.marker))
	status := b.styles.Status.Render(strings.Join(parts, " · "))
	if b.err != nil {
		status += "  " + b.styles.Error.Render(b.err.Error())
	}
	return status
}

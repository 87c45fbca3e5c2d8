// SPDX-License-Identifier: MPL-2.0

package helptext

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
)

// hardBreak is a CommonMark hard line break.
const hardBreak = "\\\n"

type converter struct {
	out strings.Builder
}

// ToMarkdown converts an HTML help page to markdown. Unparseable input is
// returned wrapped in a code block.
func ToMarkdown(doc string) string {
	if strings.TrimSpace(doc) == "" {
		return ""
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "```\n" + doc + "\n```\n"
	}
	var c converter
	c.blocks(root, "")
	md := strings.TrimSpace(c.out.String())
	if md == "" {
		return ""
	}
	return md + "\n"
}

// emit writes one block, prefixed on every line, followed by a blank line.
func (c *converter) emit(text, prefix string) {
	text = strings.TrimRight(text, " \n")
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		c.out.WriteString(strings.TrimRight(prefix+line, " "))
		c.out.WriteString("\n")
	}
	c.out.WriteString("\n")
}

func (c *converter) blocks(n *html.Node, prefix string) {
	var para strings.Builder
	flush := func() {
		c.emit(collapse(para.String()), prefix)
		para.Reset()
	}

	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if !isBlock(ch) {
			para.WriteString(inline(ch))
			continue
		}
		flush()
		c.block(ch, prefix)
	}
	flush()
}

func (c *converter) block(n *html.Node, prefix string) {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title:
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		c.emit(strings.Repeat("#", level)+" "+collapse(inlineChildren(n)), prefix)
	case atom.P:
		if hasBlockChild(n) {
			c.blocks(n, prefix)
			return
		}
		c.emit(collapse(inlineChildren(n)), prefix)
	case atom.Pre:
		code := strings.Trim(textContent(n), "\n")
		fence := "```"
		for strings.Contains(code, fence) {
			fence += "`"
		}
		c.emit(fence+"r\n"+code+"\n"+fence, prefix)
	case atom.Ul, atom.Ol:
		c.list(n, prefix)
	case atom.Table:
		c.table(n, prefix)
	case atom.Dl:
		c.definitions(n, prefix)
	case atom.Blockquote:
		c.blocks(n, prefix+"> ")
	case atom.Hr:
		c.emit("---", prefix)
	default:
		c.blocks(n, prefix)
	}
}

func (c *converter) list(n *html.Node, prefix string) {
	var items []string
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		marker := "- "
		if n.DataAtom == atom.Ol {
			marker = strconv.Itoa(len(items)+1) + ". "
		}
		if text := flatten(li); text != "" {
			items = append(items, marker+text)
		}
	}
	c.emit(strings.Join(items, "\n"), prefix)
}

// table renders each row as a list item. Rd argument tables are two columns
// of name and description, which read better as "name: description" than
// as a wrapped markdown table.
func (c *converter) table(n *html.Node, prefix string) {
	var items []string
	for _, tr := range findAll(n, atom.Tr) {
		var cells []string
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
				if cell := flatten(td); cell != "" {
					cells = append(cells, cell)
				}
			}
		}
		switch len(cells) {
		case 0:
		case 1:
			items = append(items, "- "+cells[0])
		default:
			items = append(items, "- "+cells[0]+": "+strings.Join(cells[1:], " "))
		}
	}
	c.emit(strings.Join(items, "\n"), prefix)
}

func (c *converter) definitions(n *html.Node, prefix string) {
	var items []string
	term := ""
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type != html.ElementNode {
			continue
		}
		switch ch.DataAtom {
		case atom.Dt:
			if term != "" {
				items = append(items, "- "+term)
			}
			term = flatten(ch)
		case atom.Dd:
			desc := flatten(ch)
			if term != "" {
				desc = term + ": " + desc
				term = ""
			}
			if desc != "" {
				items = append(items, "- "+desc)
			}
		}
	}
	if term != "" {
		items = append(items, "- "+term)
	}
	c.emit(strings.Join(items, "\n"), prefix)
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Html, atom.Head, atom.Body, atom.Div, atom.Section, atom.Main,
		atom.Article, atom.Header, atom.Footer, atom.Nav, atom.Script, atom.Style, atom.Title,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.P, atom.Pre, atom.Ul, atom.Ol, atom.Table, atom.Dl, atom.Blockquote, atom.Hr:
		return true
	}
	return false
}

func hasBlockChild(n *html.Node) bool {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if isBlock(ch) {
			return true
		}
	}
	return false
}

func inline(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return mdEscaper.Replace(strings.ReplaceAll(n.Data, "\n", " "))
	case html.ElementNode:
	default:
		return ""
	}

	switch n.DataAtom {
	case atom.Br:
		return hardBreak
	case atom.Code, atom.Tt, atom.Kbd, atom.Samp:
		return codeSpan(collapse(textContent(n)))
	case atom.Em, atom.I, atom.Var, atom.Cite:
		return wrapNonEmpty("*", inlineChildren(n))
	case atom.Strong, atom.B:
		return wrapNonEmpty("**", inlineChildren(n))
	case atom.A:
		text := inlineChildren(n)
		href := attr(n, "href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "../") {
			return text
		}
		if strings.TrimSpace(text) == "" {
			text = mdEscaper.Replace(href)
		}
		return "[" + text + "](" + href + ")"
	case atom.Img:
		return mdEscaper.Replace(attr(n, "alt"))
	default:
		return inlineChildren(n)
	}
}

func inlineChildren(n *html.Node) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		b.WriteString(inline(ch))
	}
	return b.String()
}

// flatten renders a node's whole subtree as one line of inline markdown.
func flatten(n *html.Node) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if isBlock(ch) {
			b.WriteString(" ")
			if ch.DataAtom == atom.Pre {
				b.WriteString(codeSpan(collapse(textContent(ch))))
			} else {
				b.WriteString(flatten(ch))
			}
			b.WriteString(" ")
			continue
		}
		b.WriteString(inline(ch))
	}
	s := strings.ReplaceAll(b.String(), hardBreak, " ")
	return strings.ReplaceAll(collapse(s), "\n", " ")
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.DataAtom == atom.Br {
			b.WriteString("\n")
			continue
		}
		b.WriteString(textContent(ch))
	}
	return b.String()
}

func codeSpan(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

func wrapNonEmpty(marker, s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	return marker + trimmed + marker
}

// collapse folds whitespace runs to one space, keeping explicit line breaks.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if f := strings.Fields(line); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return strings.Join(out, "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type == html.ElementNode && ch.DataAtom == a {
				found = append(found, ch)
				continue
			}
			walk(ch)
		}
	}
	walk(n)
	return found
}

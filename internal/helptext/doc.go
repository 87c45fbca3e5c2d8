// SPDX-License-Identifier: MPL-2.0

// Package helptext turns the HTML help pages R renders into terminal text.
//
// ToMarkdown walks the page with golang.org/x/net/html and emits CommonMark
// that glamour can style. Renderer wraps glamour with a width-keyed renderer
// cache and falls back to reflow word wrapping of the markdown when glamour
// fails.
package helptext

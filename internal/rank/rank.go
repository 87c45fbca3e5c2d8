// SPDX-License-Identifier: MPL-2.0

// Package rank orders catalog entries against a fuzzy query.
//
// Scoring is delegated to github.com/sahilm/fuzzy, which matches the query
// characters in order and case-insensitively against Entry.Name. Equal scores
// are broken by the earliest first matched position, then the shorter name,
// then catalog order, so identical inputs always produce identical output.
package rank

import (
	"sort"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/invowk/fuzzyhelp/internal/catalog"
)

// Result is one ranked entry.
type Result struct {
	Entry catalog.Entry
	// Score is the fuzzy score; zero for an empty query.
	Score int
	// Positions are the rune offsets of the matched characters in Entry.Name.
	Positions []int
	// Index is the entry's position in the source catalog. It breaks the
	// final tie.
	Index int
}

// entrySource adapts a subset of catalog entries to fuzzy.Source.
type entrySource struct {
	entries []catalog.Entry
	idx     []int
}

func (s entrySource) String(i int) string { return s.entries[s.idx[i]].Name }
func (s entrySource) Len() int            { return len(s.idx) }

// Rank returns the entries of c that match query, best first. An empty query
// returns every entry in catalog order.
func Rank(c *catalog.Catalog, query string) []Result {
	entries := c.Entries()
	return rankIndexed(entries, allIndexes(len(entries)), query)
}

// RankEntries is Rank over a plain slice.
func RankEntries(entries []catalog.Entry, query string) []Result {
	return rankIndexed(entries, allIndexes(len(entries)), query)
}

// Top returns at most n results. n <= 0 means no limit.
func Top(results []Result, n int) []Result {
	if n <= 0 || len(results) <= n {
		return results
	}
	return results[:n]
}

// rankIndexed ranks entries[idx[0]], entries[idx[1]], ... where idx is in
// ascending catalog order.
func rankIndexed(entries []catalog.Entry, idx []int, query string) []Result {
	if query == "" {
		out := make([]Result, len(idx))
		for i, j := range idx {
			out[i] = Result{Entry: entries[j], Index: j}
		}
		return out
	}

	matches := fuzzy.FindFrom(query, entrySource{entries: entries, idx: idx})
	out := make([]Result, len(matches))
	for i, m := range matches {
		j := idx[m.Index]
		out[i] = Result{
			Entry:     entries[j],
			Score:     m.Score,
			Positions: runeOffsets(m.Str, m.MatchedIndexes),
			Index:     j,
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		ra, rb := out[a], out[b]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		if sa, sb := firstPosition(ra), firstPosition(rb); sa != sb {
			return sa < sb
		}
		if la, lb := utf8.RuneCountInString(ra.Entry.Name), utf8.RuneCountInString(rb.Entry.Name); la != lb {
			return la < lb
		}
		return ra.Index < rb.Index
	})
	return out
}

func firstPosition(r Result) int {
	if len(r.Positions) == 0 {
		return 0
	}
	return r.Positions[0]
}

// runeOffsets converts byte offsets into s to rune offsets.
func runeOffsets(s string, byteOffsets []int) []int {
	out := make([]int, len(byteOffsets))
	if len(s) == utf8.RuneCountInString(s) {
		copy(out, byteOffsets)
		return out
	}
	for i, b := range byteOffsets {
		out[i] = utf8.RuneCountInString(s[:b])
	}
	return out
}

func allIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

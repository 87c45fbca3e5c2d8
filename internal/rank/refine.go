// SPDX-License-Identifier: MPL-2.0

package rank

import (
	"sort"
	"strings"
	"sync"

	"github.com/invowk/fuzzyhelp/internal/catalog"
)

// Refiner ranks a sequence of evolving queries. When the catalog is unchanged
// and the new query extends the previous one, only the previous matches are
// re-ranked; otherwise the full catalog is scanned. Results always equal
// those of Rank. A Refiner is safe for concurrent use.
type Refiner struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	entries []catalog.Entry
	query   string
	matched []int // catalog indexes of the previous results, ascending
	primed  bool
}

// Rank ranks c against query, reusing the previous match set when possible.
func (r *Refiner) Rank(c *catalog.Catalog, query string) []Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []Result
	if r.primed && r.catalog == c && strings.HasPrefix(query, r.query) {
		results = rankIndexed(r.entries, r.matched, query)
	} else {
		r.catalog = c
		r.entries = c.Entries()
		results = rankIndexed(r.entries, allIndexes(len(r.entries)), query)
	}

	r.query = query
	r.primed = true
	r.matched = r.matched[:0]
	for _, res := range results {
		r.matched = append(r.matched, res.Index)
	}
	sort.Ints(r.matched)
	return results
}

// Reset forgets the previous query.
func (r *Refiner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = nil
	r.entries = nil
	r.matched = nil
	r.query = ""
	r.primed = false
}

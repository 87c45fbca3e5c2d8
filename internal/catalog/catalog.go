// SPDX-License-Identifier: MPL-2.0

package catalog

// Catalog is an immutable ordered sequence of entries. The zero value and a
// nil *Catalog are both empty.
type Catalog struct {
	seq      uint64
	entries  []Entry
	index    map[Key]int
	packages []string
}

// New creates a catalog from entries, keeping their order. seq is the build
// sequence number; larger numbers denote newer builds.
func New(seq uint64, entries []Entry) *Catalog {
	c := &Catalog{
		seq:     seq,
		entries: append([]Entry(nil), entries...),
		index:   make(map[Key]int, len(entries)),
	}
	seen := make(map[string]struct{})
	for i, e := range c.entries {
		if _, ok := c.index[e.Key()]; !ok {
			c.index[e.Key()] = i
		}
		if _, ok := seen[e.Package]; !ok {
			seen[e.Package] = struct{}{}
			c.packages = append(c.packages, e.Package)
		}
	}
	return c
}

// Seq returns the build sequence number.
func (c *Catalog) Seq() uint64 {
	if c == nil {
		return 0
	}
	return c.seq
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	return append([]Entry(nil), c.entries...)
}

// At returns the i-th entry.
func (c *Catalog) At(i int) Entry {
	return c.entries[i]
}

// Packages returns the distinct package names in first-seen order.
func (c *Catalog) Packages() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.packages...)
}

// Lookup returns the first entry for pkg/topic.
func (c *Catalog) Lookup(pkg, topic string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.index[Key{Package: pkg, Topic: topic}]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Contains reports whether an entry with the identity of e is present.
func (c *Catalog) Contains(e Entry) bool {
	_, ok := c.Lookup(e.Package, e.Topic)
	return ok
}

// Superset reports whether c contains every entry of other.
func (c *Catalog) Superset(other *Catalog) bool {
	if other == nil {
		return true
	}
	for _, e := range other.entries {
		if !c.Contains(e) {
			return false
		}
	}
	return true
}

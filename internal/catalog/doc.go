// SPDX-License-Identifier: MPL-2.0

// Package catalog builds the searchable corpus of help topics.
//
// A Catalog is an immutable, ordered snapshot of Entry values reported by the
// evaluation engine's help search database. Catalogs are never mutated; a
// Builder produces a fresh one on every call to Build, and callers replace
// their current snapshot wholesale.
package catalog

// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/invowk/fuzzyhelp/internal/engine"
)

// HelpQuery selects every alias whose base record is a help page.
const HelpQuery = `db <- utils::hsearch_db()
as.list(db$Aliases[
  db$Aliases$ID %in% db$Base$ID[db$Base$Type == "help"],
  c("Alias", "Package")
])`

const (
	aliasColumn   = "Alias"
	packageColumn = "Package"
)

var (
	// ErrMissingColumn is returned when the engine result lacks Alias or Package.
	ErrMissingColumn = errors.New("help database result is missing a column")
	// ErrColumnMismatch is returned when Alias and Package differ in length.
	ErrColumnMismatch = errors.New("help database columns differ in length")
)

type (
	// PackageRecorder receives the package names observed by a build.
	PackageRecorder interface {
		MarkKnown(names ...string)
	}

	// Builder queries the engine for the current help topics.
	Builder struct {
		engine   engine.Engine
		recorder PackageRecorder
		logger   *log.Logger
		seq      atomic.Uint64
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)
)

// WithLogger sets the builder's logger.
func WithLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder. recorder may be nil.
func NewBuilder(eng engine.Engine, recorder PackageRecorder, opts ...BuilderOption) *Builder {
	b := &Builder{
		engine:   eng,
		recorder: recorder,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a fresh catalog reflecting the engine's current state. Every
// package seen in the result is reported to the recorder.
func (b *Builder) Build(ctx context.Context) (*Catalog, error) {
	if err := b.engine.Init(ctx); err != nil {
		return nil, err
	}
	// Among concurrent builds, the one started last gets the largest seq.
	seq := b.seq.Add(1)

	v, err := b.engine.Evaluate(ctx, HelpQuery)
	if err != nil {
		return nil, fmt.Errorf("query help database: %w", err)
	}

	aliases, ok := v.Column(aliasColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, aliasColumn)
	}
	pkgs, ok := v.Column(packageColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, packageColumn)
	}
	if len(aliases) != len(pkgs) {
		return nil, fmt.Errorf("%w: %d aliases, %d packages", ErrColumnMismatch, len(aliases), len(pkgs))
	}

	entries := make([]Entry, len(aliases))
	for i, topic := range aliases {
		entries[i] = NewEntry(pkgs[i], topic)
	}
	c := New(seq, entries)

	if b.recorder != nil {
		b.recorder.MarkKnown(c.Packages()...)
	}
	b.logger.Debug("catalog built", "seq", seq, "entries", c.Len(), "packages", len(c.packages))
	return c, nil
}

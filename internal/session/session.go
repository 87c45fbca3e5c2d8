// SPDX-License-Identifier: MPL-2.0

// Package session wires the catalog builder, ranker, installer gate and help
// resolver into the per-process search state.
//
// A Session owns the current catalog and is its only writer. Ranking never
// touches the engine, so Search stays responsive while installs and renders
// are in flight. Catalog rebuilds are collapsed with singleflight and a newer
// build always wins over an older one.
package session

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/invowk/fuzzyhelp/internal/catalog"
	"github.com/invowk/fuzzyhelp/internal/engine"
	"github.com/invowk/fuzzyhelp/internal/helpdoc"
	"github.com/invowk/fuzzyhelp/internal/install"
	"github.com/invowk/fuzzyhelp/internal/rank"
	"github.com/invowk/fuzzyhelp/internal/watch"
)

type (
	// Dependencies are the collaborators of a Session. All are required.
	Dependencies struct {
		Engine   engine.Engine
		Gate     *install.Gate
		Builder  *catalog.Builder
		Resolver *helpdoc.Resolver
	}

	// Observer is notified of session events.
	Observer interface {
		CatalogReplaced(entries int)
		QueryRanked(results int, elapsed time.Duration)
	}

	// Session is the process-scoped search state.
	Session struct {
		deps     Dependencies
		logger   *log.Logger
		observer Observer
		limit    int

		mu      sync.RWMutex
		current *catalog.Catalog
		builtAt uint64 // gate generation when the current catalog's build started

		refiner  rank.Refiner
		rebuilds singleflight.Group
		querySeq atomic.Uint64
		started  atomic.Bool
	}

	// Option configures a Session.
	Option func(*Session)

	// QueryResult is the outcome of Query.
	QueryResult struct {
		// Seq identifies the query; see IsCurrent.
		Seq   uint64
		Query string
		// Token is the leading "pkg::" token of the query, if any.
		Token   string
		Results []rank.Result
		// InstallMarker is the number of known or attempted packages.
		InstallMarker int
		// Err is the install error for the query's package, if any. Results
		// are valid regardless.
		Err error

		catalogSeq uint64
	}

	// Request is the query surface: a search string and an optional
	// selection.
	Request struct {
		Q     string
		Pkg   string
		Topic string
	}

	// Response answers a Request.
	Response struct {
		Seq           uint64
		Token         string
		Results       []rank.Result
		InstallMarker int
		HTML          string
		Found         bool
	}

	buildResult struct {
		catalog *catalog.Catalog
		gateAt  uint64
	}
)

// WithLogger sets the session's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithSearchLimit caps the results returned by Query and Lookup. Zero or
// less means no cap.
func WithSearchLimit(n int) Option {
	return func(s *Session) { s.limit = n }
}

// New creates a Session. Call Start before serving queries.
func New(deps Dependencies, opts ...Option) *Session {
	s := &Session{
		deps:    deps,
		logger:  log.New(io.Discard),
		current: catalog.New(0, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start waits for the engine and builds the first catalog.
func (s *Session) Start(ctx context.Context) error {
	if err := s.deps.Engine.Init(ctx); err != nil {
		return err
	}
	if _, err := s.Refresh(ctx); err != nil {
		return err
	}
	s.started.Store(true)
	s.logger.Info("session started", "entries", s.Catalog().Len(), "packages", s.deps.Gate.Size())
	return nil
}

// Started reports whether Start has succeeded.
func (s *Session) Started() bool {
	return s.started.Load()
}

// Catalog returns the current catalog snapshot.
func (s *Session) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// InstallMarker returns the number of known or attempted packages.
func (s *Session) InstallMarker() int {
	return s.deps.Gate.Size()
}

// Search ranks the current catalog against query.
func (s *Session) Search(query string) []rank.Result {
	return s.search(s.Catalog(), query)
}

func (s *Session) search(c *catalog.Catalog, query string) []rank.Result {
	started := time.Now()
	results := s.refiner.Rank(c, query)
	if s.observer != nil {
		s.observer.QueryRanked(len(results), time.Since(started))
	}
	return results
}

// Refresh rebuilds the catalog and returns the current one. Refreshes
// requested while a build for the same gate generation is running share its
// result. A finished build replaces the current catalog only if it is newer.
func (s *Session) Refresh(ctx context.Context) (*catalog.Catalog, error) {
	gateAt := s.deps.Gate.Generation()
	v, err, _ := s.rebuilds.Do(strconv.FormatUint(gateAt, 10), func() (any, error) {
		// Followers share this build, so it must not end with the leader's ctx.
		c, err := s.deps.Builder.Build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return buildResult{catalog: c, gateAt: gateAt}, nil
	})
	if err != nil {
		return s.Catalog(), fmt.Errorf("refresh catalog: %w", err)
	}

	res := v.(buildResult)
	s.mu.Lock()
	if res.catalog.Seq() > s.current.Seq() {
		s.current = res.catalog
		s.builtAt = res.gateAt
		s.mu.Unlock()
		s.logger.Debug("catalog replaced", "seq", res.catalog.Seq(), "entries", res.catalog.Len())
		if s.observer != nil {
			s.observer.CatalogReplaced(res.catalog.Len())
		}
	} else {
		s.mu.Unlock()
	}
	return s.Catalog(), nil
}

// Query installs the package implied by a leading "pkg::" token, refreshes
// the catalog when the installed set grew, and ranks.
func (s *Session) Query(ctx context.Context, q string) QueryResult {
	seq := s.querySeq.Add(1)
	res := QueryResult{Seq: seq, Query: q}

	token, err := s.deps.Gate.InstallFromQuery(ctx, q)
	res.Token = token
	if err != nil {
		res.Err = err
		s.logger.Warn("query install failed", "token", token, "err", err)
	}
	if token != "" {
		s.refreshIfStale(ctx)
	}

	c := s.Catalog()
	res.catalogSeq = c.Seq()
	res.Results = rank.Top(s.search(c, q), s.limit)
	res.InstallMarker = s.deps.Gate.Size()
	return res
}

// IsCurrent reports whether seq belongs to the most recently issued query.
func (s *Session) IsCurrent(seq uint64) bool {
	return s.querySeq.Load() == seq
}

// Select installs pkg if needed, refreshes the catalog when that grew the
// installed set, and resolves the help page.
func (s *Session) Select(ctx context.Context, pkg, topic string) helpdoc.Page {
	if pkg != "" {
		if err := s.deps.Gate.InstallIfNeeded(ctx, pkg); err != nil {
			s.logger.Warn("selection install failed", "package", pkg, "err", err)
		}
		s.refreshIfStale(ctx)
	}
	return s.deps.Resolver.ResolvePage(ctx, pkg, topic)
}

// Lookup answers a full request: query installs and ranking, then the page
// for the selection.
func (s *Session) Lookup(ctx context.Context, req Request) Response {
	qr := s.Query(ctx, req.Q)
	page := s.Select(ctx, req.Pkg, req.Topic)

	// The selection may have installed a package and replaced the catalog.
	results := qr.Results
	if c := s.Catalog(); c.Seq() != qr.catalogSeq {
		results = rank.Top(s.search(c, req.Q), s.limit)
	}
	return Response{
		Seq:           qr.Seq,
		Token:         qr.Token,
		Results:       results,
		InstallMarker: s.deps.Gate.Size(),
		HTML:          page.HTML,
		Found:         page.Found,
	}
}

// Watch refreshes the catalog whenever packages change in dir. It blocks
// until ctx is cancelled.
func (s *Session) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := watch.New(watch.Config{
		LibraryDir: dir,
		Debounce:   debounce,
		Logger:     s.logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, packages []string) error {
			s.logger.Info("library changed", "packages", packages)
			s.deps.Gate.MarkKnown(packages...)
			s.deps.Resolver.Purge()
			_, err := s.Refresh(ctx)
			return err
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// refreshIfStale rebuilds the catalog when the gate changed after the
// current catalog's build started.
func (s *Session) refreshIfStale(ctx context.Context) {
	s.mu.RLock()
	stale := s.deps.Gate.Generation() != s.builtAt
	s.mu.RUnlock()
	if !stale {
		return
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("catalog refresh failed", "err", err)
	}
}

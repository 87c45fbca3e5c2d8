// SPDX-License-Identifier: MPL-2.0

// Package helpdoc fetches rendered help pages from the evaluation engine.
//
// Resolution is best effort. The owning package is installed first when
// needed, then the topic is rendered to HTML in a fresh scoped context that
// is always released. Install and render failures are logged and produce an
// empty or partial page rather than an error.
package helpdoc

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/invowk/fuzzyhelp/internal/catalog"
	"github.com/invowk/fuzzyhelp/internal/engine"
)

// DefaultCacheSize is the number of rendered pages kept in memory.
const DefaultCacheSize = 256

type (
	// Installer makes a package available before rendering.
	Installer interface {
		InstallIfNeeded(ctx context.Context, name string) error
	}

	// Observer is notified of every resolution.
	Observer interface {
		PageResolved(found, cached bool)
	}

	// Page is a rendered help page.
	Page struct {
		Package string
		Topic   string
		HTML    string
		// Found is false when the engine rendered nothing for the topic.
		Found bool
	}

	// Resolver renders help pages.
	Resolver struct {
		engine    engine.Engine
		installer Installer
		logger    *log.Logger
		observer  Observer
		cacheSize int
		cache     *lru.Cache[catalog.Key, Page]
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// WithLogger sets the resolver's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCacheSize sets the page cache capacity. Zero or less disables caching.
func WithCacheSize(n int) Option {
	return func(r *Resolver) { r.cacheSize = n }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver creates a Resolver. installer may be nil, in which case no
// package is installed before rendering.
func NewResolver(eng engine.Engine, installer Installer, opts ...Option) *Resolver {
	r := &Resolver{
		engine:    eng,
		installer: installer,
		logger:    log.New(io.Discard),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		// lru.New only fails for a non-positive size.
		r.cache, _ = lru.New[catalog.Key, Page](r.cacheSize)
	}
	return r
}

// Resolve returns the rendered HTML for topic in pkg, or the generic help
// page when either is empty. It never fails; the result may be empty.
func (r *Resolver) Resolve(ctx context.Context, pkg, topic string) string {
	return r.ResolvePage(ctx, pkg, topic).HTML
}

// ResolvePage is Resolve with the not-found state exposed.
func (r *Resolver) ResolvePage(ctx context.Context, pkg, topic string) Page {
	if pkg != "" && r.installer != nil {
		if err := r.installer.InstallIfNeeded(ctx, pkg); err != nil {
			r.logger.Warn("install before render failed", "package", pkg, "err", err)
		}
	}

	key := pageKey(pkg, topic)
	if r.cache != nil {
		if page, ok := r.cache.Get(key); ok {
			page.Package, page.Topic = pkg, topic
			r.observe(page.Found, true)
			return page
		}
	}

	html := r.render(ctx, key)
	page := Page{
		Package: pkg,
		Topic:   topic,
		HTML:    html,
		Found:   strings.TrimSpace(html) != "",
	}
	if page.Found && r.cache != nil {
		r.cache.Add(key, page)
	}
	r.observe(page.Found, false)
	return page
}

// Purge empties the page cache.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Resolver) render(ctx context.Context, key catalog.Key) string {
	if err := r.engine.Init(ctx); err != nil {
		r.logger.Debug("engine not ready", "err", err)
		return ""
	}

	sc, err := r.engine.OpenContext(ctx)
	if err != nil {
		r.logger.Debug("open evaluation context failed", "err", err)
		return ""
	}
	defer func() {
		if err := sc.Release(); err != nil {
			r.logger.Debug("release evaluation context failed", "err", err)
		}
	}()

	lines, err := sc.Capture(ctx, Script(key.Package, key.Topic))
	if err != nil {
		r.logger.Debug("render failed", "package", key.Package, "topic", key.Topic, "err", err)
	}
	return engine.Stdout(lines)
}

func (r *Resolver) observe(found, cached bool) {
	if r.observer != nil {
		r.observer.PageResolved(found, cached)
	}
}

// pageKey maps requests for the generic page to a single key.
func pageKey(pkg, topic string) catalog.Key {
	if pkg == "" || topic == "" {
		return catalog.Key{}
	}
	return catalog.Key{Package: pkg, Topic: topic}
}

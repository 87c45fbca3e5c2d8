// SPDX-License-Identifier: MPL-2.0

// Package install deduplicates package installation requests.
//
// The Gate owns the set of package names that are known to be present or
// have been attempted. A name is added to the set before the engine is asked
// to install it, so concurrent requests for the same name result in one
// engine call. Installs are serialized through the gate.
package install

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// namespacedQuery matches a leading "pkg::" token.
var namespacedQuery = regexp.MustCompile(`^[^\s:]+::`)

type (
	// Installer installs packages. engine.Engine satisfies it.
	Installer interface {
		InstallPackages(ctx context.Context, names []string) error
	}

	// Observer is notified of install outcomes.
	Observer interface {
		InstallFinished(pkg string, err error)
	}

	// Gate deduplicates and serializes installs.
	Gate struct {
		installer   Installer
		logger      *log.Logger
		observer    Observer
		retryFailed bool

		mu       sync.Mutex
		names    map[string]struct{}
		inflight map[string]chan struct{}
		gen      uint64

		installMu sync.Mutex // serializes engine installs
	}

	// Option configures a Gate.
	Option func(*Gate)
)

// WithLogger sets the gate's logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver registers an observer for install outcomes.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// WithRetryFailed makes a failed install eligible for another attempt. By
// default a name is attempted at most once per process.
func WithRetryFailed(retry bool) Option {
	return func(g *Gate) { g.retryFailed = retry }
}

// NewGate creates a Gate that installs through installer.
func NewGate(installer Installer, opts ...Option) *Gate {
	g := &Gate{
		installer: installer,
		logger:    log.New(io.Discard),
		names:     make(map[string]struct{}),
		inflight:  make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// InstallIfNeeded installs name unless it is blank or already known. The
// name is recorded before the install starts and stays recorded when the
// install fails. Callers that find an install of name in flight wait for it
// to finish and return nil; only the caller that started the install sees
// its error. A caller whose ctx ends stops waiting, but the install keeps
// running.
func (g *Gate) InstallIfNeeded(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	g.mu.Lock()
	if done, ok := g.inflight[name]; ok {
		g.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if _, ok := g.names[name]; ok {
		g.mu.Unlock()
		return nil
	}
	g.names[name] = struct{}{}
	g.gen++
	done := make(chan struct{})
	g.inflight[name] = done
	g.mu.Unlock()

	// The install outlives the starting caller. Its context only ends this
	// wait; the engine's own timeout bounds the install.
	var err error
	go func() {
		err = g.install(context.WithoutCancel(ctx), name)

		g.mu.Lock()
		delete(g.inflight, name)
		g.gen++
		if err != nil && g.retryFailed {
			delete(g.names, name)
		}
		g.mu.Unlock()

		if g.observer != nil {
			g.observer.InstallFinished(name, err)
		}
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) install(ctx context.Context, name string) error {
	g.installMu.Lock()
	defer g.installMu.Unlock()

	g.logger.Info("installing package", "package", name)
	if err := g.installer.InstallPackages(ctx, []string{name}); err != nil {
		g.logger.Warn("package install failed", "package", name, "err", err)
		return fmt.Errorf("install package %q: %w", name, err)
	}
	g.logger.Info("package installed", "package", name)
	return nil
}

// InstallFromQuery installs the package named by a leading "pkg::" token of
// query. It returns the raw token including "::", or "" when query does not
// start with such a token.
func (g *Gate) InstallFromQuery(ctx context.Context, query string) (string, error) {
	token, pkg, ok := ParseNamespace(query)
	if !ok {
		return "", nil
	}
	return token, g.InstallIfNeeded(ctx, pkg)
}

// ParseNamespace extracts the leading "pkg::" token of query. The identifier
// may not contain whitespace or ':'.
func ParseNamespace(query string) (token, pkg string, ok bool) {
	token = namespacedQuery.FindString(query)
	if token == "" {
		return "", "", false
	}
	return token, strings.TrimSuffix(token, "::"), true
}

// MarkKnown records names as present without installing them.
func (g *Gate) MarkKnown(names ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := g.names[n]; !ok {
			g.names[n] = struct{}{}
			g.gen++
		}
	}
}

// Generation changes whenever a name is recorded or an install finishes.
// Work derived from the installed set can be compared against it to detect
// staleness.
func (g *Gate) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// Attempted reports whether name is known or has been attempted.
func (g *Gate) Attempted(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.names[strings.TrimSpace(name)]
	return ok
}

// Size returns the number of known or attempted names.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.names)
}

// Names returns the known or attempted names, sorted.
func (g *Gate) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.names))
	for n := range g.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// SPDX-License-Identifier: MPL-2.0

// Package enginetest provides an in-memory engine.Engine for tests.
//
// The fake keeps a set of installed packages (returned by Evaluate as an
// Alias/Package table), a set of installable packages that InstallPackages
// moves into the installed set, and rendered pages keyed by package and topic
// that scoped contexts return from Capture. Every call is counted.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/invowk/fuzzyhelp/internal/engine"
)

// ErrNotAvailable is returned by InstallPackages for unknown packages.
var ErrNotAvailable = errors.New("package not available")

var (
	helpTopicCall = regexp.MustCompile("help\\(`((?:[^`\\\\]|\\\\.)*)`, package = \"((?:[^\"\\\\]|\\\\.)*)\"")
	helpIndexCall = regexp.MustCompile(`help\(\s*(help_type\s*=\s*"html")?\s*\)`)
	unescaper     = strings.NewReplacer(`\\`, `\`, "\\`", "`", `\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "\r")
)

type (
	// Engine is a scripted engine.Engine. The zero value is not usable; use New.
	Engine struct {
		mu sync.Mutex

		order     []string
		installed map[string][]string
		available map[string][]string
		pages     map[pageKey]string
		failPage  map[pageKey]bool
		failInst  map[string]error
		indexPage string
		initErr   error
		evalErr   error

		// OnInstall, when set, runs before InstallPackages changes any state.
		// Returning an error fails the install.
		OnInstall func(ctx context.Context, names []string) error

		initCalls     int
		evalCalls     int
		installCalls  map[string]int
		installBatch  int
		openCalls     int
		releasedCalls int
		captured      []string
	}

	pageKey struct{ pkg, topic string }

	fakeContext struct {
		engine   *Engine
		mu       sync.Mutex
		released bool
	}
)

// New creates an empty fake engine.
func New() *Engine {
	return &Engine{
		installed:    make(map[string][]string),
		available:    make(map[string][]string),
		pages:        make(map[pageKey]string),
		failPage:     make(map[pageKey]bool),
		failInst:     make(map[string]error),
		installCalls: make(map[string]int),
	}
}

// WithPackage adds an installed package exposing topics.
func (e *Engine) WithPackage(pkg string, topics ...string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.installed[pkg]; !ok {
		e.order = append(e.order, pkg)
	}
	e.installed[pkg] = append(e.installed[pkg], topics...)
	return e
}

// WithAvailable adds a package that InstallPackages can install.
func (e *Engine) WithAvailable(pkg string, topics ...string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available[pkg] = append(e.available[pkg], topics...)
	return e
}

// WithPage sets the rendered HTML for pkg/topic.
func (e *Engine) WithPage(pkg, topic, html string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages[pageKey{pkg, topic}] = html
	return e
}

// WithIndexPage sets the HTML returned for the generic help page.
func (e *Engine) WithIndexPage(html string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indexPage = html
	return e
}

// FailRender makes rendering pkg/topic exit with an R error after printing a
// partial line.
func (e *Engine) FailRender(pkg, topic string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failPage[pageKey{pkg, topic}] = true
	return e
}

// FailInstall makes installing pkg return err.
func (e *Engine) FailInstall(pkg string, err error) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failInst[pkg] = err
	return e
}

// SetInitErr makes Init fail with err. nil restores success.
func (e *Engine) SetInitErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initErr = err
}

// SetEvaluateErr makes Evaluate fail with err. nil restores success.
func (e *Engine) SetEvaluateErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evalErr = err
}

// Init implements engine.Engine.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initCalls++
	if e.initErr != nil {
		return fmt.Errorf("%w: %w", engine.ErrEngineNotReady, e.initErr)
	}
	return ctx.Err()
}

// Evaluate implements engine.Engine. Whatever the expression, it returns the
// Alias/Package table of the installed packages.
func (e *Engine) Evaluate(ctx context.Context, _ string) (*engine.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evalCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.evalErr != nil {
		return nil, e.evalErr
	}

	aliases := engine.Column{Name: "Alias"}
	pkgs := engine.Column{Name: "Package"}
	for _, pkg := range e.order {
		for _, topic := range e.installed[pkg] {
			aliases.Values = append(aliases.Values, topic)
			pkgs.Values = append(pkgs.Values, pkg)
		}
	}
	return &engine.Value{Columns: []engine.Column{aliases, pkgs}}, nil
}

// InstallPackages implements engine.Engine.
func (e *Engine) InstallPackages(ctx context.Context, names []string) error {
	e.mu.Lock()
	e.installBatch++
	for _, n := range names {
		e.installCalls[n]++
	}
	hook := e.OnInstall
	e.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, names); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range names {
		if err := e.failInst[n]; err != nil {
			return fmt.Errorf("install %s: %w", n, err)
		}
		if _, ok := e.installed[n]; ok {
			continue
		}
		topics, ok := e.available[n]
		if !ok {
			return fmt.Errorf("install %s: %w", n, ErrNotAvailable)
		}
		e.order = append(e.order, n)
		e.installed[n] = append([]string(nil), topics...)
	}
	return nil
}

// OpenContext implements engine.Engine.
func (e *Engine) OpenContext(ctx context.Context) (engine.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openCalls++
	return &fakeContext{engine: e}, nil
}

// Capture returns the page addressed by a help() call in expr. Unknown pages
// produce no output, like a silent try() around a missing help file.
func (c *fakeContext) Capture(ctx context.Context, expr string) ([]engine.OutputLine, error) {
	c.mu.Lock()
	released := c.released
	c.mu.Unlock()
	if released {
		return nil, engine.ErrContextReleased
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captured = append(e.captured, expr)

	if pkg, topic, ok := ParseHelpCall(expr); ok {
		key := pageKey{pkg, topic}
		if e.failPage[key] {
			return []engine.OutputLine{{Stream: engine.StreamStdout, Data: "<html>"}},
				&engine.EvalError{ExitCode: 1, Stderr: "Error in help: render failed"}
		}
		return lines(e.pages[key]), nil
	}
	if helpIndexCall.MatchString(expr) {
		return lines(e.indexPage), nil
	}
	return nil, nil
}

// Release implements engine.Context.
func (c *fakeContext) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil
	}
	c.released = true
	c.engine.mu.Lock()
	c.engine.releasedCalls++
	c.engine.mu.Unlock()
	return nil
}

// ParseHelpCall extracts the package and topic from a help(`topic`, package =
// "pkg") call.
func ParseHelpCall(expr string) (pkg, topic string, ok bool) {
	m := helpTopicCall.FindStringSubmatch(expr)
	if m == nil {
		return "", "", false
	}
	return unescaper.Replace(m[2]), unescaper.Replace(m[1]), true
}

// InitCalls returns the number of Init calls.
func (e *Engine) InitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initCalls
}

// EvaluateCalls returns the number of Evaluate calls.
func (e *Engine) EvaluateCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evalCalls
}

// InstallCalls returns how many times name was passed to InstallPackages.
func (e *Engine) InstallCalls(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installCalls[name]
}

// InstallBatches returns the number of InstallPackages calls.
func (e *Engine) InstallBatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installBatch
}

// OpenedContexts returns the number of contexts created.
func (e *Engine) OpenedContexts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openCalls
}

// ReleasedContexts returns the number of contexts released.
func (e *Engine) ReleasedContexts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releasedCalls
}

// Captured returns every expression passed to Capture.
func (e *Engine) Captured() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.captured...)
}

// Installed reports whether pkg is installed.
func (e *Engine) Installed(pkg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.installed[pkg]
	return ok
}

func lines(html string) []engine.OutputLine {
	if html == "" {
		return nil
	}
	parts := strings.Split(html, "\n")
	out := make([]engine.OutputLine, len(parts))
	for i, p := range parts {
		out[i] = engine.OutputLine{Stream: engine.StreamStdout, Data: p}
	}
	return out
}

var _ engine.Engine = (*Engine)(nil)

// SPDX-License-Identifier: MPL-2.0

package helpdoc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/fuzzyhelp/internal/engine/enginetest"
	"github.com/invowk/fuzzyhelp/internal/install"
)

const lmPage = "<html>\n<h2>Fitting Linear Models</h2>\n</html>"

type countingObserver struct {
	mu     sync.Mutex
	found  int
	miss   int
	cached int
}

func (o *countingObserver) PageResolved(found, cached bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if found {
		o.found++
	} else {
		o.miss++
	}
	if cached {
		o.cached++
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithPackage("stats", "lm").WithPage("stats", "lm", lmPage)
	r := NewResolver(eng, install.NewGate(eng))

	assert.Equal(t, lmPage, r.Resolve(context.Background(), "stats", "lm"))
	assert.Equal(t, 1, eng.OpenedContexts())
	assert.Equal(t, 1, eng.ReleasedContexts())
}

func TestResolveNonexistentNeverFails(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	gate := install.NewGate(eng)
	r := NewResolver(eng, gate)

	page := r.ResolvePage(context.Background(), "nonexistent", "nope")
	assert.Empty(t, page.HTML)
	assert.False(t, page.Found)
	assert.Equal(t, "nonexistent", page.Package)
	assert.Equal(t, "nope", page.Topic)
	assert.True(t, gate.Attempted("nonexistent"))
	assert.Equal(t, 1, eng.InstallCalls("nonexistent"))
	assert.Equal(t, 1, eng.ReleasedContexts())
}

func TestResolveInstallsBeforeRendering(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().
		WithAvailable("dplyr", "filter").
		WithPage("dplyr", "filter", "<p>filter</p>")
	gate := install.NewGate(eng)
	r := NewResolver(eng, gate)

	var installedAtRender bool
	eng.OnInstall = func(context.Context, []string) error {
		installedAtRender = len(eng.Captured()) == 0
		return nil
	}

	page := r.ResolvePage(context.Background(), "dplyr", "filter")
	assert.True(t, page.Found)
	assert.True(t, installedAtRender, "install must finish before rendering starts")
	assert.True(t, eng.Installed("dplyr"))
}

func TestResolveRenderFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithPackage("broken", "topic").FailRender("broken", "topic")
	r := NewResolver(eng, nil)

	page := r.ResolvePage(context.Background(), "broken", "topic")
	assert.Equal(t, "<html>", page.HTML)
	assert.Equal(t, 1, eng.OpenedContexts())
	assert.Equal(t, 1, eng.ReleasedContexts())
}

func TestResolveInstallFailureContinues(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().FailInstall("pkg", errors.New("no mirror")).WithPage("pkg", "topic", "<p>cached elsewhere</p>")
	r := NewResolver(eng, install.NewGate(eng))

	assert.Equal(t, "<p>cached elsewhere</p>", r.Resolve(context.Background(), "pkg", "topic"))
}

func TestResolveGenericPage(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithIndexPage("<h1>help</h1>")
	r := NewResolver(eng, nil)
	ctx := context.Background()

	tests := []struct{ pkg, topic string }{
		{"", ""},
		{"stats", ""},
		{"", "lm"},
	}
	for _, tt := range tests {
		page := r.ResolvePage(ctx, tt.pkg, tt.topic)
		assert.Equal(t, "<h1>help</h1>", page.HTML)
		assert.Equal(t, tt.pkg, page.Package)
		assert.Equal(t, tt.topic, page.Topic)
	}
	assert.Equal(t, 1, eng.OpenedContexts(), "generic page is cached under one key")
}

func TestResolveCachesOnlyFoundPages(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithPackage("stats", "lm").WithPage("stats", "lm", lmPage)
	obs := &countingObserver{}
	r := NewResolver(eng, nil, WithObserver(obs))
	ctx := context.Background()

	r.Resolve(ctx, "stats", "lm")
	r.Resolve(ctx, "stats", "lm")
	assert.Equal(t, 1, eng.OpenedContexts())

	assert.Empty(t, r.Resolve(ctx, "later", "topic"))
	eng.WithPage("later", "topic", "<p>now</p>")
	assert.Equal(t, "<p>now</p>", r.Resolve(ctx, "later", "topic"))
	assert.Equal(t, 3, eng.OpenedContexts())

	assert.Equal(t, 3, obs.found)
	assert.Equal(t, 1, obs.miss)
	assert.Equal(t, 1, obs.cached)

	r.Purge()
	r.Resolve(ctx, "stats", "lm")
	assert.Equal(t, 4, eng.OpenedContexts())
}

func TestResolveCacheDisabled(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithPage("stats", "lm", lmPage)
	r := NewResolver(eng, nil, WithCacheSize(0))
	ctx := context.Background()

	r.Resolve(ctx, "stats", "lm")
	r.Resolve(ctx, "stats", "lm")
	r.Purge()
	assert.Equal(t, 2, eng.OpenedContexts())
}

func TestResolveEngineNotReady(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithPage("stats", "lm", lmPage)
	eng.SetInitErr(errors.New("no R"))
	r := NewResolver(eng, nil)

	page := r.ResolvePage(context.Background(), "stats", "lm")
	assert.False(t, page.Found)
	assert.Equal(t, 0, eng.OpenedContexts())
}

func TestScriptQuotesNames(t *testing.T) {
	t.Parallel()

	script := Script(`evil"pkg`, "a`b")
	pkg, topic, ok := enginetest.ParseHelpCall(script)
	require.True(t, ok)
	assert.Equal(t, `evil"pkg`, pkg)
	assert.Equal(t, "a`b", topic)
	assert.Contains(t, script, `try({`)
	assert.Contains(t, script, `silent = TRUE`)

	assert.Contains(t, Script("", ""), `help(help_type = "html")`)
	_, _, ok = enginetest.ParseHelpCall(Script("stats", ""))
	assert.False(t, ok)
}

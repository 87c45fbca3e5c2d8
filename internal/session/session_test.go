// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/fuzzyhelp/internal/catalog"
	"github.com/invowk/fuzzyhelp/internal/engine"
	"github.com/invowk/fuzzyhelp/internal/engine/enginetest"
	"github.com/invowk/fuzzyhelp/internal/helpdoc"
	"github.com/invowk/fuzzyhelp/internal/install"
	"github.com/invowk/fuzzyhelp/internal/rank"
)

func newFakeEngine() *enginetest.Engine {
	return enginetest.New().
		WithPackage("base", "print", "+").
		WithPackage("stats", "lm", "glm").
		WithAvailable("dplyr", "filter", "mutate").
		WithPage("stats", "lm", "<h2>Fitting Linear Models</h2>").
		WithPage("dplyr", "filter", "<h2>Keep rows that match a condition</h2>").
		WithIndexPage("<h1>R help</h1>")
}

func newSession(t *testing.T, eng *enginetest.Engine, opts ...Option) *Session {
	t.Helper()
	gate := install.NewGate(eng)
	s := New(Dependencies{
		Engine:   eng,
		Gate:     gate,
		Builder:  catalog.NewBuilder(eng, gate),
		Resolver: helpdoc.NewResolver(eng, gate),
	}, opts...)
	require.NoError(t, s.Start(context.Background()))
	return s
}

func resultNames(results []rank.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entry.Name
	}
	return out
}

func TestStart(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)

	assert.True(t, s.Started())
	assert.Equal(t, 4, s.Catalog().Len())
	assert.Equal(t, 2, s.InstallMarker())
	assert.Equal(t, 0, eng.InstallBatches())
}

func TestStartEngineNotReady(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	eng.SetInitErr(errors.New("Rscript not found"))
	gate := install.NewGate(eng)
	s := New(Dependencies{
		Engine:   eng,
		Gate:     gate,
		Builder:  catalog.NewBuilder(eng, gate),
		Resolver: helpdoc.NewResolver(eng, gate),
	})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, engine.ErrEngineNotReady)
	assert.False(t, s.Started())
	assert.Equal(t, 0, s.Catalog().Len())
	assert.Empty(t, s.Search(""))
}

func TestSearch(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeEngine())

	assert.Equal(t, []string{"stats::lm", "stats::glm"}, resultNames(s.Search("lm")))
	assert.Len(t, s.Search(""), 4)
}

func TestQueryInstallsNamespace(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	before := s.Catalog()
	ctx := context.Background()

	res := s.Query(ctx, "dplyr::filter")
	require.NoError(t, res.Err)
	assert.Equal(t, "dplyr::", res.Token)
	assert.Equal(t, 3, res.InstallMarker)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "dplyr::filter", res.Results[0].Entry.Name)
	assert.True(t, s.Catalog().Superset(before))
	assert.Greater(t, s.Catalog().Len(), before.Len())

	res = s.Query(ctx, "dplyr::mutate")
	assert.Equal(t, "dplyr::mutate", res.Results[0].Entry.Name)
	assert.Equal(t, 1, eng.InstallCalls("dplyr"))
}

func TestQueryPlain(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	evals := eng.EvaluateCalls()

	res := s.Query(context.Background(), "plain query")
	assert.Empty(t, res.Token)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, eng.InstallBatches())
	assert.Equal(t, evals, eng.EvaluateCalls(), "plain queries never rebuild the catalog")
}

func TestQueryInstallFailure(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)

	res := s.Query(context.Background(), "nonexistent::x")
	require.Error(t, res.Err)
	assert.Equal(t, "nonexistent::", res.Token)
	assert.Equal(t, 3, res.InstallMarker)

	res = s.Query(context.Background(), "nonexistent::xy")
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, eng.InstallCalls("nonexistent"))
}

func TestQueryLimit(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeEngine(), WithSearchLimit(2))
	assert.Len(t, s.Query(context.Background(), "").Results, 2)
	assert.Len(t, s.Search(""), 4)
}

func TestIsCurrent(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeEngine())
	ctx := context.Background()

	first := s.Query(ctx, "l")
	assert.True(t, s.IsCurrent(first.Seq))
	second := s.Query(ctx, "lm")
	assert.Greater(t, second.Seq, first.Seq)
	assert.False(t, s.IsCurrent(first.Seq))
	assert.True(t, s.IsCurrent(second.Seq))
}

func TestSearchDuringInstall(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	started := make(chan struct{})
	release := make(chan struct{})
	eng.OnInstall = func(context.Context, []string) error {
		close(started)
		<-release
		return nil
	}
	s := newSession(t, eng)

	done := make(chan QueryResult, 1)
	go func() { done <- s.Query(context.Background(), "dplyr::") }()
	<-started

	assert.Equal(t, []string{"stats::lm", "stats::glm"}, resultNames(s.Search("lm")))

	close(release)
	res := <-done
	assert.Contains(t, resultNames(res.Results), "dplyr::filter")
}

func TestConcurrentQueriesInstallOnce(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)

	var wg sync.WaitGroup
	for _, q := range []string{"dplyr::", "dplyr::f", "dplyr::fi", "dplyr::fil", "dplyr::filt"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.Query(context.Background(), q)
			assert.NoError(t, res.Err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Select(context.Background(), "dplyr", "filter")
	}()
	wg.Wait()

	assert.Equal(t, 1, eng.InstallCalls("dplyr"))
	_, ok := s.Catalog().Lookup("dplyr", "filter")
	assert.True(t, ok)
}

func TestRefreshKeepsNewest(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Refresh(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seq := s.Catalog().Seq()
	_, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Greater(t, s.Catalog().Seq(), seq)
}

func TestRefreshIgnoresLeaderCancel(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	seq := s.Catalog().Seq()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Greater(t, c.Seq(), seq)
	assert.Same(t, c, s.Catalog())
}

func TestRefreshErrorKeepsCatalog(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	before := s.Catalog()

	eng.SetEvaluateErr(errors.New("database locked"))
	c, err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, before, c)
	assert.Same(t, before, s.Catalog())
}

func TestSelect(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	ctx := context.Background()

	page := s.Select(ctx, "stats", "lm")
	assert.True(t, page.Found)
	assert.Equal(t, "<h2>Fitting Linear Models</h2>", page.HTML)

	page = s.Select(ctx, "dplyr", "filter")
	assert.True(t, page.Found)
	assert.Equal(t, 1, eng.InstallCalls("dplyr"))
	_, ok := s.Catalog().Lookup("dplyr", "filter")
	assert.True(t, ok, "selection install refreshes the catalog")

	page = s.Select(ctx, "", "")
	assert.Equal(t, "<h1>R help</h1>", page.HTML)

	page = s.Select(ctx, "nonexistent", "nope")
	assert.False(t, page.Found)
	assert.Empty(t, page.HTML)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)

	resp := s.Lookup(context.Background(), Request{Q: "filter", Pkg: "dplyr", Topic: "filter"})
	assert.True(t, resp.Found)
	assert.Equal(t, "<h2>Keep rows that match a condition</h2>", resp.HTML)
	assert.Equal(t, 3, resp.InstallMarker)
	assert.Equal(t, []string{"dplyr::filter"}, resultNames(resp.Results))

	resp = s.Lookup(context.Background(), Request{})
	assert.Equal(t, "<h1>R help</h1>", resp.HTML)
	assert.Len(t, resp.Results, 6)
}

func TestWatch(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	s := newSession(t, eng)
	lib := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Watch(ctx, lib, 20*time.Millisecond) }()
	time.Sleep(50 * time.Millisecond)

	// Install outside the session, as another R process would.
	require.NoError(t, eng.InstallPackages(context.Background(), []string{"dplyr"}))
	require.NoError(t, os.MkdirAll(filepath.Join(lib, "dplyr"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "dplyr", "DESCRIPTION"), []byte("Package: dplyr\n"), 0o644))

	require.Eventually(t, func() bool {
		_, ok := s.Catalog().Lookup("dplyr", "filter")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

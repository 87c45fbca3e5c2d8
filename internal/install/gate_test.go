// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/fuzzyhelp/internal/engine/enginetest"
)

type outcome struct {
	pkg string
	err error
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (o *recordingObserver) InstallFinished(pkg string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome{pkg, err})
}

func TestInstallIfNeededIsIdempotent(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithAvailable("dplyr", "filter")
	g := NewGate(eng)
	ctx := context.Background()

	require.NoError(t, g.InstallIfNeeded(ctx, "dplyr"))
	require.NoError(t, g.InstallIfNeeded(ctx, "dplyr"))
	require.NoError(t, g.InstallIfNeeded(ctx, " dplyr "))

	assert.Equal(t, 1, eng.InstallCalls("dplyr"))
	assert.True(t, g.Attempted("dplyr"))
	assert.Equal(t, 1, g.Size())
}

func TestInstallIfNeededBlankName(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	g := NewGate(eng)

	for _, name := range []string{"", "  ", "\t"} {
		require.NoError(t, g.InstallIfNeeded(context.Background(), name))
	}
	assert.Equal(t, 0, eng.InstallBatches())
	assert.Equal(t, 0, g.Size())
}

func TestInstallIfNeededKnownName(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	g := NewGate(eng)
	g.MarkKnown("stats", "base", "")

	require.NoError(t, g.InstallIfNeeded(context.Background(), "stats"))
	assert.Equal(t, 0, eng.InstallBatches())
	assert.Equal(t, []string{"base", "stats"}, g.Names())
}

func TestInstallFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	obs := &recordingObserver{}
	g := NewGate(eng, WithObserver(obs))
	ctx := context.Background()

	err := g.InstallIfNeeded(ctx, "nonexistent")
	require.ErrorIs(t, err, enginetest.ErrNotAvailable)
	assert.True(t, g.Attempted("nonexistent"))

	require.NoError(t, g.InstallIfNeeded(ctx, "nonexistent"))
	assert.Equal(t, 1, eng.InstallCalls("nonexistent"))

	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, "nonexistent", obs.outcomes[0].pkg)
	require.Error(t, obs.outcomes[0].err)
}

func TestInstallFailureRetryPolicy(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	g := NewGate(eng, WithRetryFailed(true))
	ctx := context.Background()

	require.Error(t, g.InstallIfNeeded(ctx, "later"))
	assert.False(t, g.Attempted("later"))

	eng.WithAvailable("later", "topic")
	require.NoError(t, g.InstallIfNeeded(ctx, "later"))
	assert.Equal(t, 2, eng.InstallCalls("later"))
	assert.True(t, g.Attempted("later"))
}

func TestConcurrentInstallsShareOneCall(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	eng := enginetest.New().WithAvailable("dplyr", "filter")
	eng.OnInstall = func(ctx context.Context, _ []string) error {
		close(started)
		<-release
		return nil
	}
	g := NewGate(eng)
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() { firstErr <- g.InstallIfNeeded(ctx, "dplyr") }()
	<-started

	const waiters = 8
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- g.InstallIfNeeded(ctx, "dplyr")
		}()
	}

	// Waiters must not return before the install finishes.
	select {
	case err := <-errs:
		t.Fatalf("waiter returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstErr)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, eng.InstallCalls("dplyr"))
	assert.True(t, eng.Installed("dplyr"))
}

func TestWaiterContextCancel(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	eng := enginetest.New().WithAvailable("slow")
	eng.OnInstall = func(context.Context, []string) error {
		close(started)
		<-release
		return nil
	}
	g := NewGate(eng)

	done := make(chan error, 1)
	go func() { done <- g.InstallIfNeeded(context.Background(), "slow") }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, g.InstallIfNeeded(ctx, "slow"), context.Canceled)

	close(release)
	require.NoError(t, <-done)
}

func TestInstallOutlivesStartingCaller(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	installErr := make(chan error, 1)
	eng := enginetest.New().WithAvailable("dplyr")
	eng.OnInstall = func(ctx context.Context, _ []string) error {
		close(started)
		<-release
		installErr <- ctx.Err()
		return nil
	}
	obs := &recordingObserver{}
	g := NewGate(eng, WithObserver(obs))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- g.InstallIfNeeded(ctx, "dplyr") }()
	<-started
	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	waiter := make(chan error, 1)
	go func() { waiter <- g.InstallIfNeeded(context.Background(), "dplyr") }()

	close(release)
	require.NoError(t, <-installErr)
	require.NoError(t, <-waiter)

	assert.True(t, eng.Installed("dplyr"))
	require.NoError(t, g.InstallIfNeeded(context.Background(), "dplyr"))
	assert.Equal(t, 1, eng.InstallCalls("dplyr"))
	assert.Eventually(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(obs.outcomes) == 1 && obs.outcomes[0].err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestInstallsAreSerialized(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	active, peak := 0, 0
	eng := enginetest.New().WithAvailable("a").WithAvailable("b").WithAvailable("c")
	eng.OnInstall = func(context.Context, []string) error {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}
	g := NewGate(eng)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.InstallIfNeeded(context.Background(), name))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestInstallFromQuery(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithAvailable("dplyr", "filter")
	g := NewGate(eng)
	ctx := context.Background()

	token, err := g.InstallFromQuery(ctx, "dplyr::filter")
	require.NoError(t, err)
	assert.Equal(t, "dplyr::", token)
	assert.Equal(t, 1, eng.InstallCalls("dplyr"))

	token, err = g.InstallFromQuery(ctx, "dplyr::mutate")
	require.NoError(t, err)
	assert.Equal(t, "dplyr::", token)
	assert.Equal(t, 1, eng.InstallCalls("dplyr"))

	token, err = g.InstallFromQuery(ctx, "plain query")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, 1, eng.InstallBatches())
}

func TestInstallFromQueryFailure(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().FailInstall("broken", errors.New("compilation failed"))
	g := NewGate(eng)

	token, err := g.InstallFromQuery(context.Background(), "broken::x")
	require.Error(t, err)
	assert.Equal(t, "broken::", token)
	assert.True(t, g.Attempted("broken"))
}

func TestParseNamespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		token string
		pkg   string
		ok    bool
	}{
		{"dplyr::filter", "dplyr::", "dplyr", true},
		{"dplyr::", "dplyr::", "dplyr", true},
		{"data.table::fread", "data.table::", "data.table", true},
		{"base::`+`", "base::", "base", true},
		{"plain query", "", "", false},
		{"::foo", "", "", false},
		{"", "", "", false},
		{" dplyr::filter", "", "", false},
		{"my pkg::x", "", "", false},
		{"a:b::c", "", "", false},
		{"stats:lm", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			token, pkg, ok := ParseNamespace(tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.pkg, pkg)
		})
	}
}

func TestSetIsMonotonic(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithAvailable("a")
	g := NewGate(eng)
	ctx := context.Background()

	sizes := []int{g.Size()}
	g.MarkKnown("base")
	sizes = append(sizes, g.Size())
	_ = g.InstallIfNeeded(ctx, "a")
	sizes = append(sizes, g.Size())
	_ = g.InstallIfNeeded(ctx, "missing")
	sizes = append(sizes, g.Size())
	g.MarkKnown("base")
	sizes = append(sizes, g.Size())

	assert.IsNonDecreasing(t, sizes)
	assert.Equal(t, []string{"a", "base", "missing"}, g.Names())
}

func TestGeneration(t *testing.T) {
	t.Parallel()

	eng := enginetest.New().WithAvailable("dplyr")
	g := NewGate(eng)
	ctx := context.Background()

	gen := g.Generation()
	g.MarkKnown("base")
	assert.Greater(t, g.Generation(), gen)

	gen = g.Generation()
	g.MarkKnown("base")
	assert.Equal(t, gen, g.Generation(), "known names do not bump the generation")

	var duringInstall uint64
	eng.OnInstall = func(context.Context, []string) error {
		duringInstall = g.Generation()
		return nil
	}
	require.NoError(t, g.InstallIfNeeded(ctx, "dplyr"))
	assert.Greater(t, duringInstall, gen)
	assert.Greater(t, g.Generation(), duringInstall, "finishing an install bumps the generation")
}

// SPDX-License-Identifier: MPL-2.0

// Package watch monitors an R package library for installed packages.
//
// The watcher registers the library directory and every package directory
// directly below it. Package directories appearing, disappearing or having
// their DESCRIPTION rewritten are collected during a debounce window and
// reported once, as the set of affected package names.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is not set.
// R writes many files while installing a package; they coalesce into one
// notification.
const DefaultDebounce = 500 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

var (
	// packagePatterns select the library paths that signal a package change.
	packagePatterns = []string{"*", "*/DESCRIPTION"}

	// ignorePatterns cover install locks and scratch files R leaves behind.
	ignorePatterns = []string{
		"00LOCK*",
		"00LOCK*/**",
		"file*.tmp",
		".*",
		"*/.*",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// LibraryDir is the package library to watch. It must exist.
		LibraryDir string

		// Debounce is the quiet period after the last event before OnChange
		// fires. Zero or negative values fall back to DefaultDebounce.
		Debounce time.Duration

		// OnChange receives the sorted names of the packages that changed.
		// A nil callback is a no-op.
		OnChange func(ctx context.Context, packages []string) error

		// Logger receives watcher diagnostics. nil discards them.
		Logger *log.Logger
	}

	// Watcher reports package changes in a library directory. Run must be
	// called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

// New creates a Watcher for cfg.LibraryDir and registers the library and its
// package directories.
func New(cfg Config) (*Watcher, error) {
	if cfg.LibraryDir == "" {
		return nil, errors.New("watch: library directory is required")
	}
	absBase, err := filepath.Abs(cfg.LibraryDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve library directory: %w", err)
	}
	info, err := os.Stat(absBase)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", absBase)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
	}

	if err := w.addDirectories(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close watcher after init failure", "err", closeErr)
		}
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after ctx is cancelled; it checks ctx first. Callbacks
	// never overlap: a fire that finds one in progress reschedules itself.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("callback still running, rescheduling")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		w.logger.Debug("library changed", "packages", changed)
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("library change callback failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if closeErr := w.fsw.Close(); closeErr != nil {
			w.logger.Warn("close fsnotify", "err", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}

			pkg, ok := w.packageOf(evt.Name)
			if !ok {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[pkg] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// packageOf maps an event path to the package it belongs to.
func (w *Watcher) packageOf(path string) (string, bool) {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return "", false
	}
	return PackageOf(rel)
}

// PackageOf returns the package affected by a change at rel, a path
// relative to the library directory. Lock directories, hidden files and
// files other than a package's DESCRIPTION yield false.
func PackageOf(rel string) (string, bool) {
	normalized := filepath.ToSlash(rel)
	if normalized == "." || strings.HasPrefix(normalized, "../") {
		return "", false
	}
	if matchesAny(ignorePatterns, normalized) || !matchesAny(packagePatterns, normalized) {
		return "", false
	}
	pkg, _, _ := strings.Cut(normalized, "/")
	return pkg, true
}

// addDirectories registers the library and the package directories below
// it. Package internals are not watched.
func (w *Watcher) addDirectories() error {
	if err := w.fsw.Add(w.baseDir); err != nil {
		return fmt.Errorf("watch: add library %q: %w", w.baseDir, err)
	}
	entries, err := os.ReadDir(w.baseDir)
	if err != nil {
		return fmt.Errorf("watch: read library: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.maybeAddDir(filepath.Join(w.baseDir, e.Name()))
		}
	}
	return nil
}

// maybeAddDir registers path if it is a package directory.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil || strings.ContainsRune(filepath.ToSlash(rel), '/') {
		return
	}
	if matchesAny(ignorePatterns, filepath.ToSlash(rel)) {
		return
	}
	if addErr := w.fsw.Add(path); addErr != nil {
		w.logger.Warn("watch package directory", "path", path, "err", addErr)
	}
}

func matchesAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

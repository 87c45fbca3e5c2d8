// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultRepo is the CRAN mirror used when no repository is configured.
	DefaultRepo = "https://cloud.r-project.org"
	// DefaultTimeout bounds a single Rscript subprocess.
	DefaultTimeout = 5 * time.Minute

	// waitDelay bounds how long output pipes may stay open after the
	// subprocess was killed.
	waitDelay = 2 * time.Second

	rscriptBinary = "Rscript"
	probeExpr     = `cat(R.version.string, "\n")`
)

// rscriptArgs are passed before -e on every invocation so that user profile
// files cannot change evaluation results.
var rscriptArgs = []string{"--no-save", "--no-restore", "--no-init-file"}

type (
	// RscriptConfig configures the Rscript engine.
	RscriptConfig struct {
		// Binary is the Rscript executable. Empty means look it up on PATH.
		Binary string
		// LibraryDir is the writable package library. Installed packages are
		// placed here and it is prepended to .libPaths() for every evaluation.
		LibraryDir string
		// Repos are the package repositories used by InstallPackages.
		Repos []string
		// MaxConcurrent bounds concurrent subprocesses (default 1).
		MaxConcurrent int
		// Timeout bounds each subprocess (default DefaultTimeout).
		Timeout time.Duration
		// Env holds extra KEY=VALUE entries for the subprocess environment.
		Env []string
		// Logger receives debug output. nil discards it.
		Logger *log.Logger
	}

	// Rscript is an Engine that evaluates each request in a fresh Rscript
	// subprocess.
	Rscript struct {
		cfg    RscriptConfig
		sem    *semaphore.Weighted
		logger *log.Logger

		initMu  sync.Mutex
		binary  string // resolved executable; non-empty once Init succeeded
		version string
	}

	// rscriptContext is the scoped context returned by Rscript.OpenContext.
	// Each context owns a private working directory.
	rscriptContext struct {
		engine   *Rscript
		dir      string
		released atomic.Bool
		once     sync.Once
		err      error
	}
)

// NewRscript creates an Rscript engine. No subprocess is started until Init.
func NewRscript(cfg RscriptConfig) *Rscript {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Repos) == 0 {
		cfg.Repos = []string{DefaultRepo}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Rscript{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: logger,
	}
}

// Init resolves the Rscript binary, creates the library directory and runs a
// probe expression. A successful Init is remembered; a failed one is retried
// on the next call.
func (r *Rscript) Init(ctx context.Context) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if r.binary != "" {
		return nil
	}

	binary := r.cfg.Binary
	if binary == "" {
		binary = rscriptBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%w: locate %s: %w", ErrEngineNotReady, binary, err)
	}

	if r.cfg.LibraryDir != "" {
		if err := os.MkdirAll(r.cfg.LibraryDir, 0o755); err != nil {
			return fmt.Errorf("%w: create library directory: %w", ErrEngineNotReady, err)
		}
	}

	stdout, _, err := r.exec(ctx, resolved, "", r.preamble()+probeExpr)
	if err != nil {
		return fmt.Errorf("%w: probe: %w", ErrEngineNotReady, err)
	}

	r.binary = resolved
	r.version = strings.TrimSpace(string(stdout))
	r.logger.Debug("engine ready", "binary", resolved, "version", r.version)
	return nil
}

// Version returns the interpreter version string reported by Init.
func (r *Rscript) Version() string {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	return r.version
}

// LibraryDir returns the configured package library directory.
func (r *Rscript) LibraryDir() string {
	return r.cfg.LibraryDir
}

// Evaluate evaluates expr and decodes its value as a table.
func (r *Rscript) Evaluate(ctx context.Context, expr string) (*Value, error) {
	stdout, _, err := r.run(ctx, "", tableScript(expr))
	if err != nil {
		return nil, err
	}
	return parseTable(string(stdout))
}

// InstallPackages installs names into the library directory and verifies
// that every one of them is loadable afterwards.
func (r *Rscript) InstallPackages(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	lib := "NULL"
	if r.cfg.LibraryDir != "" {
		lib = QuoteString(r.cfg.LibraryDir)
	}
	script := `.fuzzyhelp_pkgs <- ` + StringVector(names) + `
utils::install.packages(.fuzzyhelp_pkgs, lib = ` + lib + `, repos = ` + StringVector(r.cfg.Repos) + `, quiet = TRUE)
.fuzzyhelp_missing <- setdiff(.fuzzyhelp_pkgs, rownames(utils::installed.packages()))
if (length(.fuzzyhelp_missing) > 0L) {
  message("packages not installed: ", paste(.fuzzyhelp_missing, collapse = ", "))
  quit(save = "no", status = 3L)
}
`
	r.logger.Debug("installing packages", "packages", names)
	if _, _, err := r.run(ctx, "", script); err != nil {
		return fmt.Errorf("install %s: %w", strings.Join(names, ", "), err)
	}
	return nil
}

// OpenContext creates a scoped context with a private working directory.
func (r *Rscript) OpenContext(ctx context.Context) (Context, error) {
	if err := r.Init(ctx); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "fuzzyhelp-ctx-*")
	if err != nil {
		return nil, fmt.Errorf("create evaluation context: %w", err)
	}
	return &rscriptContext{engine: r, dir: dir}, nil
}

// Capture evaluates expr in the context's working directory.
func (c *rscriptContext) Capture(ctx context.Context, expr string) ([]OutputLine, error) {
	if c.released.Load() {
		return nil, ErrContextReleased
	}
	stdout, stderr, err := c.engine.run(ctx, c.dir, expr)
	lines := append(splitOutput(stdout, StreamStdout), splitOutput(stderr, StreamStderr)...)
	return lines, err
}

// Release removes the context's working directory.
func (c *rscriptContext) Release() error {
	c.once.Do(func() {
		c.released.Store(true)
		if err := os.RemoveAll(c.dir); err != nil {
			c.err = fmt.Errorf("release evaluation context: %w", err)
		}
	})
	return c.err
}

// run waits for engine readiness and a free subprocess slot, then evaluates
// script with the library preamble.
func (r *Rscript) run(ctx context.Context, dir, script string) (stdout, stderr []byte, err error) {
	if err := r.Init(ctx); err != nil {
		return nil, nil, err
	}
	r.initMu.Lock()
	binary := r.binary
	r.initMu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("wait for engine: %w", err)
	}
	defer r.sem.Release(1)

	return r.exec(ctx, binary, dir, r.preamble()+script)
}

// exec runs a single Rscript subprocess and captures its output.
func (r *Rscript) exec(ctx context.Context, binary, dir, script string) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, rscriptArgs...), "-e", script)
	cmd := exec.CommandContext(ctx, binary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.WaitDelay = waitDelay

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	started := time.Now()
	runErr := cmd.Run()
	r.logger.Debug("rscript finished", "elapsed", time.Since(started), "err", runErr)

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return outBuf.Bytes(), errBuf.Bytes(), &EvalError{ExitCode: exitErr.ExitCode(), Stderr: errBuf.String()}
		}
		return outBuf.Bytes(), errBuf.Bytes(), fmt.Errorf("run %s: %w", binary, runErr)
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}

// preamble prepends the library directory to the search path.
func (r *Rscript) preamble() string {
	if r.cfg.LibraryDir == "" {
		return ""
	}
	return `local({
  lib <- ` + QuoteString(r.cfg.LibraryDir) + `
  if (dir.exists(lib)) .libPaths(c(lib, .libPaths()))
})
`
}

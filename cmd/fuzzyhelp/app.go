// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/invowk/fuzzyhelp/internal/catalog"
	"github.com/invowk/fuzzyhelp/internal/config"
	"github.com/invowk/fuzzyhelp/internal/engine"
	"github.com/invowk/fuzzyhelp/internal/helpdoc"
	"github.com/invowk/fuzzyhelp/internal/helptext"
	"github.com/invowk/fuzzyhelp/internal/install"
	"github.com/invowk/fuzzyhelp/internal/issue"
	"github.com/invowk/fuzzyhelp/internal/metrics"
	"github.com/invowk/fuzzyhelp/internal/session"
	"github.com/invowk/fuzzyhelp/internal/tui"
)

type (
	// App is the composition root of the CLI. Command handlers receive it and
	// build the session through Start.
	App struct {
		Config   config.Provider
		engine   engine.Engine
		terminal func() Terminal
		stdout   io.Writer
		stderr   io.Writer

		configPath string
		verbose    bool
	}

	// Dependencies are the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		// Engine replaces the Rscript engine built from configuration.
		Engine engine.Engine
		// Terminal describes the controlling terminal.
		Terminal func() Terminal
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// Terminal describes where the CLI is running.
	Terminal struct {
		// Interactive is set when both stdin and stdout are terminals.
		Interactive bool
		// Width is the stdout column count; 0 when unknown.
		Width int
	}

	// Runtime is a started session and everything built around it.
	Runtime struct {
		Config  *config.Config
		Logger  *log.Logger
		Metrics *metrics.Recorder
		Gate    *install.Gate
		Session *session.Session
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Terminal == nil {
		deps.Terminal = detectTerminal
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		Config:   deps.Config,
		engine:   deps.Engine,
		terminal: deps.Terminal,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
}

func detectTerminal() Terminal {
	return Terminal{
		Interactive: tui.IsTerminal(os.Stdin) && tui.IsTerminal(os.Stdout),
		Width:       tui.Width(os.Stdout),
	}
}

// LoadConfig loads configuration honoring the --config flag.
func (a *App) LoadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
}

// Verbose reports whether debug logging and error chains are enabled.
func (a *App) Verbose(cfg *config.Config) bool {
	return a.verbose || (cfg != nil && cfg.UI.Verbose)
}

// Start loads configuration, builds the engine, gate, builder, resolver and
// session, and starts the session. Log output goes to logOut.
func (a *App) Start(ctx context.Context, logOut io.Writer) (*Runtime, error) {
	cfg, err := a.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	applyColorScheme(cfg.UI.ColorScheme)

	logger := newLogger(logOut, a.Verbose(cfg))
	rec := metrics.New(nil)

	eng := a.engine
	if eng == nil {
		eng = engine.NewRscript(engine.RscriptConfig{
			Binary:        cfg.Engine.Rscript,
			LibraryDir:    cfg.Engine.LibraryDir,
			Repos:         cfg.Engine.Repos,
			MaxConcurrent: cfg.Engine.MaxConcurrent,
			Timeout:       cfg.Engine.Timeout,
			Logger:        logger.WithPrefix("engine"),
		})
	}

	gate := install.NewGate(eng,
		install.WithRetryFailed(cfg.Install.RetryFailed),
		install.WithObserver(rec),
		install.WithLogger(logger.WithPrefix("gate")),
	)
	sess := session.New(session.Dependencies{
		Engine:  eng,
		Gate:    gate,
		Builder: catalog.NewBuilder(eng, gate, catalog.WithLogger(logger.WithPrefix("catalog"))),
		Resolver: helpdoc.NewResolver(eng, gate,
			helpdoc.WithCacheSize(cfg.Cache.Size),
			helpdoc.WithObserver(rec),
			helpdoc.WithLogger(logger.WithPrefix("helpdoc")),
		),
	},
		session.WithSearchLimit(cfg.Search.Limit),
		session.WithObserver(rec),
		session.WithLogger(logger.WithPrefix("session")),
	)

	if err := sess.Start(ctx); err != nil {
		return nil, startError(cfg, err)
	}

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: rec,
		Gate:    gate,
		Session: sess,
	}, nil
}

// Renderer returns a help text renderer for output that is, or is not, a
// terminal.
func (rt *Runtime) Renderer(interactive bool) *helptext.Renderer {
	style := helptext.StylePlain
	if interactive {
		switch rt.Config.UI.ColorScheme {
		case config.ColorSchemeDark:
			style = helptext.StyleDark
		case config.ColorSchemeLight:
			style = helptext.StyleLight
		default:
			style = helptext.StyleAuto
		}
	}
	return helptext.NewRenderer(
		helptext.WithStyle(style),
		helptext.WithLogger(rt.Logger.WithPrefix("helptext")),
	)
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "fuzzyhelp",
		ReportTimestamp: true,
		Level:           level,
	})
}

func applyColorScheme(scheme config.ColorScheme) {
	switch scheme {
	case config.ColorSchemeDark:
		lipgloss.SetHasDarkBackground(true)
	case config.ColorSchemeLight:
		lipgloss.SetHasDarkBackground(false)
	}
}

func startError(cfg *config.Config, err error) error {
	if errors.Is(err, engine.ErrEngineNotReady) {
		binary := cfg.Engine.Rscript
		if binary == "" {
			binary = "Rscript"
		}
		return issue.NewErrorContext().
			WithOperation("start R").
			WithResource(binary).
			WithSuggestion("Install R from https://cloud.r-project.org").
			WithSuggestion("Set engine.rscript in config.cue or FUZZYHELP_ENGINE_RSCRIPT to the Rscript path").
			WithIssue(issue.RscriptNotFoundId).
			Wrap(err).
			BuildError()
	}
	return issue.NewErrorContext().
		WithOperation("build help catalog").
		WithSuggestion("Run with --verbose to see the R error output").
		WithIssue(issue.CatalogBuildFailedId).
		Wrap(fmt.Errorf("start session: %w", err)).
		BuildError()
}

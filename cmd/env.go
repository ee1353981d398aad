package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zjrosen/lumen/internal/cachemanager"
	"github.com/zjrosen/lumen/internal/config"
	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/highlight"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/syntaxset"
	"github.com/zjrosen/lumen/internal/theme"
	"github.com/zjrosen/lumen/internal/tracing"
)

const tracerName = "github.com/zjrosen/lumen/cmd"

// env is the grammar registry and theme a command highlights with.
type env struct {
	app *app
	set *syntaxset.Set

	mu sync.RWMutex
	th *theme.Theme
}

// loadEnv builds the syntax set and theme from the configuration. Grammar
// directories that fail to load are reported to stderr and skipped; an
// explicit --grammar or theme that fails is an error.
func (a *app) loadEnv(ctx context.Context, stderr io.Writer) (*env, error) {
	set, warnings, err := a.newSet(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(stderr, "lumen: warning: %v\n", w)
	}

	th, err := a.loadTheme(ctx)
	if err != nil {
		set.Close()
		return nil, err
	}
	return &env{app: a, set: set, th: th}, nil
}

// newSet returns the configured syntax set and the load errors of the
// grammar directories.
func (a *app) newSet(ctx context.Context) (*syntaxset.Set, []error, error) {
	cfg := a.cfg
	ttl := cfg.Cache.TTL
	if ttl == 0 {
		ttl = cachemanager.NoExpiration
	}
	set := syntaxset.New(
		syntaxset.WithBuiltins(cfg.BuiltinGrammars),
		syntaxset.WithFileTypes(cfg.FileTypes),
		syntaxset.WithCache(ttl, cfg.Cache.CleanupInterval),
		syntaxset.WithBuildOptions(
			parser.WithRegexTimeout(cfg.RegexTimeout),
			parser.WithMaxIncludeDepth(cfg.MaxIncludeDepth),
		),
	)

	var warnings []error
	for _, dir := range cfg.GrammarDirs {
		dir = config.ExpandHome(dir)
		if dir == "" || !fileExists(dir) {
			log.Debug(log.CatSyntax, "grammar directory missing", "dir", dir)
			continue
		}
		if _, err := set.LoadDir(ctx, dir); err != nil {
			warnings = append(warnings, err)
		}
	}

	for _, g := range a.grammars {
		g = config.ExpandHome(g)
		info, err := os.Stat(g)
		if err != nil {
			set.Close()
			return nil, nil, fmt.Errorf("grammar: %w", err)
		}
		if info.IsDir() {
			_, err = set.LoadDir(ctx, g)
		} else {
			_, err = set.LoadFile(ctx, g)
		}
		if err != nil {
			set.Close()
			return nil, nil, err
		}
	}
	return set, warnings, nil
}

// themeRef is the --theme flag, else theme.path, else theme.preset.
func (a *app) themeRef() string {
	switch {
	case a.themeFlag != "":
		return a.themeFlag
	case a.cfg.Theme.Path != "":
		return a.cfg.Theme.Path
	default:
		return a.cfg.Theme.Preset
	}
}

// themeFile returns the theme file in use, or "" for a preset.
func (a *app) themeFile() string {
	ref := a.themeRef()
	if !isThemeFile(ref) {
		return ""
	}
	return config.ExpandHome(ref)
}

func isThemeFile(ref string) bool {
	if strings.ContainsRune(ref, filepath.Separator) || strings.HasPrefix(ref, "~") {
		return true
	}
	_, err := grammar.FormatForPath(ref)
	return err == nil
}

func (a *app) loadTheme(ctx context.Context) (*theme.Theme, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, tracing.SpanThemeLoad)
	defer span.End()

	th, err := a.decodeTheme()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String(tracing.AttrTheme, th.Name))
	for _, w := range th.Warnings {
		log.Warn(log.CatTheme, "theme entry skipped", "theme", th.Name, "entry", w)
	}
	return th, nil
}

func (a *app) decodeTheme() (*theme.Theme, error) {
	var (
		th  *theme.Theme
		err error
	)
	if path := a.themeFile(); path != "" {
		th, err = theme.Load(path)
	} else {
		th, err = theme.Preset(a.themeRef())
	}
	if err != nil {
		return nil, fmt.Errorf("loading theme: %w", err)
	}

	overrides := a.cfg.Theme.FlattenedColors()
	if len(overrides) == 0 {
		return th, nil
	}
	th, err = theme.WithOverrides(th, overrides)
	if err != nil {
		return nil, fmt.Errorf("theme: %w", err)
	}
	return th, nil
}

func (e *env) theme() *theme.Theme {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.th
}

func (e *env) close() { e.set.Close() }

// syntaxFor picks the grammar for a document: the forced scope name, or by
// file name and first line.
func (e *env) syntaxFor(forced, path, text string) (*grammar.Syntax, error) {
	if forced != "" {
		return e.set.FindByScope(forced)
	}
	first, _, _ := strings.Cut(text, "\n")
	return e.set.ForFile(path, strings.TrimSuffix(first, "\r"))
}

func (e *env) parserFor(ctx context.Context, forced, path, text string) (*parser.Parser, error) {
	syn, err := e.syntaxFor(forced, path, text)
	if err != nil {
		return nil, err
	}
	return e.set.Parser(ctx, syn.ScopeName.String())
}

// reload re-reads the grammars and the theme. A theme that no longer loads
// keeps the previous one.
func (e *env) reload(ctx context.Context) error {
	var errs []error
	if err := e.set.Reload(ctx); err != nil {
		errs = append(errs, err)
	}
	th, err := e.app.loadTheme(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		e.mu.Lock()
		e.th = th
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

// loader returns the parser and highlighter for a document, looked up again
// on every call so reloads are picked up.
func (e *env) loader(forced, path, text string) func(ctx context.Context) (*parser.Parser, *highlight.Highlighter, error) {
	return func(ctx context.Context) (*parser.Parser, *highlight.Highlighter, error) {
		p, err := e.parserFor(ctx, forced, path, text)
		if err != nil {
			return nil, nil, err
		}
		return p, highlight.New(e.theme()), nil
	}
}

// watchPaths are the definition files a pager reloads on.
func (e *env) watchPaths() []string {
	paths := append(e.set.Dirs(), e.set.Files()...)
	if f := e.app.themeFile(); f != "" {
		paths = append(paths, f)
	}
	return paths
}

// Package syntaxset is the grammar registry: it loads grammar files from
// directories, associates them with file types and first lines, and hands
// out compiled parsers through a cache.
package syntaxset

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zjrosen/lumen/internal/cachemanager"
	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/pubsub"
	"github.com/zjrosen/lumen/internal/tracing"
)

const tracerName = "github.com/zjrosen/lumen/internal/syntaxset"

// ErrNoSyntax is returned when no grammar matches a lookup.
var ErrNoSyntax = errors.New("no syntax")

//go:embed builtin
var builtinFS embed.FS

// Event is the payload published after a reload.
type Event struct {
	// Scopes lists the scope names known after the reload.
	Scopes []string
	// Err is set on FailedEvent.
	Err error
}

type entry struct {
	syntax    *grammar.Syntax
	path      string // empty for built-in and programmatically added grammars
	firstLine *regexp2.Regexp
}

// Set is safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	dirs     []string
	files    []string
	builtins bool

	fileTypes map[string]string // extension or base name -> scope name
	buildOpts []parser.Option
	ttl       time.Duration

	parsers *cachemanager.ReadThroughCache[string, *parser.Parser, *grammar.Syntax]
	broker  *pubsub.Broker[Event]
}

// Option configures a Set.
type Option func(*Set)

// WithBuildOptions passes options to parser.Build for every grammar.
func WithBuildOptions(opts ...parser.Option) Option {
	return func(s *Set) { s.buildOpts = append(s.buildOpts, opts...) }
}

// WithCache sets how long compiled parsers stay cached and how often
// expired ones are purged. A ttl of cachemanager.NoExpiration keeps them
// until the next reload.
func WithCache(ttl, cleanupInterval time.Duration) Option {
	return func(s *Set) {
		s.ttl = ttl
		s.parsers = newParserCache(s, ttl, cleanupInterval)
	}
}

// WithFileTypes maps file extensions (without the dot) or base names to
// scope names. These win over a grammar's own fileTypes.
func WithFileTypes(m map[string]string) Option {
	return func(s *Set) {
		for k, v := range m {
			s.fileTypes[normalizeFileType(k)] = v
		}
	}
}

// WithBuiltins controls whether the embedded grammars are registered.
func WithBuiltins(on bool) Option {
	return func(s *Set) { s.builtins = on }
}

// New returns a Set holding the built-in grammars.
func New(opts ...Option) *Set {
	s := &Set{
		entries:   make(map[string]*entry),
		builtins:  true,
		fileTypes: make(map[string]string),
		ttl:       cachemanager.NoExpiration,
		broker:    pubsub.NewBroker[Event](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parsers == nil {
		s.parsers = newParserCache(s, s.ttl, cachemanager.DefaultCleanupInterval)
	}
	if s.builtins {
		if err := s.loadBuiltins(); err != nil {
			log.ErrorErr(log.CatSyntax, "loading built-in grammars", err)
		}
	}
	return s
}

func newParserCache(s *Set, ttl, cleanup time.Duration) *cachemanager.ReadThroughCache[string, *parser.Parser, *grammar.Syntax] {
	mgr := cachemanager.NewInMemoryCacheManager[string, *parser.Parser]("parsers", ttl, cleanup)
	return cachemanager.NewReadThroughCache(mgr, s.build, false)
}

func (s *Set) build(ctx context.Context, syn *grammar.Syntax) (*parser.Parser, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, tracing.SpanGrammarBuild)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrGrammar, syn.ScopeName.String()))

	p, err := parser.Build(syn, s.buildOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("building %s: %w", syn.ScopeName, err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrContexts, p.Len()))
	return p, nil
}

// Subscribe returns reload events accepted by filters until ctx is done.
func (s *Set) Subscribe(ctx context.Context, filters ...pubsub.Filter[Event]) <-chan pubsub.Event[Event] {
	return s.broker.Subscribe(ctx, filters...)
}

// Close releases subscribers.
func (s *Set) Close() {
	s.broker.Close()
}

// Add registers syn. A grammar with the same scope name is replaced and its
// cached parser dropped.
func (s *Set) Add(syn *grammar.Syntax) error {
	return s.add(syn, "")
}

func (s *Set) add(syn *grammar.Syntax, path string) error {
	if syn == nil || syn.ScopeName.IsZero() {
		return fmt.Errorf("%w: grammar has no scope name", grammar.ErrMissingField)
	}
	e := &entry{syntax: syn, path: path}
	if syn.FirstLineMatch != "" {
		re, err := regexp2.Compile(syn.FirstLineMatch, regexp2.None)
		if err != nil {
			return &grammar.FieldError{Path: "firstLineMatch", Err: fmt.Errorf("%w: %v", grammar.ErrInvalidRegex, err)}
		}
		re.MatchTimeout = parser.DefaultRegexTimeout
		e.firstLine = re
	}

	key := syn.ScopeName.String()
	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		log.Debug(log.CatSyntax, "replacing grammar", "scope", key, "old", old.path, "new", path)
	}
	s.entries[key] = e
	s.mu.Unlock()

	if err := s.parsers.Invalidate(context.Background(), key); err != nil {
		log.Warn(log.CatSyntax, "invalidating parser", "scope", key, "error", err)
	}
	return nil
}

// LoadFile decodes and registers one grammar file and remembers it for
// Reload.
func (s *Set) LoadFile(ctx context.Context, path string) (*grammar.Syntax, error) {
	s.mu.Lock()
	if !slices.Contains(s.files, path) {
		s.files = append(s.files, path)
	}
	s.mu.Unlock()

	return s.loadFile(ctx, path)
}

func (s *Set) loadFile(ctx context.Context, path string) (*grammar.Syntax, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, tracing.SpanGrammarLoad)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrPath, path))

	syn, err := grammar.Load(path)
	if err == nil {
		err = s.add(syn, path)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	span.SetAttributes(attribute.String(tracing.AttrGrammar, syn.ScopeName.String()))
	return syn, nil
}

// LoadDir registers every grammar file under dir and remembers dir for
// Reload. Files that fail to load are skipped; their errors are joined into
// the returned error. The count is the number of grammars loaded.
func (s *Set) LoadDir(ctx context.Context, dir string) (int, error) {
	s.mu.Lock()
	if !slices.Contains(s.dirs, dir) {
		s.dirs = append(s.dirs, dir)
	}
	s.mu.Unlock()

	return s.loadDir(ctx, dir)
}

func (s *Set) loadDir(ctx context.Context, dir string) (int, error) {
	var (
		n    int
		errs []error
	)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !grammar.IsGrammarFile(path) {
			return nil
		}
		if _, err := s.loadFile(ctx, path); err != nil {
			log.Warn(log.CatSyntax, "skipping grammar", "path", path, "error", err)
			errs = append(errs, err)
			return nil
		}
		n++
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walking %s: %w", dir, walkErr))
	}
	log.Debug(log.CatSyntax, "loaded grammar directory", "dir", dir, "count", n, "errors", len(errs))
	return n, errors.Join(errs...)
}

func (s *Set) loadBuiltins() error {
	return fs.WalkDir(builtinFS, "builtin", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !grammar.IsGrammarFile(path) {
			return err
		}
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return err
		}
		format, err := grammar.FormatForPath(path)
		if err != nil {
			return err
		}
		syn, err := grammar.Parse(data, format)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return s.add(syn, "")
	})
}

// Reload forgets every grammar and cached parser, then loads the built-in
// grammars and every path passed to LoadDir or LoadFile again. Subscribers
// get an UpdatedEvent, or a FailedEvent when any file failed to load.
func (s *Set) Reload(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, tracing.SpanSyntaxReload)
	defer span.End()

	s.mu.Lock()
	s.entries = make(map[string]*entry)
	dirs := slices.Clone(s.dirs)
	files := slices.Clone(s.files)
	s.mu.Unlock()
	if err := s.parsers.Reset(ctx); err != nil {
		log.Warn(log.CatSyntax, "resetting parser cache", "error", err)
	}

	var errs []error
	if s.builtins {
		if err := s.loadBuiltins(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, dir := range dirs {
		if _, err := s.loadDir(ctx, dir); err != nil {
			errs = append(errs, err)
		}
	}
	for _, file := range files {
		if _, err := s.loadFile(ctx, file); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	scopes := s.Scopes()
	span.SetAttributes(attribute.Int(tracing.AttrCount, len(scopes)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn(log.CatSyntax, "reload finished with errors", "scopes", len(scopes), "error", err)
		s.broker.Publish(pubsub.FailedEvent, Event{Scopes: scopes, Err: err})
		return err
	}
	log.Info(log.CatSyntax, "reloaded grammars", "scopes", len(scopes))
	s.broker.Publish(pubsub.UpdatedEvent, Event{Scopes: scopes})
	return nil
}

// Dirs returns the directories registered with LoadDir.
func (s *Set) Dirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.dirs)
}

// Files returns the files registered with LoadFile.
func (s *Set) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.files)
}

// Scopes returns the registered scope names in sorted order.
func (s *Set) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Syntaxes returns the registered grammars ordered by scope name, hidden
// ones included.
func (s *Set) Syntaxes() []*grammar.Syntax {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*grammar.Syntax, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.syntax)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScopeName.String() < out[j].ScopeName.String()
	})
	return out
}

// FindByScope returns the grammar registered under scopeName.
func (s *Set) FindByScope(scopeName string) (*grammar.Syntax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[strings.ToLower(strings.TrimSpace(scopeName))]
	if !ok {
		return nil, fmt.Errorf("%w: scope %q", ErrNoSyntax, scopeName)
	}
	return e.syntax, nil
}

// FindByExtension finds a grammar for a file name. Configured file types are
// consulted first, then each grammar's fileTypes; both match either the
// full base name ("Makefile") or the extension ("go").
func (s *Set) FindByExtension(name string) (*grammar.Syntax, error) {
	base := strings.ToLower(filepath.Base(name))
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	candidates := []string{base}
	if ext != "" && ext != base {
		candidates = append(candidates, ext)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range candidates {
		if scopeName, ok := s.fileTypes[c]; ok {
			if e, ok := s.entries[scopeName]; ok {
				return e.syntax, nil
			}
			log.Warn(log.CatSyntax, "file type maps to unknown scope", "file_type", c, "scope", scopeName)
		}
	}
	for _, c := range candidates {
		for _, e := range s.sortedEntries() {
			for _, ft := range e.syntax.FileTypes {
				if normalizeFileType(ft) == c {
					return e.syntax, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: file %q", ErrNoSyntax, filepath.Base(name))
}

// FindByFirstLine finds a grammar whose firstLineMatch matches line.
func (s *Set) FindByFirstLine(line string) (*grammar.Syntax, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.sortedEntries() {
		if e.firstLine == nil {
			continue
		}
		ok, err := e.firstLine.MatchString(line)
		if err != nil {
			log.Warn(log.CatSyntax, "first line match failed", "scope", e.syntax.ScopeName, "error", err)
			continue
		}
		if ok {
			return e.syntax, nil
		}
	}
	return nil, fmt.Errorf("%w: first line", ErrNoSyntax)
}

// ForFile picks a grammar by file name, then by first line.
func (s *Set) ForFile(path, firstLine string) (*grammar.Syntax, error) {
	if syn, err := s.FindByExtension(path); err == nil {
		return syn, nil
	}
	if firstLine != "" {
		if syn, err := s.FindByFirstLine(firstLine); err == nil {
			return syn, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSyntax, filepath.Base(path))
}

// DetectFile reads the first line of path and calls ForFile.
func (s *Set) DetectFile(path string) (*grammar.Syntax, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the file being highlighted
	if err != nil {
		return nil, err
	}
	first, _, _ := strings.Cut(string(data), "\n")
	return s.ForFile(path, strings.TrimSuffix(first, "\r"))
}

// Parser returns the compiled parser for scopeName, building it on first
// use.
func (s *Set) Parser(ctx context.Context, scopeName string) (*parser.Parser, error) {
	syn, err := s.FindByScope(scopeName)
	if err != nil {
		return nil, err
	}
	return s.parsers.GetWithRefresh(ctx, syn.ScopeName.String(), syn, s.ttl)
}

// sortedEntries must be called with mu held.
func (s *Set) sortedEntries() []*entry {
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].syntax.ScopeName.String() < out[j].syntax.ScopeName.String()
	})
	return out
}

func normalizeFileType(ft string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ft)), ".")
}

// Package watcher reports debounced changes to grammar directories and
// theme files.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/log"
)

// Change lists the files touched during one debounce window.
type Change struct {
	Paths []string
}

// Watcher monitors definition files and sends a Change once writes settle.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]bool // watched individual files, cleaned
	dirs      map[string]bool // watched grammar directories, cleaned
	debounce  time.Duration
	onChange  chan Change
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Paths are grammar directories or individual grammar/theme files.
	Paths       []string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:       paths,
		DebounceDur: 300 * time.Millisecond,
	}
}

// New creates a watcher. Paths must exist.
func New(cfg Config) (*Watcher, error) {
	w := &Watcher{
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		debounce: cfg.DebounceDur,
		onChange: make(chan Change, 1),
		done:     make(chan struct{}),
	}
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
		if info.IsDir() {
			w.dirs[abs] = true
		} else {
			w.files[abs] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.fsWatcher = fsw
	return w, nil
}

// Start begins watching. Individual files are watched through their
// directory so that editors replacing the file by rename are noticed.
func (w *Watcher) Start() (<-chan Change, error) {
	added := make(map[string]bool)
	add := func(dir string) error {
		if added[dir] {
			return nil
		}
		added[dir] = true
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
		return nil
	}
	for dir := range w.dirs {
		if err := add(dir); err != nil {
			return nil, err
		}
	}
	for file := range w.files {
		if err := add(filepath.Dir(file)); err != nil {
			return nil, err
		}
	}
	log.Debug(log.CatWatcher, "watching", "dirs", len(added), "files", len(w.files))

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending = make(map[string]bool)
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if len(pending) == 0 {
				continue
			}
			change := Change{Paths: make([]string, 0, len(pending))}
			for p := range pending {
				change.Paths = append(change.Paths, p)
			}
			sort.Strings(change.Paths)
			pending = make(map[string]bool)

			// Drop the change if the previous one is still unread; the
			// receiver reloads everything anyway.
			select {
			case w.onChange <- change:
				log.Debug(log.CatWatcher, "definitions changed", "paths", change.Paths)
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether event touches a watched file, or a
// grammar file inside a watched directory.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if w.files[name] {
		return true
	}
	return w.dirs[filepath.Dir(name)] && grammar.IsGrammarFile(name)
}

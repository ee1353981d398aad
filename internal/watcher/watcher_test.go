package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lumen/internal/watcher"
)

func start(t *testing.T, paths ...string) <-chan watcher.Change {
	t.Helper()
	w, err := watcher.New(watcher.Config{
		Paths:       paths,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func expectChange(t *testing.T, ch <-chan watcher.Change) watcher.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
		return watcher.Change{}
	}
}

func expectQuiet(t *testing.T, ch <-chan watcher.Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected notification: %v", c.Paths)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	themePath := filepath.Join(dir, "theme.yaml")
	require.NoError(t, os.WriteFile(themePath, []byte("name: a"), 0o644))

	onChange := start(t, themePath)

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(themePath, []byte(fmt.Sprintf("name: t%d", i)), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	c := expectChange(t, onChange)
	want, err := filepath.Abs(themePath)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, c.Paths)

	expectQuiet(t, onChange)
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	themePath := filepath.Join(dir, "theme.yaml")
	otherPath := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(themePath, []byte("name: a"), 0o644))
	require.NoError(t, os.WriteFile(otherPath, []byte("initial"), 0o644))

	onChange := start(t, themePath)

	require.NoError(t, os.WriteFile(otherPath, []byte("other content"), 0o644))
	expectQuiet(t, onChange)
}

func TestWatcher_GrammarDirectory(t *testing.T) {
	dir := t.TempDir()
	onChange := start(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644))
	expectQuiet(t, onChange)

	grammarPath := filepath.Join(dir, "toy.tmLanguage.json")
	require.NoError(t, os.WriteFile(grammarPath, []byte(`{}`), 0o644))
	c := expectChange(t, onChange)
	want, err := filepath.Abs(grammarPath)
	require.NoError(t, err)
	assert.Equal(t, []string{want}, c.Paths)

	require.NoError(t, os.Remove(grammarPath))
	c = expectChange(t, onChange)
	assert.Equal(t, []string{want}, c.Paths)
}

func TestWatcher_MissingPath(t *testing.T) {
	_, err := watcher.New(watcher.Config{Paths: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	w, err := watcher.New(watcher.DefaultConfig(dir))
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Stop should not hang or panic
	done := make(chan struct{})
	go func() {
		err := w.Stop()
		assert.NoError(t, err, "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

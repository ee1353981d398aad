package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestSavePreset_CreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, SavePreset(path, "dracula"))

	cfg := load(t, path)
	require.Equal(t, "dracula", cfg.Theme.Preset)
	require.Empty(t, cfg.Theme.Path)
}

func TestSavePreset_PreservesOtherConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# my settings
tab_width: 8 # wide tabs
theme:
  path: ~/themes/Monokai.tmTheme
  colors:
    comment: "#888888"
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o600))

	require.NoError(t, SavePreset(path, "nord"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# my settings")
	require.Contains(t, string(data), "# wide tabs")
	require.NotContains(t, string(data), "Monokai")

	cfg := load(t, path)
	require.Equal(t, 8, cfg.TabWidth)
	require.Equal(t, "nord", cfg.Theme.Preset)
	require.Empty(t, cfg.Theme.Path)
	require.Equal(t, map[string]string{"comment": "#888888"}, cfg.Theme.FlattenedColors())
}

func TestSaveValues_ReplacesScalarKeepingComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme:\n  preset: default # the usual\n"), 0o600))

	require.NoError(t, SaveValues(path, map[string]string{"theme.preset": "nord", "watch": "true"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "preset: nord # the usual")

	cfg := load(t, path)
	require.True(t, cfg.Watch)
}

func TestSaveValues_NullSectionBecomesMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme:\n"), 0o600))

	require.NoError(t, SavePreset(path, "nord"))
	require.Equal(t, "nord", load(t, path).Theme.Preset)
}

func TestSaveValues_Errors(t *testing.T) {
	dir := t.TempDir()

	scalar := filepath.Join(dir, "scalar.yaml")
	require.NoError(t, os.WriteFile(scalar, []byte("theme: dracula\n"), 0o600))
	err := SavePreset(scalar, "nord")
	require.Error(t, err)
	require.Contains(t, err.Error(), "theme is not a mapping")

	list := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(list, []byte("- a\n- b\n"), 0o600))
	err = SavePreset(list, "nord")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a mapping")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("theme: [\n"), 0o600))
	err = SavePreset(bad, "nord")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing config")
}

func TestSaveValues_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SavePreset(path, "nord"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".lumen.yaml.tmp"), "temp file left behind: %s", e.Name())
	}
}

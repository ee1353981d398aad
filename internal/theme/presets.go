package theme

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/zjrosen/lumen/internal/grammar"
)

// ErrUnknownPreset is returned for a preset name that is not built in.
var ErrUnknownPreset = errors.New("unknown theme preset")

// DefaultPreset is the theme used when none is configured.
const DefaultPreset = "default"

//go:embed presets/*.yaml
var presetFS embed.FS

// Presets returns the names of the built-in themes, sorted.
func Presets() []string {
	entries, err := fs.ReadDir(presetFS, "presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Preset decodes a built-in theme.
func Preset(name string) (*Theme, error) {
	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return Parse(data, grammar.FormatYAML)
}

package theme

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/scope"
)

// globalKeys maps lowercased override keys to TextMate setting names;
// config loaders lowercase map keys.
var globalKeys = map[string]string{
	"foreground":       "foreground",
	"background":       "background",
	"caret":            "caret",
	"linehighlight":    "lineHighlight",
	"selection":        "selection",
	"gutter":           "gutter",
	"gutterforeground": "gutterForeground",
}

// WithOverrides returns a copy of base with user overrides applied. Keys
// naming a global setting ("foreground", "lineHighlight", ...) replace that
// color; any other key is a scope selector whose value becomes a rule after
// every theme rule. Values are a color optionally followed by font style
// words: "#ff5555 bold italic". base is not modified.
func WithOverrides(base *Theme, overrides map[string]string) (*Theme, error) {
	t := *base
	t.Rules = append([]Rule(nil), base.Rules...)
	t.Warnings = append([]string(nil), base.Warnings...)
	t.Settings.Colors = maps.Clone(base.Settings.Colors)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := "colors." + key
		m, err := parseOverride(overrides[key])
		if err != nil {
			return nil, &grammar.FieldError{Path: path, Err: err}
		}

		if name, ok := globalKeys[strings.ToLower(key)]; ok {
			if m.Foreground == nil || m.FontStyle != nil {
				return nil, &grammar.FieldError{Path: path, Err: fmt.Errorf("%w: global settings take a single color", ErrInvalidColor)}
			}
			t.Settings.set(name, *m.Foreground)
			continue
		}

		sels, err := scope.ParseSelectors(key)
		if err != nil {
			return nil, &grammar.FieldError{Path: path, Err: err}
		}
		t.Rules = append(t.Rules, Rule{Name: "override " + key, Selectors: sels, Style: m})
	}
	return &t, nil
}

func parseOverride(v string) (StyleModifier, error) {
	var m StyleModifier
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return m, fmt.Errorf("%w: empty value", ErrInvalidColor)
	}
	if strings.HasPrefix(fields[0], "#") {
		c, err := ParseColor(fields[0])
		if err != nil {
			return m, err
		}
		m.Foreground = &c
		fields = fields[1:]
	}
	if len(fields) > 0 {
		fs, err := ParseFontStyle(strings.Join(fields, " "))
		if err != nil {
			return m, err
		}
		m.FontStyle = &fs
	}
	return m, nil
}

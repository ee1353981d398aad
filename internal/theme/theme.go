package theme

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/scope"
)

// Settings are a theme's global settings. Color keys without a dedicated
// field land in Colors; "*Options" keys land in Options.
type Settings struct {
	Foreground    *Color
	Background    *Color
	Caret         *Color
	LineHighlight *Color
	Selection     *Color
	Gutter        *Color
	GutterFg      *Color
	Colors        map[string]Color
	Options       map[string]string
}

// Rule styles every scope path matched by Selectors.
type Rule struct {
	Name      string
	Selectors scope.Selectors
	Style     StyleModifier
}

// Theme is a decoded color theme.
type Theme struct {
	Name     string
	Author   string
	UUID     string
	Settings Settings
	Rules    []Rule
	// Warnings lists the rule entries that were skipped while decoding.
	Warnings []string
}

var (
	white = Color{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = Color{A: 0xff}
)

// Default returns the base style from the global settings.
func (t *Theme) Default() Style {
	s := Style{Foreground: white, Background: black}
	if bg := t.Settings.Background; bg != nil {
		s.Background = bg.Blend(black)
	}
	if fg := t.Settings.Foreground; fg != nil {
		s.Foreground = fg.Blend(s.Background)
	}
	return s
}

// Load reads and decodes the theme file at path.
func Load(path string) (*Theme, error) {
	format, err := grammar.FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: theme paths come from user config
	if err != nil {
		return nil, fmt.Errorf("reading theme: %w", err)
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes theme data in the given format.
func Parse(data []byte, format grammar.Format) (*Theme, error) {
	tree, err := grammar.DecodeTree(data, format)
	if err != nil {
		return nil, err
	}
	return Decode(tree)
}

type rawTheme struct {
	Name        string           `mapstructure:"name"`
	Author      string           `mapstructure:"author"`
	UUID        string           `mapstructure:"uuid"`
	Settings    []map[string]any `mapstructure:"settings"`
	TokenColors []map[string]any `mapstructure:"tokenColors"`
}

type rawRule struct {
	Name     string         `mapstructure:"name"`
	Scope    any            `mapstructure:"scope"`
	Settings map[string]any `mapstructure:"settings"`
}

// Decode builds a Theme from a generic settings tree. A missing global
// settings entry or a malformed global color is fatal; malformed rule
// entries and an unparsable uuid are skipped and recorded in Theme.Warnings.
func Decode(tree map[string]any) (*Theme, error) {
	var raw rawTheme
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, &grammar.FieldError{Path: "theme", Err: fmt.Errorf("%w: %v", grammar.ErrInvalidShape, err)}
	}

	items, key := raw.Settings, "settings"
	if len(items) == 0 && len(raw.TokenColors) > 0 {
		items, key = raw.TokenColors, "tokenColors"
	}

	t := &Theme{Name: raw.Name, Author: raw.Author}
	if raw.UUID != "" {
		id, err := uuid.Parse(raw.UUID)
		if err != nil {
			t.warn("uuid", err)
		} else {
			t.UUID = id.String()
		}
	}
	haveGlobals := false
	for i, item := range items {
		path := fmt.Sprintf("%s[%d]", key, i)

		var rr rawRule
		if err := mapstructure.WeakDecode(item, &rr); err != nil {
			t.warn(path, err)
			continue
		}

		if rr.Scope == nil {
			if haveGlobals {
				t.warn(path, errors.New("entry has no scope"))
				continue
			}
			settings, err := decodeGlobals(rr.Settings, path+".settings")
			if err != nil {
				return nil, err
			}
			t.Settings = settings
			haveGlobals = true
			continue
		}

		rule, err := decodeRule(rr)
		if err != nil {
			t.warn(path, err)
			continue
		}
		t.Rules = append(t.Rules, rule)
	}

	if !haveGlobals {
		return nil, &grammar.FieldError{Path: key, Err: ErrMissingGlobals}
	}
	log.Debug(log.CatTheme, "decoded theme", "name", t.Name, "rules", len(t.Rules), "skipped", len(t.Warnings))
	return t, nil
}

func (t *Theme) warn(path string, err error) {
	msg := fmt.Sprintf("%s: %v", path, err)
	t.Warnings = append(t.Warnings, msg)
	log.Warn(log.CatTheme, "skipping theme entry", "theme", t.Name, "entry", path, "error", err)
}

func decodeGlobals(raw map[string]any, path string) (Settings, error) {
	var s Settings
	for _, key := range sortedKeys(raw) {
		str, ok := raw[key].(string)
		if strings.HasSuffix(key, "Options") {
			if ok {
				if s.Options == nil {
					s.Options = make(map[string]string)
				}
				s.Options[key] = str
			}
			continue
		}
		if ok && strings.TrimSpace(str) == "" {
			continue
		}
		if !isColorKey(key) {
			if !ok || !strings.HasPrefix(strings.TrimSpace(str), "#") {
				log.Debug(log.CatTheme, "ignoring unknown global", "key", key)
				continue
			}
		}
		if !ok {
			return Settings{}, &grammar.FieldError{Path: path + "." + key, Err: fmt.Errorf("%w: %v is not a string", ErrInvalidColor, raw[key])}
		}

		c, err := ParseColor(str)
		if err != nil {
			return Settings{}, &grammar.FieldError{Path: path + "." + key, Err: err}
		}
		s.set(key, c)
	}
	return s, nil
}

// colorKeys and colorPrefixes name the global settings that hold a color.
var (
	colorKeys     = []string{"foreground", "background", "caret", "lineHighlight", "activeGuide", "stackGuide"}
	colorPrefixes = []string{"bracket", "tags", "findHighlight", "gutter", "selection", "guide", "highlight"}
)

func isColorKey(key string) bool {
	if slices.Contains(colorKeys, key) {
		return true
	}
	for _, p := range colorPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (s *Settings) set(key string, c Color) {
	switch key {
	case "foreground":
		s.Foreground = &c
	case "background":
		s.Background = &c
	case "caret":
		s.Caret = &c
	case "lineHighlight":
		s.LineHighlight = &c
	case "selection":
		s.Selection = &c
	case "gutter":
		s.Gutter = &c
	case "gutterForeground":
		s.GutterFg = &c
	default:
		if s.Colors == nil {
			s.Colors = make(map[string]Color)
		}
		s.Colors[key] = c
	}
}

func decodeRule(rr rawRule) (Rule, error) {
	var selector string
	switch v := rr.Scope.(type) {
	case string:
		selector = v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			s, ok := p.(string)
			if !ok {
				return Rule{}, fmt.Errorf("scope: %w", grammar.ErrInvalidShape)
			}
			parts = append(parts, s)
		}
		selector = strings.Join(parts, ",")
	default:
		return Rule{}, fmt.Errorf("scope: %w", grammar.ErrInvalidShape)
	}

	sels, err := scope.ParseSelectors(selector)
	if err != nil {
		return Rule{}, fmt.Errorf("scope: %w", err)
	}

	rule := Rule{Name: rr.Name, Selectors: sels}
	for _, key := range sortedKeys(rr.Settings) {
		str, ok := rr.Settings[key].(string)
		if !ok {
			continue
		}
		switch key {
		case "foreground":
			c, err := ParseColor(str)
			if err != nil {
				return Rule{}, fmt.Errorf("foreground: %w", err)
			}
			rule.Style.Foreground = &c
		case "background":
			c, err := ParseColor(str)
			if err != nil {
				return Rule{}, fmt.Errorf("background: %w", err)
			}
			rule.Style.Background = &c
		case "fontStyle":
			fs, err := ParseFontStyle(str)
			if err != nil {
				return Rule{}, fmt.Errorf("fontStyle: %w", err)
			}
			rule.Style.FontStyle = &fs
		}
	}
	return rule, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

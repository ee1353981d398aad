// Package config provides configuration types and defaults for lumen.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/scope"
	"github.com/zjrosen/lumen/internal/tracing"
)

// Config holds all configuration options for lumen.
type Config struct {
	Theme           ThemeConfig       `mapstructure:"theme"`
	GrammarDirs     []string          `mapstructure:"grammar_dirs"`
	BuiltinGrammars bool              `mapstructure:"builtin_grammars"`
	FileTypes       map[string]string `mapstructure:"file_types"` // extension or base name -> scope name
	TabWidth        int               `mapstructure:"tab_width"`
	ColorProfile    string            `mapstructure:"color_profile"` // "", "ascii", "ansi", "ansi256", "truecolor"
	LineNumbers     bool              `mapstructure:"line_numbers"`
	Background      bool              `mapstructure:"background"` // paint the theme background
	Watch           bool              `mapstructure:"watch"`
	RegexTimeout    time.Duration     `mapstructure:"regex_timeout"`
	MaxIncludeDepth int               `mapstructure:"max_include_depth"`
	Cache           CacheConfig       `mapstructure:"cache"`
	Tracing         tracing.Config    `mapstructure:"tracing"`
}

// ThemeConfig selects the color theme.
type ThemeConfig struct {
	// Preset names a built-in theme. Ignored when Path is set.
	// Valid values: "default", "catppuccin-mocha", "dracula", "nord"
	Preset string `mapstructure:"preset"`

	// Path is a .tmTheme, .json or .yaml theme file.
	Path string `mapstructure:"path"`

	// Colors overrides global settings or styles scope selectors.
	// Supports both nested YAML structure and dot notation.
	// Example YAML:
	//   colors:
	//     background: "#000000"
	//     string:
	//       quoted: "#FF0000 bold"
	// Or quoted dot notation:
	//   colors:
	//     "string.quoted": "#FF0000 bold"
	Colors map[string]any `mapstructure:"colors"`
}

// FlattenedColors returns the Colors map flattened to dot-notation keys.
// This handles both nested YAML structures and already-flat keys.
func (t ThemeConfig) FlattenedColors() map[string]string {
	result := make(map[string]string)
	flattenColors("", t.Colors, result)
	return result
}

// flattenColors recursively flattens a nested map into dot-notation keys.
func flattenColors(prefix string, m map[string]any, result map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case string:
			result[key] = val
		case map[string]any:
			flattenColors(key, val, result)
		case map[any]any:
			// YAML sometimes produces map[any]any instead of map[string]any
			converted := make(map[string]any)
			for mk, mv := range val {
				if strKey, ok := mk.(string); ok {
					converted[strKey] = mv
				}
			}
			flattenColors(key, converted, result)
		}
	}
}

// CacheConfig controls the compiled parser cache.
type CacheConfig struct {
	// TTL is how long an unused compiled parser is kept. 0 keeps parsers
	// until the grammars are reloaded.
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()
	return Config{
		Theme: ThemeConfig{
			Preset: "default",
		},
		GrammarDirs:     []string{DefaultGrammarDir()},
		BuiltinGrammars: true,
		TabWidth:        4,
		RegexTimeout:    250 * time.Millisecond,
		MaxIncludeDepth: 64,
		Cache: CacheConfig{
			TTL:             0,
			CleanupInterval: 30 * time.Minute,
		},
		Tracing: tr,
	}
}

// DefaultGrammarDir returns ~/.config/lumen/grammars or an empty string if
// the home directory is unavailable.
func DefaultGrammarDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lumen", "grammars")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/lumen/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lumen", "traces", "traces.jsonl")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Profile returns the terminal color profile to render with. An empty
// color_profile detects it from the environment.
func (c Config) Profile() termenv.Profile {
	p, err := ParseColorProfile(c.ColorProfile)
	if err != nil {
		log.Warn(log.CatConfig, "unknown color profile, detecting", "color_profile", c.ColorProfile)
		return termenv.EnvColorProfile()
	}
	return p
}

// ParseColorProfile maps a color_profile value to a termenv profile.
func ParseColorProfile(s string) (termenv.Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return termenv.EnvColorProfile(), nil
	case "ascii", "none":
		return termenv.Ascii, nil
	case "ansi", "16":
		return termenv.ANSI, nil
	case "ansi256", "256":
		return termenv.ANSI256, nil
	case "truecolor", "24bit":
		return termenv.TrueColor, nil
	default:
		return termenv.Ascii, fmt.Errorf("color_profile must be \"ascii\", \"ansi\", \"ansi256\" or \"truecolor\", got %q", s)
	}
}

// Validate checks the whole configuration and reports the first problem
// with its key.
func Validate(c Config) error {
	if c.TabWidth < 1 || c.TabWidth > 16 {
		return fmt.Errorf("tab_width must be between 1 and 16, got %d", c.TabWidth)
	}
	if _, err := ParseColorProfile(c.ColorProfile); err != nil {
		return err
	}
	if c.RegexTimeout <= 0 {
		return fmt.Errorf("regex_timeout must be positive, got %s", c.RegexTimeout)
	}
	if c.MaxIncludeDepth < 1 {
		return fmt.Errorf("max_include_depth must be at least 1, got %d", c.MaxIncludeDepth)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", c.Cache.CleanupInterval)
	}
	if err := ValidateFileTypes(c.FileTypes); err != nil {
		return err
	}
	if err := ValidateTheme(c.Theme); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateFileTypes checks that every file type maps to a valid scope name.
func ValidateFileTypes(m map[string]string) error {
	for ft, name := range m {
		if strings.TrimSpace(ft) == "" {
			return fmt.Errorf("file_types: empty file type")
		}
		if _, err := scope.New(name); err != nil {
			return fmt.Errorf("file_types.%s: %w", ft, err)
		}
	}
	return nil
}

// ValidateTheme checks theme configuration. Color values are checked when
// the theme is built, since they depend on the theme's own keys.
func ValidateTheme(t ThemeConfig) error {
	if t.Preset == "" && t.Path == "" {
		return fmt.Errorf("theme.preset or theme.path is required")
	}
	for key, v := range t.FlattenedColors() {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("theme.colors.%s: empty value", key)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tr tracing.Config) error {
	// Validate SampleRate is in range [0.0, 1.0]
	if tr.SampleRate < 0.0 || tr.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tr.SampleRate)
	}

	if tr.Exporter != "" {
		switch tr.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tr.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tr.Enabled {
		if tr.Exporter == "file" && tr.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tr.Exporter == "otlp" && tr.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Lumen Configuration

# Color theme
theme:
  # Built-in preset (run 'lumen themes' to see available presets):
  #   default           - Dark theme with muted colors
  #   catppuccin-mocha  - Warm, cozy dark theme
  #   dracula           - Dark theme with vibrant colors
  #   nord              - Arctic, north-bluish palette
  preset: default

  # Or load a TextMate theme file (.tmTheme, .json, .yaml); wins over preset
  # path: ~/.config/lumen/themes/Monokai.tmTheme

  # Override global colors or style scope selectors:
  # colors:
  #   background: "#000000"
  #   comment: "#6272a4 italic"
  #   "string.quoted": "#f1fa8c"

# Directories searched for *.tmLanguage, *.tmLanguage.json and
# *.tmLanguage.yaml grammars
grammar_dirs:
  - ~/.config/lumen/grammars

# Register the grammars shipped with lumen (JSON, Go)
builtin_grammars: true

# Map file extensions or base names to grammar scope names
# file_types:
#   jsonl: source.json
#   Jenkinsfile: source.groovy

# Rendering
tab_width: 4
line_numbers: false
background: false      # Paint the theme background color
# color_profile: truecolor  # ascii, ansi, ansi256 or truecolor (default: detect)

# Reload grammars and theme when their files change (lumen view)
watch: false

# Parser limits
regex_timeout: 250ms   # Per-match regex time limit
max_include_depth: 64  # Maximum nesting of grammar includes

# Compiled parser cache
cache:
  ttl: 0               # 0 keeps parsers until grammars are reloaded
  cleanup_interval: 30m

# Distributed tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/lumen/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

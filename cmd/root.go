package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/lumen/internal/config"
	"github.com/zjrosen/lumen/internal/highlight"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/tracing"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply does not land in the pager's input.
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var version = "dev"

// app holds the flags and loaded configuration shared by every command.
type app struct {
	cfgFile     string
	debugPath   string
	logLevel    string
	themeFlag   string
	grammars    []string
	syntax      string
	lineNumbers bool // bound through viper as line_numbers
	width       int
	wrap        bool

	cfg        config.Config
	configPath string
	provider   *tracing.Provider
	closeLog   func()
}

// NewRootCmd builds the lumen command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "lumen [file]",
		Short: "Highlight source code with TextMate grammars and themes",
		Long: `Highlight source code in the terminal using TextMate grammars
(.tmLanguage, .tmLanguage.json, .tmLanguage.yaml) and color themes
(.tmTheme, JSON or YAML, or a built-in preset).

With no file, or when file is "-", standard input is read.

Examples:
  lumen main.go
  lumen --theme dracula -n config.json
  cat notes.txt | lumen --syntax source.json
  lumen --grammar ~/grammars/Toml.tmLanguage.json Cargo.toml`,
		Version:           version,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
		RunE:              a.runHighlight,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: .lumen/config.yaml or ~/.config/lumen/config.yaml)")
	pf.StringVar(&a.debugPath, "debug", "",
		`write a debug log to this file ("-" for stderr)`)
	pf.StringVar(&a.logLevel, "log-level", "debug",
		"minimum level written to the debug log (debug, info, warn, error)")
	pf.StringVarP(&a.themeFlag, "theme", "t", "",
		"theme preset name or theme file")
	pf.StringArrayVarP(&a.grammars, "grammar", "g", nil,
		"extra grammar file or directory (repeatable)")
	pf.StringVarP(&a.syntax, "syntax", "s", "",
		"scope name of the grammar to use, e.g. source.go")

	root.Flags().BoolVarP(&a.lineNumbers, "line-numbers", "n", false, "show line numbers")
	root.Flags().IntVarP(&a.width, "width", "w", 0, "truncate lines to this many columns")
	root.Flags().BoolVar(&a.wrap, "wrap", false, "wrap lines longer than --width instead of truncating")

	root.AddCommand(
		newScopesCmd(a),
		newCheckCmd(a),
		newViewCmd(a),
		newThemesCmd(a),
		newInitCmd(a),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := log.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	debug := a.debugPath
	if debug == "" {
		debug = os.Getenv("LUMEN_DEBUG")
	}
	switch debug {
	case "", "0", "false":
	case "-":
		log.InitWriter(cmd.ErrOrStderr())
	default:
		closeLog, err := log.Init(debug)
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		a.closeLog = closeLog
	}
	log.SetMinLevel(level)

	cfg, used, err := loadConfig(cmd, a.cfgFile)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg, a.configPath = cfg, used
	log.Debug(log.CatConfig, "configuration loaded", "path", used)

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	a.provider = provider
	return nil
}

func (a *app) teardown() {
	if a.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatConfig, "flushing traces", err)
		}
		cancel()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

// loadConfig reads the config file into a Config layered over the
// defaults. Lookup order without --config:
// 1. .lumen/config.yaml (current directory)
// 2. ~/.config/lumen/config.yaml (user config)
func loadConfig(cmd *cobra.Command, cfgFile string) (config.Config, string, error) {
	v := viper.New()
	setDefaults(v, config.Defaults())
	v.SetEnvPrefix("LUMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if f := cmd.Flags().Lookup("line-numbers"); f != nil {
		_ = v.BindPFlag("line_numbers", f)
	}

	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case fileExists(localConfigPath):
		v.SetConfigFile(localConfigPath)
	default:
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "lumen"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config.Config{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, "", fmt.Errorf("decoding config: %w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

const localConfigPath = ".lumen/config.yaml"

func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("theme.preset", d.Theme.Preset)
	v.SetDefault("grammar_dirs", d.GrammarDirs)
	v.SetDefault("builtin_grammars", d.BuiltinGrammars)
	v.SetDefault("tab_width", d.TabWidth)
	v.SetDefault("color_profile", d.ColorProfile)
	v.SetDefault("line_numbers", d.LineNumbers)
	v.SetDefault("background", d.Background)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("regex_timeout", d.RegexTimeout)
	v.SetDefault("max_include_depth", d.MaxIncludeDepth)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (a *app) runHighlight(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	env, err := a.loadEnv(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.close()

	p, err := env.parserFor(ctx, a.syntax, path, text)
	if err != nil {
		if a.syntax != "" {
			return err
		}
		log.Warn(log.CatSyntax, "no grammar, printing plain text", "path", path, "error", err)
		_, err = io.WriteString(cmd.OutOrStdout(), text)
		return err
	}

	r := highlight.NewRenderer(p, highlight.New(env.theme()), a.renderOptions())
	return r.Render(ctx, cmd.OutOrStdout(), strings.NewReader(text))
}

func (a *app) renderOptions() highlight.RenderOptions {
	return highlight.RenderOptions{
		Profile:     a.cfg.Profile(),
		Background:  a.cfg.Background,
		LineNumbers: a.cfg.LineNumbers,
		TabWidth:    a.cfg.TabWidth,
		Width:       a.width,
		Wrap:        a.wrap,
	}
}

// readInput returns the file named by args, or standard input.
func readInput(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return args[0], string(data), nil
}

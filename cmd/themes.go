package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lumen/internal/config"
	"github.com/zjrosen/lumen/internal/highlight"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/theme"
)

const previewSource = `// Greet says hello.
func Greet(name string) string {
	return fmt.Sprintf("hello, %s", name) + "!"
}`

func newThemesCmd(a *app) *cobra.Command {
	var (
		set     string
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List the built-in themes or select one",
		Long: `List the built-in theme presets. The active one is marked with "*".

With --set, the preset is written to the config file in use (or the user
config file when there is none), keeping its comments.

Examples:
  lumen themes --preview
  lumen themes --set dracula`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if set != "" {
				if _, err := theme.Preset(set); err != nil {
					return fmt.Errorf("%w (run 'lumen themes' to list them)", err)
				}
				path := a.configPath
				if path == "" {
					path = userConfigPath()
				}
				if err := config.SavePreset(path, set); err != nil {
					return fmt.Errorf("saving theme: %w", err)
				}
				fmt.Fprintf(out, "theme set to %s in %s\n", set, path)
				return nil
			}

			var p *highlightPreview
			if preview {
				env, err := a.loadEnv(cmd.Context(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer env.close()
				goParser, err := env.set.Parser(cmd.Context(), "source.go")
				if err != nil {
					return fmt.Errorf("preview needs the built-in Go grammar: %w", err)
				}
				p = &highlightPreview{app: a, parser: goParser}
			}

			current := ""
			if a.themeFile() == "" {
				current = a.themeRef()
			}
			for _, name := range theme.Presets() {
				mark := " "
				if name == current {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\n", mark, name)
				if p != nil {
					if err := p.render(cmd, name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "save this preset to the config file")
	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "show a highlighted sample in each theme")
	return cmd
}

type highlightPreview struct {
	app    *app
	parser *parser.Parser
}

func (p *highlightPreview) render(cmd *cobra.Command, name string) error {
	th, err := theme.Preset(name)
	if err != nil {
		return err
	}
	opts := p.app.renderOptions()
	opts.Background = true
	r := highlight.NewRenderer(p.parser, highlight.New(th), opts)
	return r.Render(cmd.Context(), cmd.OutOrStdout(), strings.NewReader(previewSource))
}

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lumen/internal/highlight"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/scope"
)

func newScopesCmd(a *app) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "scopes [file]",
		Short: "Print every token with its scope path",
		Long: `Scan a document and print each token as

  LINE:START-END  SCOPE PATH  "TEXT"

Offsets are byte offsets within the line. With --explain, each token is
followed by the theme rule that colors it and the resolved style.

Examples:
  lumen scopes main.go
  lumen scopes --explain --theme nord config.json
  echo '{"a": 1}' | lumen scopes --syntax source.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
				return err
			}
			var h *highlight.Highlighter
			if explain {
				h = highlight.New(env.theme())
			}
			return writeScopes(cmd.OutOrStdout(), p, h, text)
		},
	}
	cmd.Flags().BoolVarP(&explain, "explain", "e", false, "show the theme rule that styles each token")
	return cmd
}

// writeScopes prints the spans of every line of text. A non-nil h adds the
// theme rules the span is styled with.
func writeScopes(w io.Writer, p *parser.Parser, h *highlight.Highlighter, text string) error {
	bw := bufio.NewWriter(w)
	root := p.ScopeName()
	state := parser.NewState()
	for n, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		var spans []parser.Span
		state, spans = p.Scan(state, line)
		for _, sp := range spans {
			if sp.End <= sp.Start {
				continue
			}
			path := append([]scope.Scope{root}, sp.Scopes...)
			fmt.Fprintf(bw, "%d:%d-%d\t%s\t%q\n", n+1, sp.Start, sp.End, scope.PathString(path), sp.Text(line))
			if h != nil {
				fmt.Fprintf(bw, "\t%s\n", explainPath(h, path))
			}
		}
	}
	return bw.Flush()
}

func explainPath(h *highlight.Highlighter, path []scope.Scope) string {
	ex := h.Explain(path)
	sources := ex.Sources()
	if len(sources) == 0 {
		return "<- (default)"
	}
	rules := make([]string, len(sources))
	for i, src := range sources {
		name := src.Rule.Name
		if name == "" {
			name = src.Selector.String()
		}
		rules[i] = fmt.Sprintf("%s [%s]", name, src.Selector)
	}
	return fmt.Sprintf("<- %s %s", strings.Join(rules, " + "), ex.Style)
}

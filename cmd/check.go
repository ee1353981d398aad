package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/theme"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate grammar and theme files",
		Long: `Decode and compile grammar files, and decode theme files, reporting
the first error in each with the path of the offending field.

Files named *.tmLanguage, *.tmLanguage.json or *.tmLanguage.yaml are
checked as grammars; everything else as a theme. Skipped theme entries
are listed as warnings.

Examples:
  lumen check ~/.config/lumen/grammars/*.tmLanguage.json
  lumen check Monokai.tmTheme`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				if err := a.checkFile(out, path); err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					log.ErrorErr(log.CatSyntax, "check failed", err, "path", path)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) checkFile(out io.Writer, path string) error {
	if grammar.IsGrammarFile(path) {
		syn, err := grammar.Load(path)
		if err != nil {
			return err
		}
		p, err := parser.Build(syn,
			parser.WithRegexTimeout(a.cfg.RegexTimeout),
			parser.WithMaxIncludeDepth(a.cfg.MaxIncludeDepth),
		)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ok   %s: grammar %s, %d contexts\n", path, syn.ScopeName, p.Len())
		return nil
	}

	th, err := theme.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ok   %s: theme %q, %d rules\n", path, th.Name, len(th.Rules))
	for _, w := range th.Warnings {
		fmt.Fprintf(out, "     warning: %s\n", w)
	}
	return nil
}

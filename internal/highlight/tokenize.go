package highlight

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/lumen/internal/parser"
)

// Token is a styled region of a single line, in byte offsets.
type Token struct {
	Start int
	End   int
	Style lipgloss.Style
}

// Tokenizer highlights standalone lines, each scanned from the start-of-document
// state. Runs drawn in the default style are left out, so gaps render as
// plain text.
type Tokenizer struct {
	parser *parser.Parser
	hl     *Highlighter
	opts   RenderOptions
}

// NewTokenizer returns a Tokenizer for p and h.
func NewTokenizer(p *parser.Parser, h *Highlighter, opts RenderOptions) *Tokenizer {
	return &Tokenizer{parser: p, hl: h, opts: opts}
}

// Tokenize returns non-overlapping tokens sorted by Start.
func (t *Tokenizer) Tokenize(line string) []Token {
	if line == "" {
		return nil
	}
	_, runs := t.hl.HighlightLine(t.parser, parser.NewState(), line)

	def := t.hl.Default()
	var tokens []Token
	for _, r := range runs {
		if r.Style == def {
			continue
		}
		tokens = append(tokens, Token{Start: r.Start, End: r.End, Style: t.opts.lipglossStyle(nil, r.Style, def)})
	}
	return tokens
}

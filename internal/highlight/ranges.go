package highlight

import (
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/scope"
	"github.com/zjrosen/lumen/internal/theme"
)

// StyledRun is a byte range of a line drawn in one style.
type StyledRun struct {
	Start int
	End   int
	Style theme.Style
}

// Text returns the slice of line covered by the run.
func (r StyledRun) Text(line string) string { return line[r.Start:r.End] }

// Ranges turns a scanned line into styled runs that cover the whole line
// exactly once. root is prepended to every span's scopes; adjacent runs with
// the same style are merged.
func (h *Highlighter) Ranges(root scope.Scope, line string, spans []parser.Span) []StyledRun {
	var runs []StyledRun
	push := func(start, end int, style theme.Style) {
		if end <= start {
			return
		}
		if n := len(runs); n > 0 && runs[n-1].End == start && runs[n-1].Style == style {
			runs[n-1].End = end
			return
		}
		runs = append(runs, StyledRun{Start: start, End: end, Style: style})
	}

	rootStyle := h.Style(withRoot(root, nil))
	pos := 0
	for _, sp := range spans {
		start, end := max(sp.Start, pos), min(sp.End, len(line))
		if end <= start {
			continue
		}
		push(pos, start, rootStyle)
		push(start, end, h.Style(withRoot(root, sp.Scopes)))
		pos = end
	}
	push(pos, len(line), rootStyle)
	return runs
}

// HighlightLine scans one line with p from state and returns its styled
// runs together with the state for the next line.
func (h *Highlighter) HighlightLine(p *parser.Parser, state parser.ParserState, line string) (parser.ParserState, []StyledRun) {
	next, spans := p.Scan(state, line)
	return next, h.Ranges(p.ScopeName(), line, spans)
}

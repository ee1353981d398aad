package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/scope"
)

func sc(name string) scope.Scope {
	if name == "" {
		return scope.Scope{}
	}
	return scope.MustNew(name)
}

func match(name, regex string, caps ...grammar.Capture) *grammar.Match {
	return &grammar.Match{Name: sc(name), Regex: regex, Captures: caps}
}

func capture(i int, name string) grammar.Capture {
	return grammar.Capture{Index: i, Scope: sc(name)}
}

func region(name, begin, end string, body ...grammar.Pattern) *grammar.ScopeMatch {
	return &grammar.ScopeMatch{Name: sc(name), Begin: begin, End: end, Patterns: body}
}

func include(ref string) *grammar.Include {
	inc, ok := grammar.ParseInclude(ref)
	if !ok {
		panic("bad include " + ref)
	}
	return inc
}

func syntax(patterns grammar.Patterns, repo grammar.Repository) *grammar.Syntax {
	return &grammar.Syntax{
		Name:       "Test",
		ScopeName:  sc("source.test"),
		Patterns:   patterns,
		Repository: repo,
	}
}

func mustBuild(t *testing.T, syn *grammar.Syntax, opts ...Option) *Parser {
	t.Helper()
	p, err := Build(syn, opts...)
	require.NoError(t, err)
	return p
}

// piece is a span flattened to its text and space-joined scopes.
type piece struct {
	Text   string
	Scopes string
}

func pieces(line string, spans []Span) []piece {
	out := make([]piece, len(spans))
	for i, s := range spans {
		out[i] = piece{Text: s.Text(line), Scopes: scope.PathString(s.Scopes)}
	}
	return out
}

// requireCovers asserts the spans tile the line with no gaps or overlaps.
func requireCovers(t require.TestingT, line string, spans []Span) {
	pos := 0
	for _, s := range spans {
		require.Equal(t, pos, s.Start, "gap or overlap before span %+v", s)
		require.Greater(t, s.End, s.Start, "empty span %+v", s)
		pos = s.End
	}
	require.Equal(t, len(line), pos)
}

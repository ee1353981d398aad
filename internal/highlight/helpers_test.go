package highlight

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/parser"
	"github.com/zjrosen/lumen/internal/scope"
	"github.com/zjrosen/lumen/internal/theme"
)

const testGrammar = `{
  "name": "Test",
  "scopeName": "source.test",
  "patterns": [
    {"match": "#.*", "name": "comment.line"},
    {"match": "\\b\\d+\\b", "name": "constant.numeric"},
    {"match": "\\b(if|else)\\b", "name": "keyword.control"},
    {
      "name": "string.quoted.double",
      "begin": "\"",
      "end": "\"",
      "patterns": [{"match": "\\\\.", "name": "constant.character.escape"}]
    }
  ]
}`

const testTheme = `{
  "name": "Test",
  "settings": [
    {"settings": {"foreground": "#cccccc", "background": "#000000", "gutterForeground": "#555555"}},
    {"scope": "string", "settings": {"foreground": "#ff0000"}},
    {"scope": "string.quoted.double", "settings": {"foreground": "#0000ff"}},
    {"scope": "comment", "settings": {"foreground": "#888888", "fontStyle": "italic"}},
    {"scope": "comment.line", "settings": {"fontStyle": "bold"}},
    {"scope": "keyword", "settings": {"foreground": "#00ff00", "fontStyle": "bold"}},
    {"scope": "constant.numeric", "settings": {"foreground": "#ffff00"}}
  ]
}`

func mustTheme(t *testing.T, doc string) *theme.Theme {
	t.Helper()
	th, err := theme.Parse([]byte(doc), grammar.FormatJSON)
	require.NoError(t, err)
	return th
}

func mustParser(t *testing.T) *parser.Parser {
	t.Helper()
	syn, err := grammar.Parse([]byte(testGrammar), grammar.FormatJSON)
	require.NoError(t, err)
	p, err := parser.Build(syn)
	require.NoError(t, err)
	return p
}

func path(names ...string) []scope.Scope { return scope.MustList(names...) }

func color(s string) theme.Color { return theme.MustParseColor(s) }

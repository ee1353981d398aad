package grammar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const jsonGrammar = `{
  "name": "Mini",
  "scopeName": "source.mini",
  "fileTypes": ["mini", "mn"],
  "firstLineMatch": "^#!.*\\bmini\\b",
  "patterns": [
    {"include": "#comments"},
    {"match": "\\b(let)\\s+(\\w+)", "name": "meta.binding", "captures": {"1": {"name": "keyword.other"}, "2": {"name": "variable.other"}}},
    {"name": "string.quoted.double", "begin": "\"", "end": "\"", "contentName": "string.content",
     "patterns": [{"match": "\\\\.", "name": "constant.character.escape"}]},
    {"patterns": [{"match": "\\d+", "name": "constant.numeric"}]},
    {"match": "x", "disabled": 1}
  ],
  "repository": {
    "comments": {"match": "#.*$", "name": "comment.line"},
    "block": {"patterns": [{"include": "$self"}, {"include": "source.other#rule"}]}
  }
}`

func TestParse_JSON(t *testing.T) {
	syn, err := Parse([]byte(jsonGrammar), FormatJSON)
	require.NoError(t, err)

	require.Equal(t, "Mini", syn.Name)
	require.Equal(t, "source.mini", syn.ScopeName.String())
	require.Equal(t, []string{"mini", "mn"}, syn.FileTypes)
	require.NotEmpty(t, syn.FirstLineMatch)

	// container flattened, disabled pattern dropped
	require.Len(t, syn.Patterns, 4)

	inc, ok := syn.Patterns[0].(*Include)
	require.True(t, ok)
	require.Equal(t, IncludeRepository, inc.Kind)
	require.Equal(t, "comments", inc.Rule)

	m, ok := syn.Patterns[1].(*Match)
	require.True(t, ok)
	require.Equal(t, "meta.binding", m.Name.String())
	require.Equal(t, Captures{
		{Index: 1, Scope: mustScope("keyword.other")},
		{Index: 2, Scope: mustScope("variable.other")},
	}, m.Captures)

	region, ok := syn.Patterns[2].(*ScopeMatch)
	require.True(t, ok)
	require.Equal(t, "string.quoted.double", region.Name.String())
	require.Equal(t, "string.content", region.ContentName.String())
	require.Len(t, region.Patterns, 1)

	num, ok := syn.Patterns[3].(*Match)
	require.True(t, ok)
	require.Equal(t, "constant.numeric", num.Name.String())

	require.Equal(t, []string{"block", "comments"}, syn.Repository.Names())
	block := syn.Repository["block"]
	require.Len(t, block, 2)
	require.Equal(t, "$self", block[0].(*Include).String())
	ext := block[1].(*Include)
	require.Equal(t, IncludeSyntax, ext.Kind)
	require.Equal(t, "source.other", ext.Syntax)
	require.Equal(t, "rule", ext.Rule)
}

const yamlGrammar = `
name: Mini
scopeName: source.mini
patterns:
  - begin: "'"
    end: "'"
    name: string.quoted.single
    captures:
      0: {name: punctuation.definition.string}
`

func TestParse_YAMLRegionCapturesApplyToBothEnds(t *testing.T) {
	syn, err := Parse([]byte(yamlGrammar), FormatYAML)
	require.NoError(t, err)

	region := syn.Patterns[0].(*ScopeMatch)
	require.Len(t, region.BeginCaptures, 1)
	require.Equal(t, region.BeginCaptures, region.EndCaptures)
	require.Equal(t, 0, region.BeginCaptures[0].Index)
}

const plistGrammar = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>name</key>
	<string>Mini</string>
	<key>scopeName</key>
	<string>source.mini</string>
	<key>fileTypes</key>
	<array><string>mini</string></array>
	<key>patterns</key>
	<array>
		<dict>
			<key>match</key>
			<string>#.*</string>
			<key>name</key>
			<string>comment.line</string>
		</dict>
	</array>
</dict>
</plist>`

func TestParse_Plist(t *testing.T) {
	syn, err := Parse([]byte(plistGrammar), FormatPlist)
	require.NoError(t, err)
	require.Equal(t, "source.mini", syn.ScopeName.String())
	require.Equal(t, []string{"mini"}, syn.FileTypes)
	require.Len(t, syn.Patterns, 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		sentinel error
		path     string
	}{
		{"missing scopeName", `{"patterns": []}`, ErrMissingField, "scopeName"},
		{"missing patterns", `{"scopeName": "source.x"}`, ErrMissingField, "patterns"},
		{"bad scope name", `{"scopeName": "Source X", "patterns": []}`, nil, "scopeName"},
		{"bad regex", `{"scopeName": "source.x", "patterns": [{"match": "(unclosed"}]}`, ErrInvalidRegex, "patterns[0].match"},
		{"missing end", `{"scopeName": "source.x", "patterns": [{"begin": "a"}]}`, ErrMissingField, "patterns[0].end"},
		{"end without begin", `{"scopeName": "source.x", "patterns": [{"end": "a"}]}`, ErrMissingField, "patterns[0].begin"},
		{"empty pattern", `{"scopeName": "source.x", "patterns": [{}]}`, ErrInvalidShape, "patterns[0]"},
		{"bad capture index", `{"scopeName": "source.x", "patterns": [{"match": "a", "captures": {"one": {"name": "x"}}}]}`, ErrInvalidShape, "patterns[0].captures.one"},
		{"end refers to begin capture", `{"scopeName": "source.x", "patterns": [{"begin": "(\\w+)", "end": "\\1"}]}`, ErrInvalidRegex, "patterns[0].end"},
		{"bad nested", `{"scopeName": "source.x", "patterns": [{"begin": "a", "end": "b", "patterns": [{"match": "[", "name": "x"}]}]}`, ErrInvalidRegex, "patterns[0].patterns[0].match"},
		{"bad repository", `{"scopeName": "source.x", "patterns": [], "repository": {"r": {"match": "a", "name": "Bad Name"}}}`, nil, "repository.r.name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected FieldError, got %v", err)
			require.Equal(t, tt.path, fe.Path)
			if tt.sentinel != nil {
				require.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestParse_MalformedDocument(t *testing.T) {
	_, err := Parse([]byte(`{"scopeName": `), FormatJSON)
	require.ErrorIs(t, err, ErrInvalidShape)

	_, err = Parse([]byte(`{"scopeName": "source.x", "patterns": "nope"}`), FormatJSON)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.tmLanguage.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonGrammar), 0o644))

	syn, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "source.mini", syn.ScopeName.String())

	_, err = Load(filepath.Join(dir, "mini.txt"))
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestIsGrammarFile(t *testing.T) {
	require.True(t, IsGrammarFile("Go.tmLanguage"))
	require.True(t, IsGrammarFile("/x/go.tmLanguage.json"))
	require.True(t, IsGrammarFile("go.tmlanguage.yaml"))
	require.False(t, IsGrammarFile("theme.json"))
}

func TestParseInclude(t *testing.T) {
	inc, ok := ParseInclude("$base")
	require.True(t, ok)
	require.Equal(t, IncludeSelf, inc.Kind)

	inc, ok = ParseInclude("source.js")
	require.True(t, ok)
	require.Equal(t, IncludeSyntax, inc.Kind)
	require.Equal(t, "source.js", inc.String())

	_, ok = ParseInclude("#")
	require.False(t, ok)
	_, ok = ParseInclude("")
	require.False(t, ok)
}

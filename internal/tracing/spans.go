package tracing

// Span attribute keys.
const (
	AttrGrammar  = "grammar.scope"
	AttrPath     = "file.path"
	AttrContexts = "parser.contexts"
	AttrTheme    = "theme.name"
	AttrLines    = "lines"
	AttrInserted = "lines.inserted"
	AttrDeleted  = "lines.deleted"
	AttrCount    = "count"
)

// Span names.
const (
	SpanGrammarLoad  = "grammar.load"
	SpanGrammarBuild = "grammar.build"
	SpanThemeLoad    = "theme.load"
	SpanSyntaxReload = "syntax.reload"
	SpanRender       = "highlight.render"
	SpanBufferUpdate = "highlight.buffer.set_text"
)

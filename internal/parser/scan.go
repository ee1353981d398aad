package parser

import (
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/rivo/uniseg"

	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/scope"
)

// ParserState is what carries over from the end of one line to the start of
// the next: the open scopes and the open contexts. The zero value is
// equivalent to NewState().
type ParserState struct {
	scopes   []scope.Scope
	contexts []int
}

// NewState returns the state at the start of a document.
func NewState() ParserState {
	return ParserState{contexts: []int{0}}
}

// Clone returns a deep copy.
func (s ParserState) Clone() ParserState {
	c := ParserState{
		scopes:   slices.Clone(s.scopes),
		contexts: slices.Clone(s.contexts),
	}
	if len(c.contexts) == 0 {
		c.contexts = []int{0}
	}
	return c
}

// Equal reports whether two states would scan the next line identically.
func (s ParserState) Equal(o ParserState) bool {
	if !slices.Equal(s.scopes, o.scopes) {
		return false
	}
	a, b := s.contexts, o.contexts
	if len(a) == 0 {
		a = []int{0}
	}
	if len(b) == 0 {
		b = []int{0}
	}
	return slices.Equal(a, b)
}

// Scopes returns a copy of the open scope stack, outermost first.
func (s ParserState) Scopes() []scope.Scope { return slices.Clone(s.scopes) }

// Contexts returns a copy of the open context stack, root first.
func (s ParserState) Contexts() []int {
	if len(s.contexts) == 0 {
		return []int{0}
	}
	return slices.Clone(s.contexts)
}

// Depth returns the number of contexts open above the root.
func (s ParserState) Depth() int {
	return max(len(s.contexts)-1, 0)
}

// Span is a byte range of a line with the scope stack that applies to it.
// Scopes do not include the grammar's own scope name.
type Span struct {
	Start  int
	End    int
	Scopes []scope.Scope
}

// Text returns the slice of line covered by the span.
func (s Span) Text(line string) string { return line[s.Start:s.End] }

type capSpan struct {
	start, end int
	scope      scope.Scope
}

type scanner struct {
	p     *Parser
	runes []rune
	offs  []int // byte offset of each rune index, plus len(line)
	spans []Span
}

// Scan tokenizes one line (without its terminator) starting from state. It
// returns the state at the end of the line and spans that cover the line
// left to right without overlap. The input state is not modified.
func (p *Parser) Scan(state ParserState, line string) (ParserState, []Span) {
	st := state.Clone()
	for i, id := range st.contexts {
		if id < 0 || id >= len(p.contexts) {
			log.Warn(log.CatParser, "state does not belong to parser, resetting context", "context", id, "scope", p.scopeName)
			st.contexts = st.contexts[:i]
			if len(st.contexts) == 0 {
				st.contexts = []int{0}
			}
			break
		}
	}

	sc := &scanner{p: p, runes: []rune(line)}
	sc.offs = make([]int, len(sc.runes)+1)
	off := 0
	for i, r := range sc.runes {
		sc.offs[i] = off
		off += utf8.RuneLen(r)
	}
	sc.offs[len(sc.runes)] = len(line)

	n := len(sc.runes)
	pos := 0
	stalls := 0
	for pos <= n {
		ctx := &p.contexts[st.contexts[len(st.contexts)-1]]
		m, pm := ctx.find(sc.runes, pos)
		if m == nil {
			sc.emit(pos, n, st.scopes)
			break
		}

		start, end := m.Index, m.Index+m.Length
		sc.emit(pos, start, st.scopes)

		st.scopes = pm.Before.apply(st.scopes)
		sc.emitCaptures(start, end, st.scopes, ctx.captures(pm, m, sc.runes))
		st.scopes = pm.After.apply(st.scopes)

		changed := false
		switch pm.Context.Op {
		case ContextPush:
			st.contexts = append(st.contexts, pm.Context.ID)
			changed = true
		case ContextPop:
			if len(st.contexts) > 1 {
				st.contexts = st.contexts[:len(st.contexts)-1]
				changed = true
			}
		}

		if end > start {
			pos = end
			stalls = 0
			continue
		}

		// Zero-width match. A context change may still make progress at
		// the same position; anything else must step forward.
		stalls++
		if changed && stalls <= len(p.contexts)+1 {
			pos = start
			continue
		}
		if start >= n {
			break
		}
		step := graphemeLen(sc.runes, start)
		sc.emit(start, start+step, st.scopes)
		pos = start + step
		stalls = 0
	}

	return st, sc.spans
}

func (sc *scanner) emit(start, end int, stack []scope.Scope) {
	if end <= start {
		return
	}
	sc.spans = append(sc.spans, Span{
		Start:  sc.offs[start],
		End:    sc.offs[end],
		Scopes: slices.Clone(stack),
	})
}

// emitCaptures covers [start, end) with spans, nesting capture scopes on top
// of stack. A capture contained in another capture nests inside it.
func (sc *scanner) emitCaptures(start, end int, stack []scope.Scope, caps []capSpan) {
	pos := start
	for i := 0; i < len(caps); {
		c := caps[i]
		cs, ce := max(c.start, pos), min(c.end, end)
		if ce <= cs {
			i++
			continue
		}

		// Captures starting inside c belong to it.
		j := i + 1
		for j < len(caps) && caps[j].start < c.end {
			j++
		}

		sc.emit(pos, cs, stack)
		inner := append(slices.Clone(stack), c.scope)
		sc.emitCaptures(cs, ce, inner, caps[i+1:j])
		pos = ce
		i = j
	}
	sc.emit(pos, end, stack)
}

// find runs the context's regex from pos and reports the winning
// alternative. A regex runtime error is treated as no match.
func (c *ParserContext) find(runes []rune, pos int) (*regexp2.Match, *ParserMatch) {
	if c.regex == nil {
		return nil, nil
	}
	m, err := c.regex.FindRunesMatchStartingAt(runes, pos)
	if err != nil {
		log.Warn(log.CatParser, "regex evaluation failed", "error", err, "pos", pos)
		return nil, nil
	}
	if m == nil {
		return nil, nil
	}
	for i := range c.matches {
		g := m.GroupByNumber(c.matches[i].group)
		if g != nil && len(g.Captures) > 0 {
			return m, &c.matches[i]
		}
	}
	return nil, nil
}

// captures resolves the alternative's capture map against a match, sorted so
// that outer captures come before the captures they contain.
func (c *ParserContext) captures(pm *ParserMatch, m *regexp2.Match, runes []rune) []capSpan {
	if len(pm.Captures) == 0 {
		return nil
	}

	src, base := m, pm.group
	if pm.anchored != nil {
		am, err := pm.anchored.FindRunesMatchStartingAt(runes, m.Index)
		if err != nil || am == nil || am.Index != m.Index {
			return nil
		}
		src, base = am, 0
	}

	out := make([]capSpan, 0, len(pm.Captures))
	for _, cp := range pm.Captures {
		if cp.Scope.IsZero() {
			continue
		}
		if cp.Index == 0 {
			out = append(out, capSpan{start: m.Index, end: m.Index + m.Length, scope: cp.Scope})
			continue
		}
		if pm.anchored == nil && cp.Index > pm.groups {
			continue
		}
		g := src.GroupByNumber(base + cp.Index)
		if g == nil || len(g.Captures) == 0 || g.Length == 0 {
			continue
		}
		out = append(out, capSpan{start: g.Index, end: g.Index + g.Length, scope: cp.Scope})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end > out[j].end
	})
	return out
}

// graphemeLen returns the rune length of the grapheme cluster at runes[at].
func graphemeLen(runes []rune, at int) int {
	window := runes[at:min(at+32, len(runes))]
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(string(window), -1)
	return max(utf8.RuneCountInString(cluster), 1)
}

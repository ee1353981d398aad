// Package highlight resolves scope paths to styles through a theme and turns
// scanned lines into styled runs, terminal output and incrementally
// maintained buffers.
package highlight

import (
	"context"
	"slices"
	"sort"

	"github.com/zjrosen/lumen/internal/cachemanager"
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/scope"
	"github.com/zjrosen/lumen/internal/scopetree"
	"github.com/zjrosen/lumen/internal/theme"
)

// Source is the theme rule, and the selector of that rule, an attribute was
// taken from.
type Source struct {
	Rule     *theme.Rule
	Selector scope.Selector
}

// candidate is one theme value stored at a selector path. Selectors that
// share a path but differ in exclusion are kept side by side.
type candidate[T any] struct {
	value T
	src   Source
}

type slot[T any] struct {
	candidates []candidate[T]
}

func (s *slot[T]) set(c candidate[T]) {
	for i := range s.candidates {
		if s.candidates[i].src.Selector.Exclude == c.src.Selector.Exclude {
			log.Warn(log.CatHighlight, "theme rule overrides an earlier rule",
				"selector", scope.PathString(c.src.Selector.Path), "exclude", c.src.Selector.Exclude)
			s.candidates[i] = c
			return
		}
	}
	s.candidates = append(s.candidates, c)
}

// pick returns the first candidate whose exclusion does not apply to path.
// Candidates with an exclusion are more specific than the bare one.
func (s *slot[T]) pick(path []scope.Scope) (candidate[T], bool) {
	var bare *candidate[T]
	for i := range s.candidates {
		c := &s.candidates[i]
		if c.src.Selector.Exclude.IsZero() {
			bare = c
			continue
		}
		if !excluded(c.src.Selector.Exclude, path) {
			return *c, true
		}
	}
	if bare != nil {
		return *bare, true
	}
	return candidate[T]{}, false
}

func excluded(ex scope.Scope, path []scope.Scope) bool {
	for _, s := range path {
		if ex.Matches(s) {
			return true
		}
	}
	return false
}

type attrTree[T any] struct {
	tree *scopetree.Tree[*slot[T]]
}

func newAttrTree[T any]() attrTree[T] {
	return attrTree[T]{tree: scopetree.New[*slot[T]]()}
}

func (a attrTree[T]) add(c candidate[T]) {
	path := c.src.Selector.Path
	s, ok := a.tree.Get(path)
	if !ok {
		s = &slot[T]{}
		a.tree.Add(path, s)
	}
	s.set(c)
}

func (a attrTree[T]) find(path []scope.Scope) (*T, *Source) {
	var picked candidate[T]
	_, ok := a.tree.FindFunc(path, func(s *slot[T]) bool {
		c, ok := s.pick(path)
		if ok {
			picked = c
		}
		return ok
	})
	if !ok {
		return nil, nil
	}
	return &picked.value, &picked.src
}

// Highlighter resolves styles for scope paths from a theme. It is immutable
// once built and safe for concurrent use.
type Highlighter struct {
	theme  *theme.Theme
	def    theme.Style
	fg     attrTree[theme.Color]
	bg     attrTree[theme.Color]
	font   attrTree[theme.FontStyle]
	styles cachemanager.CacheManager[string, theme.Style]
}

type placement struct {
	sel  scope.Selector
	rule *theme.Rule
}

// New compiles th into three scope trees, one per style attribute. Rules
// are inserted in increasing selector rank so that the more specific
// selector is the one that remains when two land on the same path.
func New(th *theme.Theme) *Highlighter {
	h := &Highlighter{
		theme:  th,
		def:    th.Default(),
		fg:     newAttrTree[theme.Color](),
		bg:     newAttrTree[theme.Color](),
		font:   newAttrTree[theme.FontStyle](),
		styles: cachemanager.NewInMemoryCacheManager[string, theme.Style]("styles", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval),
	}

	var placements []placement
	for i := range th.Rules {
		for _, sel := range th.Rules[i].Selectors {
			placements = append(placements, placement{sel: sel, rule: &th.Rules[i]})
		}
	}
	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].sel.Rank() < placements[j].sel.Rank()
	})

	for _, p := range placements {
		style := p.rule.Style
		src := Source{Rule: p.rule, Selector: p.sel}
		if style.Foreground != nil {
			h.fg.add(candidate[theme.Color]{value: *style.Foreground, src: src})
		}
		if style.Background != nil {
			h.bg.add(candidate[theme.Color]{value: *style.Background, src: src})
		}
		if style.FontStyle != nil {
			h.font.add(candidate[theme.FontStyle]{value: *style.FontStyle, src: src})
		}
	}

	log.Debug(log.CatHighlight, "built highlighter", "theme", th.Name, "selectors", len(placements))
	return h
}

// Theme returns the theme the highlighter was built from.
func (h *Highlighter) Theme() *theme.Theme { return h.theme }

// Default returns the theme's base style.
func (h *Highlighter) Default() theme.Style { return h.def }

// Explanation is a resolved style together with the rule each attribute
// came from. A nil source means no rule sets that attribute.
type Explanation struct {
	Style      theme.StyleModifier
	Foreground *Source
	Background *Source
	FontStyle  *Source
}

// Sources returns the distinct rules behind the explanation, in foreground,
// background, font style order.
func (e Explanation) Sources() []Source {
	var out []Source
	for _, src := range []*Source{e.Foreground, e.Background, e.FontStyle} {
		if src == nil {
			continue
		}
		if !slices.ContainsFunc(out, func(s Source) bool { return s.Rule == src.Rule && s.Selector.String() == src.Selector.String() }) {
			out = append(out, *src)
		}
	}
	return out
}

// Explain resolves path like StyleFor and reports which rule supplied each
// attribute.
func (h *Highlighter) Explain(path []scope.Scope) Explanation {
	var e Explanation
	e.Style.Foreground, e.Foreground = h.fg.find(path)
	e.Style.Background, e.Background = h.bg.find(path)
	e.Style.FontStyle, e.FontStyle = h.font.find(path)
	return e
}

// StyleFor resolves each attribute independently for path. Attributes no
// rule sets are left nil.
func (h *Highlighter) StyleFor(path []scope.Scope) theme.StyleModifier {
	return h.Explain(path).Style
}

// Style returns the default style with StyleFor(path) applied.
func (h *Highlighter) Style(path []scope.Scope) theme.Style {
	if len(path) == 0 {
		return h.def
	}
	key := scope.PathString(path)
	ctx := context.Background()
	if s, ok := h.styles.Get(ctx, key); ok {
		return s
	}
	s := h.def.Apply(h.StyleFor(path))
	h.styles.Set(ctx, key, s, cachemanager.NoExpiration)
	return s
}

// withRoot prepends the grammar's own scope to a span's scopes.
func withRoot(root scope.Scope, scopes []scope.Scope) []scope.Scope {
	if root.IsZero() {
		return scopes
	}
	return slices.Insert(slices.Clone(scopes), 0, root)
}

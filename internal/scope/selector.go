package scope

import (
	"fmt"
	"strings"
)

// maxRankDepth bounds the positional rank encoding so it fits in a uint64.
const maxRankDepth = 16

// Selector is an ordered scope path (ancestor first) with an optional
// exclusion, written "source.go string - string.quoted".
type Selector struct {
	Path    []Scope
	Exclude Scope
}

// ParseSelector parses a single selector. The exclusion operator is a
// standalone "-" (or a "-" glued to the excluded scope) and must be followed
// by exactly one scope.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if !strings.HasPrefix(f, "-") {
			sc, err := New(f)
			if err != nil {
				return Selector{}, fmt.Errorf("selector %q: %w", s, err)
			}
			sel.Path = append(sel.Path, sc)
			continue
		}

		rest := fields[i+1:]
		if f != "-" {
			rest = append([]string{strings.TrimPrefix(f, "-")}, rest...)
		}
		if len(rest) != 1 {
			return Selector{}, fmt.Errorf("selector %q: %w: exclusion needs exactly one scope", s, ErrInvalidScope)
		}
		ex, err := New(rest[0])
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: %w", s, err)
		}
		sel.Exclude = ex
		break
	}
	if len(sel.Path) == 0 {
		return Selector{}, fmt.Errorf("selector %q: %w: no scopes", s, ErrInvalidScope)
	}
	return sel, nil
}

// MustParseSelector is ParseSelector for literals.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// Matches reports whether every selector scope matches some element of path
// in order, and the exclusion (if any) matches no element of path.
func (s Selector) Matches(path []Scope) bool {
	if !s.Exclude.IsZero() {
		for _, p := range path {
			if s.Exclude.Matches(p) {
				return false
			}
		}
	}

	next := 0
	for _, want := range s.Path {
		found := false
		for next < len(path) {
			cand := path[next]
			next++
			if want.Matches(cand) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Rank encodes the selector's specificity base 16: each scope contributes
// its own Rank as a digit, and scopes later in the path sit in higher
// digits. Deeper and longer selectors therefore outrank shallower ones.
func (s Selector) Rank() uint64 {
	path := s.Path
	if len(path) > maxRankDepth {
		path = path[len(path)-maxRankDepth:]
	}
	var rank uint64
	for i := len(path) - 1; i >= 0; i-- {
		digit := uint64(min(path[i].Rank(), 15))
		rank = rank<<4 | digit
	}
	return rank
}

func (s Selector) String() string {
	out := PathString(s.Path)
	if !s.Exclude.IsZero() {
		out += " - " + s.Exclude.String()
	}
	return out
}

// Selectors is a comma-separated OR group of selectors.
type Selectors []Selector

// ParseSelectors parses "a b, c - d".
func ParseSelectors(s string) (Selectors, error) {
	var out Selectors
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sel, err := ParseSelector(part)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("selectors %q: %w: no selectors", s, ErrInvalidScope)
	}
	return out, nil
}

// MustParseSelectors is ParseSelectors for literals.
func MustParseSelectors(s string) Selectors {
	sels, err := ParseSelectors(s)
	if err != nil {
		panic(err)
	}
	return sels
}

// Matches reports whether any selector matches path.
func (ss Selectors) Matches(path []Scope) bool {
	_, ok := ss.Rank(path)
	return ok
}

// Rank returns the highest rank among the selectors matching path.
func (ss Selectors) Rank(path []Scope) (uint64, bool) {
	var best uint64
	found := false
	for _, s := range ss {
		if !s.Matches(path) {
			continue
		}
		if r := s.Rank(); !found || r > best {
			best = r
			found = true
		}
	}
	return best, found
}

func (ss Selectors) String() string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// Package scope implements the dotted scope names that grammars attach to
// text (e.g. "string.quoted.double") and the selectors themes use to target
// them.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidScope is returned when a scope name contains characters outside
// a-z, 0-9, '-' and '.', or is empty after trimming.
var ErrInvalidScope = errors.New("invalid scope")

// Scope is an immutable, normalized (lowercase, trimmed) dotted identifier.
// The zero value is the empty scope and is used for "no scope".
type Scope struct {
	name string
}

// New validates and normalizes s into a Scope.
func New(s string) (Scope, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Scope{}, fmt.Errorf("%w: empty name", ErrInvalidScope)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '.' {
			continue
		}
		return Scope{}, fmt.Errorf("%w: %q has illegal character %q at %d", ErrInvalidScope, s, c, i)
	}
	return Scope{name: name}, nil
}

// MustNew is New for literals; it panics on invalid input.
func MustNew(s string) Scope {
	sc, err := New(s)
	if err != nil {
		panic(err)
	}
	return sc
}

// List converts names to scopes, failing on the first invalid one.
func List(names ...string) ([]Scope, error) {
	out := make([]Scope, 0, len(names))
	for _, n := range names {
		sc, err := New(n)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// MustList is List for literals.
func MustList(names ...string) []Scope {
	out, err := List(names...)
	if err != nil {
		panic(err)
	}
	return out
}

// String returns the normalized name.
func (s Scope) String() string { return s.name }

// IsZero reports whether s is the empty "no scope" value.
func (s Scope) IsZero() bool { return s.name == "" }

// Atoms splits the scope into its dot-separated segments.
func (s Scope) Atoms() []string {
	if s.name == "" {
		return nil
	}
	return strings.Split(s.name, ".")
}

// Rank is the number of dot-separated segments plus one, so deeper names
// rank higher.
func (s Scope) Rank() int {
	if s.name == "" {
		return 1
	}
	return strings.Count(s.name, ".") + 2
}

// Matches reports whether candidate equals s or extends it at a segment
// boundary: "string" matches "string.quoted" but not "stringify".
func (s Scope) Matches(candidate Scope) bool {
	return s.MatchesName(candidate.name)
}

// MatchesName is Matches for a raw (already normalized) name.
func (s Scope) MatchesName(candidate string) bool {
	if !strings.HasPrefix(candidate, s.name) {
		return false
	}
	return len(candidate) == len(s.name) || candidate[len(s.name)] == '.'
}

// Parent drops the last atom. The second result is false for single-atom
// and empty scopes.
func (s Scope) Parent() (Scope, bool) {
	i := strings.LastIndexByte(s.name, '.')
	if i < 0 {
		return Scope{}, false
	}
	return Scope{name: s.name[:i]}, true
}

// PathString joins a path with spaces, the way selectors are written.
func PathString(path []Scope) string {
	parts := make([]string, len(path))
	for i, s := range path {
		parts[i] = s.name
	}
	return strings.Join(parts, " ")
}

// Equal reports whether two paths hold the same scopes in the same order.
func Equal(a, b []Scope) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

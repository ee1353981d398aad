// Package grammar holds the definition model of a TextMate-style syntax:
// match patterns, begin/end regions, includes and capture maps, plus the
// decoders that build it from JSON, property-list and YAML files.
package grammar

import (
	"sort"
	"strings"

	"github.com/zjrosen/lumen/internal/scope"
)

// Pattern is one entry of a pattern list: *Match, *ScopeMatch, *Include or
// ContextID.
type Pattern interface {
	pattern()
}

// Patterns is an ordered pattern list. Order matters: on a tie at the same
// position the earlier pattern wins.
type Patterns []Pattern

// Repository maps rule names to reusable pattern lists.
type Repository map[string]Patterns

// Names returns the repository rule names in sorted order.
func (r Repository) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capture assigns a scope to one capture group of a regex.
type Capture struct {
	Index int
	Scope scope.Scope
}

// Captures is ordered by capture index.
type Captures []Capture

// Match is a single-regex pattern.
type Match struct {
	Name     scope.Scope
	Regex    string
	Captures Captures
}

// ScopeMatch is a begin/end region with its own nested patterns.
type ScopeMatch struct {
	Name          scope.Scope
	ContentName   scope.Scope
	Begin         string
	End           string
	BeginCaptures Captures
	EndCaptures   Captures
	Patterns      Patterns
}

// IncludeKind selects what an Include refers to.
type IncludeKind int

const (
	// IncludeSelf re-emits the grammar's root patterns ("$self", "$base").
	IncludeSelf IncludeKind = iota
	// IncludeRepository re-emits a named repository rule ("#name").
	IncludeRepository
	// IncludeSyntax refers to another grammar by scope ("source.js#rule").
	IncludeSyntax
)

func (k IncludeKind) String() string {
	switch k {
	case IncludeSelf:
		return "self"
	case IncludeRepository:
		return "repository"
	case IncludeSyntax:
		return "syntax"
	default:
		return "unknown"
	}
}

// Include references patterns defined elsewhere.
type Include struct {
	Kind IncludeKind
	// Rule is the repository rule name for IncludeRepository, and the
	// optional "#rule" part for IncludeSyntax.
	Rule string
	// Syntax is the referenced scope name for IncludeSyntax.
	Syntax string
}

// String renders the include the way grammars spell it.
func (i *Include) String() string {
	switch i.Kind {
	case IncludeSelf:
		return "$self"
	case IncludeRepository:
		return "#" + i.Rule
	default:
		if i.Rule != "" {
			return i.Syntax + "#" + i.Rule
		}
		return i.Syntax
	}
}

// ContextID replaces a ScopeMatch once regions have been moved into a flat
// arena during compilation. It is never produced by the decoders.
type ContextID int

func (*Match) pattern()      {}
func (*ScopeMatch) pattern() {}
func (*Include) pattern()    {}
func (ContextID) pattern()   {}

// Syntax is a decoded grammar. It is immutable once handed to the builder.
type Syntax struct {
	Name           string
	ScopeName      scope.Scope
	FileTypes      []string
	FirstLineMatch string
	Hidden         bool
	Patterns       Patterns
	Repository     Repository
}

// ParseInclude classifies an include reference.
func ParseInclude(ref string) (*Include, bool) {
	switch {
	case ref == "":
		return nil, false
	case ref == "$self" || ref == "$base":
		return &Include{Kind: IncludeSelf}, true
	case ref[0] == '#':
		if len(ref) == 1 {
			return nil, false
		}
		return &Include{Kind: IncludeRepository, Rule: ref[1:]}, true
	default:
		syn, rule, _ := strings.Cut(ref, "#")
		return &Include{Kind: IncludeSyntax, Syntax: syn, Rule: rule}, true
	}
}

// Package parser compiles a grammar into a flat array of scanning contexts
// and scans lines of text with them, tracking a per-line stack of open
// contexts and scopes.
package parser

import (
	"github.com/dlclark/regexp2"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/scope"
)

// ScopeOp is the kind of change a match makes to the scope stack.
type ScopeOp int

const (
	ScopeNoop ScopeOp = iota
	ScopePush
	ScopePop
)

// ScopeAction is applied to the scope stack before or after a match.
type ScopeAction struct {
	Op    ScopeOp
	Scope scope.Scope
}

func pushOrNoop(s scope.Scope) ScopeAction {
	if s.IsZero() {
		return ScopeAction{}
	}
	return ScopeAction{Op: ScopePush, Scope: s}
}

func popOrNoop(s scope.Scope) ScopeAction {
	if s.IsZero() {
		return ScopeAction{}
	}
	return ScopeAction{Op: ScopePop, Scope: s}
}

func (a ScopeAction) apply(stack []scope.Scope) []scope.Scope {
	switch a.Op {
	case ScopePush:
		return append(stack, a.Scope)
	case ScopePop:
		if len(stack) > 0 {
			return stack[:len(stack)-1]
		}
	}
	return stack
}

// ContextOp is the kind of change a match makes to the context stack.
type ContextOp int

const (
	ContextNoop ContextOp = iota
	ContextPush
	ContextPop
)

// ContextAction is applied to the context stack after a match.
type ContextAction struct {
	Op ContextOp
	ID int
}

// ParserMatch is the metadata for one alternative of a context's combined
// regex.
type ParserMatch struct {
	Before   ScopeAction
	After    ScopeAction
	Context  ContextAction
	Captures grammar.Captures

	// Source is the alternative's original regex text, for diagnostics.
	Source string

	group  int // capture group wrapping this alternative in the combined regex
	groups int // unnamed groups inside the alternative
	// anchored re-matches the alternative on its own when it uses named
	// groups, whose numbering cannot be shifted into the combined regex.
	anchored *regexp2.Regexp
}

// ParserContext is one compiled scanning unit: a single alternation of every
// pattern reachable at one nesting level.
type ParserContext struct {
	regex   *regexp2.Regexp
	matches []ParserMatch
}

// Alternatives returns the per-alternative metadata in priority order.
func (c *ParserContext) Alternatives() []ParserMatch {
	return c.matches
}

// Pattern returns the combined regex text ("" when the context is empty).
func (c *ParserContext) Pattern() string {
	if c.regex == nil {
		return ""
	}
	return c.regex.String()
}

// Parser is the immutable compiled form of a grammar. Index 0 is the root
// context. A Parser may be shared by any number of goroutines.
type Parser struct {
	name      string
	scopeName scope.Scope
	contexts  []ParserContext
}

// Name returns the grammar's display name.
func (p *Parser) Name() string { return p.name }

// ScopeName returns the grammar's top-level scope.
func (p *Parser) ScopeName() scope.Scope { return p.scopeName }

// Len returns the number of contexts.
func (p *Parser) Len() int { return len(p.contexts) }

// Context returns context i.
func (p *Parser) Context(i int) *ParserContext { return &p.contexts[i] }

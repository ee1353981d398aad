package parser

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zjrosen/lumen/internal/grammar"
	"github.com/zjrosen/lumen/internal/log"
)

// Build errors.
var (
	ErrUnresolvedInclude  = errors.New("unresolved include")
	ErrUnsupportedInclude = errors.New("cross-grammar include not supported")
	ErrIncludeDepth       = errors.New("include nesting too deep")
)

// DefaultMaxIncludeDepth bounds how many includes may be expanded inside one
// another while assembling a context.
const DefaultMaxIncludeDepth = 64

// DefaultRegexTimeout bounds a single regex evaluation during a scan.
const DefaultRegexTimeout = 250 * time.Millisecond

// BuildError names the pattern that made a grammar fail to build.
type BuildError struct {
	Pattern string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("pattern %q: %v", e.Pattern, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Option configures Build.
type Option func(*options)

type options struct {
	regexTimeout    time.Duration
	maxIncludeDepth int
}

// WithRegexTimeout sets the per-evaluation regex timeout. Zero disables it.
func WithRegexTimeout(d time.Duration) Option {
	return func(o *options) { o.regexTimeout = d }
}

// WithMaxIncludeDepth sets the include nesting bound.
func WithMaxIncludeDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIncludeDepth = n
		}
	}
}

type builder struct {
	opts    options
	root    grammar.Patterns
	repo    grammar.Repository
	regions []*grammar.ScopeMatch
}

// Build compiles syn into a Parser. It fails without producing a partial
// Parser if any include is unresolved or any regex does not compile.
// syn itself is not modified.
func Build(syn *grammar.Syntax, opts ...Option) (*Parser, error) {
	o := options{
		regexTimeout:    DefaultRegexTimeout,
		maxIncludeDepth: DefaultMaxIncludeDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}

	b := &builder{opts: o, repo: make(grammar.Repository, len(syn.Repository))}

	// Pass 1: move every region into the arena, leaving ContextIDs behind.
	b.root = b.identify(syn.Patterns)
	for _, name := range syn.Repository.Names() {
		b.repo[name] = b.identify(syn.Repository[name])
	}

	// Pass 2: compile the root and one context per region.
	contexts := make([]ParserContext, 1+len(b.regions))

	var alts []alternative
	if err := b.expand(b.root, []string{"$self"}, &alts); err != nil {
		return nil, err
	}
	root, err := compileContext(alts, o.regexTimeout)
	if err != nil {
		return nil, err
	}
	contexts[0] = root

	for i, region := range b.regions {
		alts = alts[:0]
		if err := b.expand(region.Patterns, nil, &alts); err != nil {
			return nil, err
		}
		alts = append(alts, alternative{
			regex: region.End,
			match: ParserMatch{
				Before:   popOrNoop(region.ContentName),
				After:    popOrNoop(region.Name),
				Context:  ContextAction{Op: ContextPop},
				Captures: region.EndCaptures,
			},
		})
		ctx, err := compileContext(alts, o.regexTimeout)
		if err != nil {
			return nil, err
		}
		contexts[i+1] = ctx
	}

	log.Debug(log.CatParser, "built parser", "scope", syn.ScopeName, "contexts", len(contexts))
	return &Parser{
		name:      syn.Name,
		scopeName: syn.ScopeName,
		contexts:  contexts,
	}, nil
}

// identify returns a copy of list with every region replaced by its arena
// index. Regions get indices in discovery order (pre-order).
func (b *builder) identify(list grammar.Patterns) grammar.Patterns {
	out := make(grammar.Patterns, len(list))
	for i, p := range list {
		region, ok := p.(*grammar.ScopeMatch)
		if !ok {
			out[i] = p
			continue
		}
		cp := *region
		id := len(b.regions)
		b.regions = append(b.regions, &cp)
		cp.Patterns = b.identify(region.Patterns)
		out[i] = grammar.ContextID(id)
	}
	return out
}

// expand appends the alternatives for list, inlining includes. stack holds
// the includes currently being expanded; re-entering one of them is a cycle
// and contributes nothing.
func (b *builder) expand(list grammar.Patterns, stack []string, alts *[]alternative) error {
	for _, p := range list {
		switch p := p.(type) {
		case *grammar.Match:
			*alts = append(*alts, alternative{
				regex: p.Regex,
				match: ParserMatch{
					Before:   pushOrNoop(p.Name),
					After:    popOrNoop(p.Name),
					Captures: p.Captures,
				},
			})

		case grammar.ContextID:
			region := b.regions[p]
			*alts = append(*alts, alternative{
				regex: region.Begin,
				match: ParserMatch{
					Before:   pushOrNoop(region.Name),
					After:    pushOrNoop(region.ContentName),
					Context:  ContextAction{Op: ContextPush, ID: int(p) + 1},
					Captures: region.BeginCaptures,
				},
			})

		case *grammar.Include:
			var target grammar.Patterns
			key := p.String()
			switch p.Kind {
			case grammar.IncludeSelf:
				target = b.root
			case grammar.IncludeRepository:
				list, ok := b.repo[p.Rule]
				if !ok {
					return &BuildError{Pattern: key, Err: ErrUnresolvedInclude}
				}
				target = list
			default:
				return &BuildError{Pattern: key, Err: ErrUnsupportedInclude}
			}

			if slices.Contains(stack, key) {
				log.Debug(log.CatParser, "skipping recursive include", "include", key, "depth", len(stack))
				continue
			}
			if len(stack) >= b.opts.maxIncludeDepth {
				return &BuildError{Pattern: key, Err: ErrIncludeDepth}
			}
			if err := b.expand(target, append(stack, key), alts); err != nil {
				return err
			}

		default:
			return &BuildError{Pattern: fmt.Sprintf("%T", p), Err: errors.New("unexpected pattern after region identification")}
		}
	}
	return nil
}

package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/zjrosen/lumen/internal/grammar"
)

// alternative is one pattern contributing to a context before compilation.
type alternative struct {
	regex string
	match ParserMatch
}

// compileContext OR-joins the alternatives into one regex, each wrapped in its
// own capture group, and records where each alternative's groups landed.
func compileContext(alts []alternative, timeout time.Duration) (ParserContext, error) {
	ctx := ParserContext{matches: make([]ParserMatch, 0, len(alts))}
	if len(alts) == 0 {
		return ctx, nil
	}

	parts := make([]string, 0, len(alts))
	next := 1
	for _, alt := range alts {
		standalone, err := regexp2.Compile(alt.regex, regexp2.None)
		if err != nil {
			return ParserContext{}, &BuildError{Pattern: alt.regex, Err: fmt.Errorf("%w: %v", grammar.ErrInvalidRegex, err)}
		}
		unnamed, named := countGroups(standalone)

		end, err := closer(alt.regex)
		if err != nil {
			return ParserContext{}, &BuildError{Pattern: alt.regex, Err: fmt.Errorf("%w: %v", grammar.ErrInvalidRegex, err)}
		}

		pm := alt.match
		pm.Source = alt.regex
		pm.group = next
		pm.groups = unnamed
		if named > 0 {
			anchored, err := regexp2.Compile(`\G(?:`+alt.regex+end, regexp2.None)
			if err != nil {
				return ParserContext{}, &BuildError{Pattern: alt.regex, Err: fmt.Errorf("%w: %v", grammar.ErrInvalidRegex, err)}
			}
			anchored.MatchTimeout = timeout
			pm.anchored = anchored
		}

		part := "(" + shiftBackrefs(alt.regex, pm.group, unnamed) + end
		parts = append(parts, part)
		ctx.matches = append(ctx.matches, pm)
		next += 1 + unnamed
	}

	combined := strings.Join(parts, "|")
	re, err := regexp2.Compile(combined, regexp2.None)
	if err != nil {
		return ParserContext{}, &BuildError{Pattern: culprit(alts, parts, combined), Err: fmt.Errorf("%w: %v", grammar.ErrInvalidRegex, err)}
	}
	re.MatchTimeout = timeout
	ctx.regex = re
	return ctx, nil
}

// closer returns the text that closes a group opened before expr. An expr in
// extended mode that ends inside a # comment would swallow a plain ")", so
// the group is then closed on a new line, which extended mode ignores.
func closer(expr string) (string, error) {
	if _, err := regexp2.Compile("(?:"+expr+")", regexp2.None); err == nil {
		return ")", nil
	}
	if _, err := regexp2.Compile("(?:"+expr+"\n)", regexp2.None); err != nil {
		return "", err
	}
	return "\n)", nil
}

// culprit returns the source of the first alternative that fails to compile
// once joined after the ones before it, or combined when none does alone.
func culprit(alts []alternative, parts []string, combined string) string {
	for i := range parts {
		if _, err := regexp2.Compile(strings.Join(parts[:i+1], "|"), regexp2.None); err != nil {
			return alts[i].regex
		}
	}
	return combined
}

// countGroups splits a regex's capture groups into unnamed (numbered) and
// named ones. Group 0 is not counted.
func countGroups(re *regexp2.Regexp) (unnamed, named int) {
	for _, name := range re.GetGroupNames() {
		if name == "0" {
			continue
		}
		if _, err := strconv.Atoi(name); err == nil {
			unnamed++
		} else {
			named++
		}
	}
	return unnamed, named
}

// shiftBackrefs renumbers numeric backreferences (\1..\N) outside character
// classes by offset, so an alternative keeps referring to its own groups once
// it is embedded after other alternatives. References beyond the
// alternative's own group count are left alone.
func shiftBackrefs(expr string, offset, groups int) string {
	if groups == 0 || !strings.Contains(expr, `\`) {
		return expr
	}

	var b strings.Builder
	b.Grow(len(expr) + 8)
	inClass := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\\' && i+1 < len(expr):
			n := expr[i+1]
			if !inClass && n >= '1' && n <= '9' {
				j := i + 1
				for j < len(expr) && expr[j] >= '0' && expr[j] <= '9' {
					j++
				}
				num, _ := strconv.Atoi(expr[i+1 : j])
				if num <= groups {
					fmt.Fprintf(&b, `(?:\%d)`, num+offset)
					i = j - 1
					continue
				}
			}
			b.WriteByte(c)
			b.WriteByte(n)
			i++
		case c == '[' && !inClass:
			inClass = true
			b.WriteByte(c)
			// A leading ']' (optionally after '^') is a literal member.
			if i+1 < len(expr) && expr[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
		case c == ']' && inClass:
			inClass = false
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

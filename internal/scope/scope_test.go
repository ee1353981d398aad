package scope

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_Normalizes(t *testing.T) {
	s, err := New("  String.Quoted.Double ")
	require.NoError(t, err)
	require.Equal(t, "string.quoted.double", s.String())
	require.Equal(t, []string{"string", "quoted", "double"}, s.Atoms())
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"underscore", "string_quoted"},
		{"inner space", "string quoted"},
		{"plus", "source.c++"},
		{"dollar capture", "entity.$1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.input)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidScope))
		})
	}
}

func TestScope_Matches(t *testing.T) {
	str := MustNew("string")
	require.True(t, str.Matches(MustNew("string")))
	require.True(t, str.Matches(MustNew("string.quoted")))
	require.False(t, str.Matches(MustNew("stringify")))
	require.False(t, str.Matches(MustNew("str")))
	require.False(t, MustNew("string.quoted").Matches(str))
}

func TestScope_Rank(t *testing.T) {
	require.Less(t, MustNew("a").Rank(), MustNew("a.b").Rank())
	require.Less(t, MustNew("a.b").Rank(), MustNew("a.b.c").Rank())
	require.Equal(t, 1, Scope{}.Rank())
}

func TestScope_Parent(t *testing.T) {
	p, ok := MustNew("comment.line.double-slash").Parent()
	require.True(t, ok)
	require.Equal(t, "comment.line", p.String())

	_, ok = MustNew("comment").Parent()
	require.False(t, ok)
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(MustList("a", "b"), MustList("a", "b")))
	require.False(t, Equal(MustList("a", "b"), MustList("a")))
	require.False(t, Equal(MustList("a", "b"), MustList("a", "c")))
	require.True(t, Equal(nil, []Scope{}))
}

// scopeName generates valid scope names of 1-4 atoms.
func scopeName() *rapid.Generator[string] {
	atom := rapid.StringMatching(`[a-z0-9][a-z0-9-]{0,6}`)
	return rapid.Custom(func(t *rapid.T) string {
		n := rapid.IntRange(1, 4).Draw(t, "atoms")
		parts := make([]string, n)
		for i := range parts {
			parts[i] = atom.Draw(t, "atom")
		}
		return strings.Join(parts, ".")
	})
}

func TestProperty_MatchesSelfAndChildren(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := scopeName().Draw(rt, "name")
		s := MustNew(name)

		require.True(t, s.MatchesName(name))
		require.True(t, s.MatchesName(name+".x"))
		require.False(t, s.MatchesName(name+"x"))
	})
}

func TestProperty_RankIncreasesWithDepth(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := scopeName().Draw(rt, "name")
		s := MustNew(name)
		deeper := MustNew(name + ".x")
		require.Less(t, s.Rank(), deeper.Rank())
	})
}

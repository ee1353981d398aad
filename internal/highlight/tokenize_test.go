package highlight

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizer(t *testing.T) {
	tok := NewTokenizer(mustParser(t), New(mustTheme(t, testTheme)), RenderOptions{})

	require.Nil(t, tok.Tokenize(""))
	require.Empty(t, tok.Tokenize("plain words"))

	line := "x = 42 # n"
	tokens := tok.Tokenize(line)
	require.Len(t, tokens, 2)
	require.Equal(t, "42", line[tokens[0].Start:tokens[0].End])
	require.Equal(t, "# n", line[tokens[1].Start:tokens[1].End])
	require.True(t, tokens[1].Style.GetBold())
	require.True(t, tokens[0].End <= tokens[1].Start)
}

package highlight

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestBuffer(t *testing.T, text string) *Buffer {
	t.Helper()
	return NewBuffer(mustParser(t), New(mustTheme(t, testTheme)), text)
}

func tenLines() string {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "x = 1"
	}
	return strings.Join(lines, "\n")
}

func TestBuffer_LazyScan(t *testing.T) {
	b := newTestBuffer(t, tenLines())
	require.Equal(t, 10, b.Len())
	require.Equal(t, 0, b.ScanCount())

	text, rs := b.Line(4)
	require.Equal(t, "x = 1", text)
	require.NotEmpty(t, rs)
	require.Equal(t, 5, b.ScanCount())

	b.Line(9)
	require.Equal(t, 10, b.ScanCount())
	b.Line(2)
	require.Equal(t, 10, b.ScanCount())

	text, rs = b.Line(10)
	require.Empty(t, text)
	require.Nil(t, rs)
}

func TestBuffer_EditStopsWhenStateMatches(t *testing.T) {
	b := newTestBuffer(t, tenLines())
	b.Line(9)

	b.SetLine(3, "y = 2")
	b.Line(9)
	require.Equal(t, 11, b.ScanCount(), "only the edited line is rescanned")

	text, rs := b.Line(3)
	require.Equal(t, "y = 2", text)
	require.Equal(t, "2", rs[len(rs)-1].Text(text))
}

func TestBuffer_EditPropagatesStateChange(t *testing.T) {
	b := newTestBuffer(t, tenLines())
	b.Line(9)

	b.SetLine(3, `"open`)
	b.Line(9)
	require.Equal(t, 17, b.ScanCount(), "lines 3..9 are rescanned")
	require.Equal(t, 1, b.State(9).Depth())

	_, rs := b.Line(5)
	require.Len(t, rs, 1)
	require.Equal(t, color("#0000ff"), rs[0].Style.Foreground)

	b.SetLine(3, "x = 1")
	b.Line(9)
	require.Equal(t, 0, b.State(9).Depth())
}

func TestBuffer_InsertDelete(t *testing.T) {
	b := newTestBuffer(t, "a\nb\nc")
	b.Insert(1, `"`, "inside")
	require.Equal(t, "a\n\"\ninside\nb\nc", b.Text())
	require.Equal(t, 1, b.State(4).Depth())

	b.Delete(1, 1)
	require.Equal(t, []string{"a", "inside", "b", "c"}, b.Lines())
	require.Equal(t, 0, b.State(3).Depth())

	b.Insert(4, "end")
	require.Equal(t, 5, b.Len())
	b.Delete(3, 10)
	require.Equal(t, []string{"a", "inside", "b"}, b.Lines())
}

func TestBuffer_SetTextReusesUnchangedLines(t *testing.T) {
	b := newTestBuffer(t, tenLines())
	b.Line(9)

	lines := strings.Split(tenLines(), "\n")
	lines[6] = "if y"
	b.SetText(context.Background(), strings.Join(lines, "\n"))
	require.Equal(t, strings.Join(lines, "\n"), b.Text())

	b.Line(9)
	require.Equal(t, 12, b.ScanCount(), "the replaced line and the one after it")

	text, rs := b.Line(6)
	require.Equal(t, "if y", text)
	require.Equal(t, color("#00ff00"), rs[0].Style.Foreground)
}

func TestBuffer_Reset(t *testing.T) {
	b := newTestBuffer(t, "a\nb")
	b.Line(1)
	b.Reset(mustParser(t), New(mustTheme(t, testTheme)))
	b.Line(1)
	require.Equal(t, 4, b.ScanCount())
}

func TestProperty_BufferMatchesFreshScan(t *testing.T) {
	p := mustParser(t)
	h := New(mustTheme(t, testTheme))
	lineGen := rapid.StringOfN(rapid.SampledFrom([]rune(`ab "#1\`)), 0, 8, -1)

	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.SliceOfN(lineGen, 1, 8).Draw(t, "initial")
		b := NewBuffer(p, h, strings.Join(initial, "\n"))

		steps := rapid.IntRange(1, 10).Draw(t, "steps")
		for range steps {
			if b.Len() > 0 {
				b.Line(rapid.IntRange(0, b.Len()-1).Draw(t, "line"))
			}
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				if b.Len() > 0 {
					b.SetLine(rapid.IntRange(0, b.Len()-1).Draw(t, "set"), lineGen.Draw(t, "text"))
				}
			case 1:
				b.Insert(rapid.IntRange(0, b.Len()).Draw(t, "insert"), lineGen.Draw(t, "text"))
			case 2:
				if b.Len() > 1 {
					b.Delete(rapid.IntRange(0, b.Len()-1).Draw(t, "delete"), 1)
				}
			case 3:
				lines := b.Lines()
				if len(lines) > 0 {
					lines[rapid.IntRange(0, len(lines)-1).Draw(t, "replace")] = lineGen.Draw(t, "text")
				}
				b.SetText(context.Background(), strings.Join(lines, "\n"))
			}
		}

		fresh := NewBuffer(p, h, b.Text())
		require.Equal(t, fresh.Len(), b.Len())
		for i := 0; i < b.Len(); i++ {
			_, want := fresh.Line(i)
			_, got := b.Line(i)
			require.Equal(t, want, got, "line %d", i)
			require.True(t, fresh.State(i).Equal(b.State(i)), "state %d", i)
		}
	})
}

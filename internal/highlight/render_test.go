package highlight

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lumen/internal/parser"
)

func newTestRenderer(t *testing.T, opts RenderOptions) *Renderer {
	t.Helper()
	return NewRenderer(mustParser(t), New(mustTheme(t, testTheme)), opts)
}

func TestRender_AsciiIsPlainText(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{Profile: termenv.Ascii})

	src := "if x \"a\"\n\tb # c\n"
	var out bytes.Buffer
	require.NoError(t, r.Render(context.Background(), &out, strings.NewReader(src)))
	require.Equal(t, "if x \"a\"\n    b # c\n", out.String())
}

func TestRender_TrueColor(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{Profile: termenv.TrueColor})

	var out bytes.Buffer
	require.NoError(t, r.Render(context.Background(), &out, strings.NewReader(`"s"`)))
	got := out.String()
	require.Contains(t, got, "38;2;0;0;255")
	require.True(t, strings.HasSuffix(got, termenv.CSI+termenv.ResetSeq+"m"))
}

func TestRender_LineNumbers(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{Profile: termenv.Ascii, LineNumbers: true})

	var out bytes.Buffer
	require.NoError(t, r.Render(context.Background(), &out, strings.NewReader("a\nb")))
	require.Equal(t, "    1 a\n    2 b\n", out.String())
}

func TestRender_MultiLineState(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{Profile: termenv.TrueColor})

	var out bytes.Buffer
	require.NoError(t, r.Render(context.Background(), &out, strings.NewReader("\"open\nstill\"")))
	lines := strings.Split(out.String(), "\n")
	require.Contains(t, lines[1], "38;2;0;0;255", "second line continues the string")
}

func TestRender_Canceled(t *testing.T) {
	r := newTestRenderer(t, RenderOptions{Profile: termenv.Ascii})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := r.Render(ctx, &out, strings.NewReader("a\nb\n"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, out.String())
}

func TestRenderRuns_Width(t *testing.T) {
	p := mustParser(t)
	h := New(mustTheme(t, testTheme))
	_, rs := h.HighlightLine(p, parser.NewState(), "abcdefgh")

	trunc := NewRenderer(p, h, RenderOptions{Profile: termenv.Ascii, Width: 5})
	require.Equal(t, "abcd…", trunc.RenderRuns("abcdefgh", rs))

	wrapped := NewRenderer(p, h, RenderOptions{Profile: termenv.Ascii, Width: 4, Wrap: true})
	require.Equal(t, "abcd\nefgh", wrapped.RenderRuns("abcdefgh", rs))

	wide := NewRenderer(p, h, RenderOptions{Profile: termenv.Ascii, Width: 20})
	require.Equal(t, "abcdefgh", wide.RenderRuns("abcdefgh", rs))
}

func TestExpandTabs(t *testing.T) {
	tests := []struct {
		in    string
		start int
		width int
		want  string
	}{
		{in: "\tx", start: 0, width: 4, want: "    x"},
		{in: "ab\tx", start: 0, width: 4, want: "ab  x"},
		{in: "\tx", start: 3, width: 4, want: " x"},
		{in: "世\tx", start: 0, width: 4, want: "世  x"},
		{in: "none", start: 0, width: 4, want: "none"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, expandTabs(tt.in, tt.start, tt.width))
		})
	}
}

func TestWriter_ResetOnlyAfterWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, termenv.ANSI256)
	require.NoError(t, w.Close())
	require.Empty(t, buf.String())

	buf.Reset()
	w = NewWriter(&buf, termenv.ANSI256)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.Equal(t, "x"+termenv.CSI+termenv.ResetSeq+"m", buf.String())

	_, err = w.Write([]byte("y"))
	require.Error(t, err)

	buf.Reset()
	w = NewWriter(&buf, termenv.Ascii)
	_, _ = w.Write([]byte("x"))
	require.NoError(t, w.Close())
	require.Equal(t, "x", buf.String())
}

package theme

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFontStyle(t *testing.T) {
	tests := []struct {
		in   string
		want FontStyle
	}{
		{in: "", want: 0},
		{in: "bold", want: Bold},
		{in: "italic underline", want: Italic | Underline},
		{in: " Bold  Italic ", want: Bold | Italic},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFontStyle(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFontStyle("bold strikethrough")
	require.ErrorIs(t, err, ErrInvalidFontStyle)
}

func TestFontStyle_String(t *testing.T) {
	require.Equal(t, "bold underline italic", (Bold | Underline | Italic).String())
	require.Equal(t, "", FontStyle(0).String())
}

func TestStyle_Apply(t *testing.T) {
	base := Style{Foreground: MustParseColor("#cccccc"), Background: MustParseColor("#000000")}
	fg := MustParseColor("#ff0000")
	bold := Bold

	got := base.Apply(StyleModifier{Foreground: &fg, FontStyle: &bold})
	require.Equal(t, fg, got.Foreground)
	require.Equal(t, base.Background, got.Background)
	require.Equal(t, Bold, got.FontStyle)

	require.Equal(t, base, base.Apply(StyleModifier{}))
}

func TestStyleModifier_Merge(t *testing.T) {
	red, blue := MustParseColor("#ff0000"), MustParseColor("#0000ff")
	italic := Italic

	a := StyleModifier{Foreground: &red}
	b := StyleModifier{Foreground: &blue, Background: &blue, FontStyle: &italic}

	got := a.Merge(b)
	require.Equal(t, red, *got.Foreground)
	require.Equal(t, blue, *got.Background)
	require.Equal(t, Italic, *got.FontStyle)
	require.True(t, StyleModifier{}.IsZero())
	require.Equal(t, `fg=#ff0000 bg=#0000ff font="italic"`, got.String())
}

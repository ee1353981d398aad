package theme

import (
	"fmt"
	"strings"
)

// FontStyle is a set of font attributes.
type FontStyle uint8

const (
	Bold FontStyle = 1 << iota
	Underline
	Italic
)

// ParseFontStyle reads a space-separated subset of "bold underline italic".
// The empty string is the explicit "plain" style.
func ParseFontStyle(s string) (FontStyle, error) {
	var fs FontStyle
	for _, tok := range strings.Fields(s) {
		switch strings.ToLower(tok) {
		case "bold":
			fs |= Bold
		case "underline":
			fs |= Underline
		case "italic":
			fs |= Italic
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidFontStyle, tok)
		}
	}
	return fs, nil
}

func (f FontStyle) Has(flag FontStyle) bool { return f&flag != 0 }

func (f FontStyle) String() string {
	var parts []string
	if f.Has(Bold) {
		parts = append(parts, "bold")
	}
	if f.Has(Underline) {
		parts = append(parts, "underline")
	}
	if f.Has(Italic) {
		parts = append(parts, "italic")
	}
	return strings.Join(parts, " ")
}

// Style is a fully resolved style for a run of text.
type Style struct {
	Foreground Color
	Background Color
	FontStyle  FontStyle
}

// StyleModifier is a partial style. Nil fields leave the base unchanged.
type StyleModifier struct {
	Foreground *Color
	Background *Color
	FontStyle  *FontStyle
}

// IsZero reports whether the modifier changes nothing.
func (m StyleModifier) IsZero() bool {
	return m.Foreground == nil && m.Background == nil && m.FontStyle == nil
}

// Apply layers m over s. Translucent colors are blended over the base
// background.
func (s Style) Apply(m StyleModifier) Style {
	out := s
	if m.Background != nil {
		out.Background = m.Background.Blend(s.Background)
	}
	if m.Foreground != nil {
		out.Foreground = m.Foreground.Blend(out.Background)
	}
	if m.FontStyle != nil {
		out.FontStyle = *m.FontStyle
	}
	return out
}

// Merge returns m with any attribute it leaves unset taken from other.
func (m StyleModifier) Merge(other StyleModifier) StyleModifier {
	if m.Foreground == nil {
		m.Foreground = other.Foreground
	}
	if m.Background == nil {
		m.Background = other.Background
	}
	if m.FontStyle == nil {
		m.FontStyle = other.FontStyle
	}
	return m
}

func (m StyleModifier) String() string {
	var parts []string
	if m.Foreground != nil {
		parts = append(parts, "fg="+m.Foreground.String())
	}
	if m.Background != nil {
		parts = append(parts, "bg="+m.Background.String())
	}
	if m.FontStyle != nil {
		parts = append(parts, fmt.Sprintf("font=%q", m.FontStyle.String()))
	}
	return strings.Join(parts, " ")
}

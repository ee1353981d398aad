// Package theme holds the TextMate-style color theme model: global settings,
// scope-selector rules, and the decoders that read them from JSON,
// property-list and YAML theme files.
package theme

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Theme parse errors.
var (
	ErrInvalidColor     = errors.New("invalid color")
	ErrInvalidFontStyle = errors.New("invalid font style")
	ErrMissingGlobals   = errors.New("theme has no global settings")
)

// Color is an RGBA color. A = 0xFF is fully opaque.
type Color struct {
	R, G, B, A uint8
}

// ParseColor accepts #RGB, #RRGGBB and #RRGGBBAA.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MustParseColor is ParseColor for literals.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the color as #rrggbb, dropping alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String returns #rrggbb, or #rrggbbaa when the color is translucent.
func (c Color) String() string {
	if c.A == 0xff {
		return c.Hex()
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Blend composites c over bg and returns an opaque color.
func (c Color) Blend(bg Color) Color {
	if c.A == 0xff {
		return c
	}
	mix := func(fg, bg uint8) uint8 {
		return uint8((int(fg)*int(c.A) + int(bg)*(0xff-int(c.A)) + 0x7f) / 0xff)
	}
	return Color{R: mix(c.R, bg.R), G: mix(c.G, bg.G), B: mix(c.B, bg.B), A: 0xff}
}

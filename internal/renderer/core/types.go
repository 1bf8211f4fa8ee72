// Package core provides shared types for the renderer subsystem.
// This package breaks import cycles between console and backend.
package core

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a four component (RGBA) color with straight, non-premultiplied alpha.
type Color struct {
	R, G, B, A uint8
}

// Common colors.
var (
	ColorBlack   = Color{R: 0, G: 0, B: 0, A: 255}
	ColorWhite   = Color{R: 255, G: 255, B: 255, A: 255}
	ColorRed     = Color{R: 255, G: 0, B: 0, A: 255}
	ColorGreen   = Color{R: 0, G: 255, B: 0, A: 255}
	ColorBlue    = Color{R: 0, G: 0, B: 255, A: 255}
	ColorYellow  = Color{R: 255, G: 255, B: 0, A: 255}
	ColorCyan    = Color{R: 0, G: 255, B: 255, A: 255}
	ColorMagenta = Color{R: 255, G: 0, B: 255, A: 255}
	ColorGray    = Color{R: 128, G: 128, B: 128, A: 255}
)

// ColorFromRGB creates an opaque color from RGB components.
func ColorFromRGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 255}
}

// ColorFromRGBA creates a color from RGBA components.
func ColorFromRGBA(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// ColorFromFloats creates a color from normalized components in [0, 1].
// Out of range components are clamped.
func ColorFromFloats(r, g, b, a float32) Color {
	return Color{R: unitToByte(r), G: unitToByte(g), B: unitToByte(b), A: unitToByte(a)}
}

func unitToByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// ColorFromHex creates a color from a hex string.
// Accepted forms are RGB, RRGGBB and RRGGBBAA, with an optional leading '#'.
func ColorFromHex(hex string) (Color, error) {
	raw := hex
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}

	switch len(hex) {
	case 6:
		hex += "FF"
	case 8:
	default:
		return Color{}, fmt.Errorf("invalid hex color length: %s", raw)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color: %s", raw)
	}

	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// IsTransparent returns true if the color has zero alpha.
func (c Color) IsTransparent() bool {
	return c.A == 0
}

// Floats returns the normalized RGBA components.
func (c Color) Floats() (r, g, b, a float32) {
	return float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255
}

// Equals returns true if two colors are equal.
func (c Color) Equals(other Color) bool {
	return c == other
}

// String returns the #RRGGBBAA representation of the color.
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// Rotation is the orientation applied to output when it reaches the surface.
// Rotations are clockwise.
type Rotation int

const (
	RotationIdentity Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// String returns the rotation in degrees.
func (r Rotation) String() string {
	switch r {
	case RotationIdentity:
		return "0"
	case Rotate90:
		return "90"
	case Rotate180:
		return "180"
	case Rotate270:
		return "270"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the defined rotations.
func (r Rotation) Valid() bool {
	return r >= RotationIdentity && r <= Rotate270
}

// Next returns the rotation a further 90 degrees clockwise.
func (r Rotation) Next() Rotation {
	return (r + 1) % 4
}

// Transposes reports whether the rotation swaps width and height.
func (r Rotation) Transposes() bool {
	return r == Rotate90 || r == Rotate270
}

// ParseRotation parses a rotation given in degrees ("0", "90", "180", "270").
// An empty string parses as RotationIdentity.
func ParseRotation(s string) (Rotation, error) {
	switch strings.TrimSuffix(strings.TrimSpace(s), "deg") {
	case "", "0", "identity":
		return RotationIdentity, nil
	case "90":
		return Rotate90, nil
	case "180":
		return Rotate180, nil
	case "270":
		return Rotate270, nil
	default:
		return RotationIdentity, fmt.Errorf("invalid rotation: %q", s)
	}
}

// ScreenPos represents a position on a surface in surface units.
type ScreenPos struct {
	X int
	Y int
}

// NewScreenPos creates a screen position.
func NewScreenPos(x, y int) ScreenPos {
	return ScreenPos{X: x, Y: y}
}

// Add returns a new position offset by the given delta.
func (p ScreenPos) Add(dx, dy int) ScreenPos {
	return ScreenPos{X: p.X + dx, Y: p.Y + dy}
}

// ScreenRect represents a rectangular region on a surface.
type ScreenRect struct {
	Left   int // First column (inclusive)
	Top    int // First row (inclusive)
	Right  int // Last column (exclusive)
	Bottom int // Last row (exclusive)
}

// NewScreenRect creates a screen rectangle.
func NewScreenRect(left, top, right, bottom int) ScreenRect {
	return ScreenRect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// RectFromSize creates a rectangle from an origin and a size.
func RectFromSize(left, top, width, height int) ScreenRect {
	return ScreenRect{Left: left, Top: top, Right: left + width, Bottom: top + height}
}

// Width returns the width of the rectangle.
func (r ScreenRect) Width() int {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the height of the rectangle.
func (r ScreenRect) Height() int {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

// Size returns width and height.
func (r ScreenRect) Size() (width, height int) {
	return r.Width(), r.Height()
}

// IsEmpty returns true if the rectangle has no area.
func (r ScreenRect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// TopLeft returns the top-left corner position.
func (r ScreenRect) TopLeft() ScreenPos {
	return ScreenPos{X: r.Left, Y: r.Top}
}

// Contains returns true if pos is within the rectangle.
func (r ScreenRect) Contains(pos ScreenPos) bool {
	return pos.X >= r.Left && pos.X < r.Right &&
		pos.Y >= r.Top && pos.Y < r.Bottom
}

// Equals returns true if two rectangles are identical.
func (r ScreenRect) Equals(other ScreenRect) bool {
	return r == other
}

// String returns "(left,top)-(right,bottom)".
func (r ScreenRect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

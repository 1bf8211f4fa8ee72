// Package backend provides the rendering surface abstraction for the console.
//
// A Device is the host context that fonts and glyph batches are created
// against. A Font supplies the fixed cell metrics used to size the text grid.
// A Batch collects text draw calls between Begin and End and submits them to
// the surface in one go.
package backend

import (
	"errors"

	"github.com/dshills/textconsole/internal/renderer/core"
)

// Backend errors.
var (
	// ErrUnknownFont indicates the device has no font with the requested name.
	ErrUnknownFont = errors.New("unknown font")

	// ErrForeignFont indicates a font created by a different device was passed in.
	ErrForeignFont = errors.New("font belongs to another device")
)

// Device is the host rendering context.
type Device interface {
	// LoadFont loads the named font asset.
	LoadFont(name string) (Font, error)

	// NewBatch creates a glyph batch that draws with the given font.
	// The font must have been loaded from the same device.
	NewBatch(font Font) (Batch, error)

	// Bounds returns the drawable area of the surface in surface units.
	Bounds() core.ScreenRect
}

// Font supplies glyph cell metrics for a monospace font.
type Font interface {
	// Name returns the name the font was loaded with.
	Name() string

	// CellSize returns the width and height of one character cell in
	// surface units. Both values are at least 1.
	CellSize() (width, height int)
}

// Batch collects text draw calls and submits them to the surface.
type Batch interface {
	// Begin starts a batch. Output is rotated clockwise by rot when it
	// reaches the surface.
	Begin(rot core.Rotation)

	// DrawString queues text with its top-left corner at pos.
	DrawString(text string, pos core.ScreenPos, color core.Color)

	// End submits all queued draw calls.
	End()
}

// rotateCell maps the cell (x, y) of a logical w×h grid onto the
// physical grid for the given clockwise rotation.
func rotateCell(x, y, w, h int, rot core.Rotation) (int, int) {
	switch rot {
	case core.Rotate90:
		return h - 1 - y, x
	case core.Rotate180:
		return w - 1 - x, h - 1 - y
	case core.Rotate270:
		return y, w - 1 - x
	default:
		return x, y
	}
}

// logicalSize returns the logical extent of a physical w×h surface as
// seen through the rotation.
func logicalSize(w, h int, rot core.Rotation) (int, int) {
	if rot.Transposes() {
		return h, w
	}
	return w, h
}

// LogicalBounds returns the surface of dev as seen by a batch drawing with
// rot: width and height swap for quarter turns.
func LogicalBounds(dev Device, rot core.Rotation) core.ScreenRect {
	w, h := logicalSize(dev.Bounds().Width(), dev.Bounds().Height(), rot)
	return core.RectFromSize(0, 0, w, h)
}

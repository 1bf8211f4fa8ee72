package backend

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/dshills/textconsole/internal/renderer/core"
)

// Built-in raster font names.
const (
	FontBasic  = "basic"  // 7×13 bitmap face
	FontGoMono = "gomono" // Go Mono outline face at RasterOptions.FontSize
)

// RasterOptions configures a Raster device.
type RasterOptions struct {
	// FontSize is the point size used for outline fonts.
	FontSize float64
	// DPI is the resolution used for outline fonts.
	DPI float64
	// Background is the color the surface is cleared to on Begin.
	Background core.Color
}

// DefaultRasterOptions returns the default raster configuration.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		FontSize:   12,
		DPI:        72,
		Background: core.ColorBlack,
	}
}

// Raster implements Device on an in-memory RGBA image using
// golang.org/x/image font faces.
type Raster struct {
	mu   sync.Mutex
	dst  *image.RGBA
	opts RasterOptions
}

// NewRaster creates a raster surface of the given size in pixels.
func NewRaster(width, height int, opts RasterOptions) *Raster {
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultRasterOptions().FontSize
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultRasterOptions().DPI
	}
	return &Raster{
		dst:  image.NewRGBA(image.Rect(0, 0, max(1, width), max(1, height))),
		opts: opts,
	}
}

func (r *Raster) Bounds() core.ScreenRect {
	b := r.dst.Bounds()
	return core.NewScreenRect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
}

// Image returns a copy of the current surface contents.
func (r *Raster) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := image.NewRGBA(r.dst.Bounds())
	copy(out.Pix, r.dst.Pix)
	return out
}

// EncodePNG writes the current surface contents as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.Image())
}

// LoadFont loads a built-in face (FontBasic, FontGoMono) or an OpenType
// or TrueType file when name ends in .ttf or .otf.
func (r *Raster) LoadFont(name string) (Font, error) {
	var face font.Face

	switch {
	case name == "" || name == FontBasic:
		face = basicfont.Face7x13
	case name == FontGoMono:
		f, err := r.outlineFace(gomono.TTF)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		face = f
	case isFontFile(name):
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading font %s: %w", name, err)
		}
		f, err := r.outlineFace(data)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		face = f
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFont, name)
	}

	return newRasterFont(r, name, face), nil
}

func (r *Raster) outlineFace(data []byte) (font.Face, error) {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    r.opts.FontSize,
		DPI:     r.opts.DPI,
		Hinting: font.HintingFull,
	})
}

func isFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

func (r *Raster) NewBatch(f Font) (Batch, error) {
	rf, ok := f.(*rasterFont)
	if !ok || rf.owner != r {
		return nil, ErrForeignFont
	}
	return &rasterBatch{owner: r, font: rf}, nil
}

// rasterFont wraps a font.Face with fixed cell metrics taken from the
// advance of 'M' and the face line height.
type rasterFont struct {
	owner  *Raster
	name   string
	face   font.Face
	width  int
	height int
	ascent int
}

func newRasterFont(owner *Raster, name string, face font.Face) *rasterFont {
	m := face.Metrics()
	adv, ok := face.GlyphAdvance('M')
	if !ok {
		adv = m.Height / 2
	}
	return &rasterFont{
		owner:  owner,
		name:   name,
		face:   face,
		width:  max(1, adv.Ceil()),
		height: max(1, m.Height.Ceil()),
		ascent: m.Ascent.Ceil(),
	}
}

func (f *rasterFont) Name() string         { return f.name }
func (f *rasterFont) CellSize() (int, int) { return f.width, f.height }

// Close releases the face. Built-in bitmap faces are shared and left open.
func (f *rasterFont) Close() error {
	if f.face == basicfont.Face7x13 {
		return nil
	}
	return f.face.Close()
}

// rasterBatch draws upright into an offscreen canvas and composites it
// onto the surface with the batch rotation on End.
type rasterBatch struct {
	owner  *Raster
	font   *rasterFont
	rot    core.Rotation
	canvas *image.RGBA
	open   bool
}

func (b *rasterBatch) Begin(rot core.Rotation) {
	b.owner.mu.Lock()
	size := b.owner.dst.Bounds().Size()
	b.owner.mu.Unlock()

	lw, lh := logicalSize(size.X, size.Y, rot)
	if b.canvas == nil || b.canvas.Bounds().Dx() != lw || b.canvas.Bounds().Dy() != lh {
		b.canvas = image.NewRGBA(image.Rect(0, 0, lw, lh))
	}
	draw.Draw(b.canvas, b.canvas.Bounds(), image.NewUniform(b.owner.opts.Background), image.Point{}, draw.Src)

	b.rot = rot
	b.open = true
}

func (b *rasterBatch) DrawString(text string, pos core.ScreenPos, color core.Color) {
	if !b.open || color.IsTransparent() {
		return
	}
	d := font.Drawer{
		Dst:  b.canvas,
		Src:  image.NewUniform(color),
		Face: b.font.face,
		Dot:  fixed.P(pos.X, pos.Y+b.font.ascent),
	}
	d.DrawString(text)
}

func (b *rasterBatch) End() {
	if !b.open {
		return
	}
	b.open = false

	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()

	dst := b.owner.dst
	if b.rot == core.RotationIdentity {
		draw.Draw(dst, dst.Bounds(), b.canvas, image.Point{}, draw.Src)
		return
	}
	draw.NearestNeighbor.Transform(dst, rotationMatrix(b.canvas.Bounds().Size(), b.rot), b.canvas, b.canvas.Bounds(), draw.Src, nil)
}

// rotationMatrix maps canvas coordinates to surface coordinates for a
// clockwise rotation of a canvas of the given logical size.
func rotationMatrix(size image.Point, rot core.Rotation) f64.Aff3 {
	w, h := float64(size.X), float64(size.Y)
	switch rot {
	case core.Rotate90:
		return f64.Aff3{0, -1, h, 1, 0, 0}
	case core.Rotate180:
		return f64.Aff3{-1, 0, w, 0, -1, h}
	case core.Rotate270:
		return f64.Aff3{0, 1, 0, -1, 0, w}
	default:
		return f64.Aff3{1, 0, 0, 0, 1, 0}
	}
}

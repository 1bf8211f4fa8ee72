package console

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/textconsole/internal/renderer/backend"
	"github.com/dshills/textconsole/internal/renderer/core"
)

// Sink receives lines echoed by debug output.
type Sink interface {
	Line(text string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(text string)

// Line calls f(text).
func (f SinkFunc) Line(text string) { f(text) }

// GridFor derives the text grid that fits layout when every character
// occupies a cellWidth×cellHeight cell. Both results are at least 1, so
// empty or inverted rectangles yield a 1×1 grid.
func GridFor(layout core.ScreenRect, cellWidth, cellHeight int) (columns, rows int) {
	cellWidth = max(1, cellWidth)
	cellHeight = max(1, cellHeight)
	return max(1, layout.Width()/cellWidth), max(1, layout.Height()/cellHeight)
}

// Console is a scrolling text grid drawn onto a rendering surface.
//
// Write, WriteLine, Format and Clear may be called from any goroutine.
// Render, SetLayout, the display setters and the device methods belong
// to the goroutine that owns the surface.
type Console struct {
	id  string
	buf *LineBuffer
	log *logrus.Entry

	// display state, owned by the rendering goroutine
	layout   core.ScreenRect
	color    core.Color
	rotation core.Rotation
	cellW    int
	cellH    int

	debug atomic.Bool
	sink  Sink

	// device resources
	devMu    sync.Mutex
	device   backend.Device
	font     backend.Font
	batch    backend.Batch
	fontName string

	rows []string
}

// Option configures a Console.
type Option func(*Console)

// WithSink sets the diagnostic sink used when debug output is enabled.
func WithSink(s Sink) Option {
	return func(c *Console) {
		c.sink = s
	}
}

// WithLogger sets the logger used for device lifecycle messages.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Console) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCellSize sets the cell metrics used while no font is loaded.
func WithCellSize(width, height int) Option {
	return func(c *Console) {
		c.cellW = max(1, width)
		c.cellH = max(1, height)
	}
}

// WithForeground sets the initial text color.
func WithForeground(color core.Color) Option {
	return func(c *Console) {
		c.color = color
	}
}

// WithRotation sets the initial output rotation.
func WithRotation(rot core.Rotation) Option {
	return func(c *Console) {
		c.rotation = rot
	}
}

// New creates a console without a device. It holds a 1×1 grid until
// SetLayout is called, and Render does nothing until RestoreDevice.
func New(opts ...Option) *Console {
	c := &Console{
		id:    uuid.New().String(),
		buf:   NewLineBuffer(1, 1),
		color: core.ColorWhite,
		cellW: 1,
		cellH: 1,
	}
	c.log = logrus.NewEntry(logrus.StandardLogger())

	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("console", c.id)
	return c
}

// NewWithDevice creates a console and acquires its device resources.
func NewWithDevice(dev backend.Device, fontName string, opts ...Option) (*Console, error) {
	c := New(opts...)
	if err := c.RestoreDevice(dev, fontName); err != nil {
		return nil, err
	}
	return c, nil
}

// ID returns the console's unique identifier.
func (c *Console) ID() string {
	return c.id
}

// Buffer returns the underlying line buffer.
func (c *Console) Buffer() *LineBuffer {
	return c.buf
}

func (c *Console) echo(line string) {
	if c.sink != nil && c.debug.Load() {
		c.sink.Line(line)
	}
}

// Clear empties the console.
func (c *Console) Clear() {
	c.buf.Clear()
}

// Write appends text at the cursor.
func (c *Console) Write(text string) {
	c.buf.Write(text)
}

// WriteLine appends text and ends the line.
func (c *Console) WriteLine(text string) {
	c.buf.WriteLine(text)
}

// Writer returns an io.Writer that writes into the console. Each call to
// its Write method is applied atomically.
func (c *Console) Writer() io.Writer {
	return consoleWriter{c}
}

type consoleWriter struct {
	c *Console
}

func (w consoleWriter) Write(p []byte) (int, error) {
	w.c.buf.Write(string(p))
	return len(p), nil
}

// SetLayout sets the area the console draws into and rebuilds the grid to
// fit it. Existing text is discarded.
func (c *Console) SetLayout(layout core.ScreenRect) {
	c.layout = layout

	cw, ch := c.cellSize()
	columns, rows := GridFor(layout, cw, ch)
	c.buf.Resize(columns, rows)
}

// Layout returns the current layout rectangle.
func (c *Console) Layout() core.ScreenRect {
	return c.layout
}

func (c *Console) cellSize() (int, int) {
	c.devMu.Lock()
	defer c.devMu.Unlock()

	if c.font != nil {
		return c.font.CellSize()
	}
	return c.cellW, c.cellH
}

// SetForegroundColor sets the text color.
func (c *Console) SetForegroundColor(color core.Color) {
	c.color = color
}

// ForegroundColor returns the text color.
func (c *Console) ForegroundColor() core.Color {
	return c.color
}

// SetDebugOutput enables or disables echoing completed lines to the sink.
// Lines are only collected while it is enabled.
func (c *Console) SetDebugOutput(debug bool) {
	if c.debug.Swap(debug) == debug {
		return
	}
	if debug {
		c.buf.OnLine(c.echo)
	} else {
		c.buf.OnLine(nil)
	}
}

// DebugOutput reports whether debug output is enabled.
func (c *Console) DebugOutput() bool {
	return c.debug.Load()
}

// SetRotation sets the output rotation.
func (c *Console) SetRotation(rot core.Rotation) {
	c.rotation = rot
}

// Rotation returns the output rotation.
func (c *Console) Rotation() core.Rotation {
	return c.rotation
}

// Render draws every non-empty row, oldest at the top. It does nothing
// while no device is attached.
func (c *Console) Render() {
	c.devMu.Lock()
	batch, font := c.batch, c.font
	c.devMu.Unlock()
	if batch == nil || font == nil {
		return
	}

	c.rows = c.buf.Snapshot(c.rows[:0])
	_, cellH := font.CellSize()

	batch.Begin(c.rotation)
	pos := c.layout.TopLeft()
	for _, row := range c.rows {
		if row != "" {
			batch.DrawString(row, pos, c.color)
		}
		pos = pos.Add(0, cellH)
	}
	batch.End()
}

// ReleaseDevice drops the font and batch. Text is kept and Render does
// nothing until RestoreDevice is called.
func (c *Console) ReleaseDevice() {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	c.releaseLocked()
}

func (c *Console) releaseLocked() {
	for _, r := range []any{c.batch, c.font} {
		if closer, ok := r.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.log.WithError(err).Warn("releasing device resource")
			}
		}
	}
	c.batch = nil
	c.font = nil
	c.device = nil
}

// RestoreDevice acquires the font and batch from dev and recomputes the
// layout, which clears the text. On failure the console is left without
// a device.
func (c *Console) RestoreDevice(dev backend.Device, fontName string) error {
	c.devMu.Lock()
	c.releaseLocked()

	font, err := dev.LoadFont(fontName)
	if err != nil {
		c.devMu.Unlock()
		return &DeviceError{Op: "load font", Font: fontName, Err: err}
	}
	batch, err := dev.NewBatch(font)
	if err != nil {
		if closer, ok := font.(io.Closer); ok {
			_ = closer.Close()
		}
		c.devMu.Unlock()
		return &DeviceError{Op: "create batch", Font: fontName, Err: err}
	}

	c.device = dev
	c.font = font
	c.batch = batch
	c.fontName = fontName
	c.devMu.Unlock()

	cw, ch := font.CellSize()
	c.log.WithFields(logrus.Fields{"font": fontName, "cell": [2]int{cw, ch}}).Debug("device restored")

	c.SetLayout(c.layout)
	return nil
}

// FontName returns the name of the font last restored.
func (c *Console) FontName() string {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	return c.fontName
}

// Lines returns the non-empty rows, oldest first.
func (c *Console) Lines() []string {
	return c.buf.Lines()
}

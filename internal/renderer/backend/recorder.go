package backend

import (
	"sync"

	"github.com/dshills/textconsole/internal/renderer/core"
)

// DrawCall is a single text draw call captured by a Recorder.
type DrawCall struct {
	Text     string
	Pos      core.ScreenPos
	Color    core.Color
	Rotation core.Rotation
}

// Recorder is an in-memory device that records draw calls instead of
// rasterizing them. It is used for testing and for headless runs.
type Recorder struct {
	mu       sync.Mutex
	bounds   core.ScreenRect
	fonts    map[string][2]int
	frames   [][]DrawCall
	loadErr  error
	batchErr error
	released int
}

// NewRecorder creates a recorder with the given surface size. The font
// "default" is registered with a 1×1 cell.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{
		bounds: core.RectFromSize(0, 0, width, height),
		fonts:  map[string][2]int{"default": {1, 1}},
	}
}

// AddFont registers a font name with the given cell metrics.
func (r *Recorder) AddFont(name string, cellWidth, cellHeight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fonts[name] = [2]int{max(1, cellWidth), max(1, cellHeight)}
}

// FailLoad makes subsequent LoadFont calls return err (nil clears it).
func (r *Recorder) FailLoad(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadErr = err
}

// FailBatch makes subsequent NewBatch calls return err (nil clears it).
func (r *Recorder) FailBatch(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchErr = err
}

func (r *Recorder) LoadFont(name string) (Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadErr != nil {
		return nil, r.loadErr
	}
	m, ok := r.fonts[name]
	if !ok {
		return nil, ErrUnknownFont
	}
	return &recordedFont{owner: r, name: name, w: m[0], h: m[1]}, nil
}

func (r *Recorder) NewBatch(font Font) (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.batchErr != nil {
		return nil, r.batchErr
	}
	f, ok := font.(*recordedFont)
	if !ok || f.owner != r {
		return nil, ErrForeignFont
	}
	return &recordedBatch{owner: r}, nil
}

func (r *Recorder) Bounds() core.ScreenRect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bounds
}

// Resize changes the reported surface size.
func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds = core.RectFromSize(0, 0, width, height)
}

// Frames returns the number of completed batches.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// LastFrame returns the draw calls of the most recently completed batch.
func (r *Recorder) LastFrame() []DrawCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	last := r.frames[len(r.frames)-1]
	out := make([]DrawCall, len(last))
	copy(out, last)
	return out
}

// Released returns how many fonts and batches have been closed.
func (r *Recorder) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func (r *Recorder) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released++
}

type recordedFont struct {
	owner *Recorder
	name  string
	w, h  int
}

func (f *recordedFont) Name() string         { return f.name }
func (f *recordedFont) CellSize() (int, int) { return f.w, f.h }

func (f *recordedFont) Close() error {
	f.owner.release()
	return nil
}

type recordedBatch struct {
	owner *Recorder
	rot   core.Rotation
	calls []DrawCall
	open  bool
}

func (b *recordedBatch) Begin(rot core.Rotation) {
	b.rot = rot
	b.calls = b.calls[:0]
	b.open = true
}

func (b *recordedBatch) DrawString(text string, pos core.ScreenPos, color core.Color) {
	if !b.open {
		return
	}
	b.calls = append(b.calls, DrawCall{Text: text, Pos: pos, Color: color, Rotation: b.rot})
}

func (b *recordedBatch) Close() error {
	b.owner.release()
	return nil
}

func (b *recordedBatch) End() {
	if !b.open {
		return
	}
	b.open = false
	frame := make([]DrawCall, len(b.calls))
	copy(frame, b.calls)

	b.owner.mu.Lock()
	b.owner.frames = append(b.owner.frames, frame)
	b.owner.mu.Unlock()
}

package console

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"github.com/dshills/textconsole/internal/renderer/backend"
	"github.com/dshills/textconsole/internal/renderer/core"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newRecorded(t *testing.T, width, height, cellW, cellH int, opts ...Option) (*Console, *backend.Recorder) {
	t.Helper()
	rec := backend.NewRecorder(width, height)
	rec.AddFont("mono", cellW, cellH)

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := NewWithDevice(rec, "mono", opts...)
	if err != nil {
		t.Fatalf("NewWithDevice failed: %v", err)
	}
	c.SetLayout(rec.Bounds())
	return c, rec
}

func TestGridFor(t *testing.T) {
	tests := []struct {
		name         string
		layout       core.ScreenRect
		cellW, cellH int
		cols, rows   int
	}{
		{"exact", core.RectFromSize(0, 0, 80, 32), 8, 16, 10, 2},
		{"remainder", core.RectFromSize(0, 0, 85, 40), 8, 16, 10, 2},
		{"offset origin", core.NewScreenRect(10, 10, 90, 42), 8, 16, 10, 2},
		{"zero area", core.RectFromSize(0, 0, 0, 0), 8, 16, 1, 1},
		{"inverted", core.NewScreenRect(50, 50, 0, 0), 8, 16, 1, 1},
		{"smaller than a cell", core.RectFromSize(0, 0, 3, 3), 8, 16, 1, 1},
		{"zero cell", core.RectFromSize(0, 0, 5, 4), 0, -1, 5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows := GridFor(tt.layout, tt.cellW, tt.cellH)
			if cols != tt.cols || rows != tt.rows {
				t.Errorf("GridFor = %dx%d, want %dx%d", cols, rows, tt.cols, tt.rows)
			}
		})
	}
}

func TestSetLayoutDerivesGrid(t *testing.T) {
	c, _ := newRecorded(t, 80, 48, 8, 16)

	cols, rows := c.Buffer().Size()
	if cols != 10 || rows != 3 {
		t.Errorf("grid = %dx%d, want 10x3", cols, rows)
	}
}

func TestSetLayoutClearsText(t *testing.T) {
	c, _ := newRecorded(t, 80, 48, 8, 16)
	c.WriteLine("hello")

	c.SetLayout(core.RectFromSize(0, 0, 40, 32))
	if got := c.Lines(); len(got) != 0 {
		t.Errorf("text survived relayout: %q", got)
	}
	cols, rows := c.Buffer().Size()
	if cols != 5 || rows != 2 {
		t.Errorf("grid = %dx%d, want 5x2", cols, rows)
	}
}

func TestRenderDrawsRowsOldestFirst(t *testing.T) {
	c, rec := newRecorded(t, 80, 48, 8, 16, WithForeground(core.ColorYellow), WithRotation(core.Rotate180))

	c.WriteLine("hello")
	c.WriteLine("world12345")
	c.Write("x")
	c.Render()

	frame := rec.LastFrame()
	want := []backend.DrawCall{
		{Text: "hello", Pos: core.NewScreenPos(0, 0)},
		{Text: "world12345", Pos: core.NewScreenPos(0, 16)},
		{Text: "x", Pos: core.NewScreenPos(0, 32)},
	}
	if len(frame) != len(want) {
		t.Fatalf("expected %d draw calls, got %d: %+v", len(want), len(frame), frame)
	}
	for i, w := range want {
		got := frame[i]
		if got.Text != w.Text || got.Pos != w.Pos {
			t.Errorf("call %d = %q at %+v, want %q at %+v", i, got.Text, got.Pos, w.Text, w.Pos)
		}
		if !got.Color.Equals(core.ColorYellow) {
			t.Errorf("call %d color = %v", i, got.Color)
		}
		if got.Rotation != core.Rotate180 {
			t.Errorf("call %d rotation = %v", i, got.Rotation)
		}
	}
}

func TestRenderSkipsEmptyRowsButKeepsPositions(t *testing.T) {
	c, rec := newRecorded(t, 80, 64, 8, 16)

	c.Write("a\n\nb")
	c.Render()

	frame := rec.LastFrame()
	if len(frame) != 2 {
		t.Fatalf("expected 2 draw calls, got %+v", frame)
	}
	// Rows: [empty][a][empty][b] with the oldest empty slot on top.
	if frame[0].Text != "a" || frame[0].Pos.Y != 16 {
		t.Errorf("first call = %+v", frame[0])
	}
	if frame[1].Text != "b" || frame[1].Pos.Y != 48 {
		t.Errorf("second call = %+v", frame[1])
	}
}

func TestRenderUsesLayoutOrigin(t *testing.T) {
	c, rec := newRecorded(t, 200, 200, 10, 20)
	c.SetLayout(core.NewScreenRect(30, 40, 130, 100))
	c.Write("hi")
	c.Render()

	frame := rec.LastFrame()
	if len(frame) != 1 {
		t.Fatalf("expected 1 draw call, got %+v", frame)
	}
	// Three rows; "hi" sits in the cursor row at the bottom.
	if want := core.NewScreenPos(30, 80); frame[0].Pos != want {
		t.Errorf("pos = %+v, want %+v", frame[0].Pos, want)
	}
}

func TestClearThenRenderDrawsNothing(t *testing.T) {
	c, rec := newRecorded(t, 80, 48, 8, 16)
	c.WriteLine("one")
	c.Write("two")

	c.Clear()
	c.Render()

	if rec.Frames() != 1 {
		t.Fatalf("expected a frame to be submitted, got %d", rec.Frames())
	}
	if frame := rec.LastFrame(); len(frame) != 0 {
		t.Errorf("expected no draw calls, got %+v", frame)
	}
}

func TestRenderWithoutDeviceIsNoop(t *testing.T) {
	c := New(WithLogger(quietLogger()))
	c.SetLayout(core.RectFromSize(0, 0, 10, 2))
	c.Write("text")
	c.Render()

	if got := c.Lines(); len(got) != 1 || got[0] != "text" {
		t.Errorf("lines = %q", got)
	}
}

func TestDeviceLessCellSize(t *testing.T) {
	c := New(WithLogger(quietLogger()), WithCellSize(8, 16))
	c.SetLayout(core.RectFromSize(0, 0, 80, 48))

	cols, rows := c.Buffer().Size()
	if cols != 10 || rows != 3 {
		t.Errorf("grid = %dx%d, want 10x3", cols, rows)
	}
}

func TestReleaseDeviceKeepsText(t *testing.T) {
	c, rec := newRecorded(t, 80, 48, 8, 16)
	c.Write("kept")

	c.ReleaseDevice()
	if rec.Released() != 2 {
		t.Errorf("expected font and batch to be closed, released=%d", rec.Released())
	}

	c.Render()
	if rec.Frames() != 0 {
		t.Error("render after release should not submit frames")
	}
	if got := c.Lines(); len(got) != 1 || got[0] != "kept" {
		t.Errorf("text lost on release: %q", got)
	}
}

func TestRestoreDeviceRecomputesLayout(t *testing.T) {
	c, rec := newRecorded(t, 80, 48, 8, 16)
	c.Write("lost")

	rec.AddFont("big", 16, 24)
	c.ReleaseDevice()
	if err := c.RestoreDevice(rec, "big"); err != nil {
		t.Fatalf("RestoreDevice failed: %v", err)
	}

	if got := c.Lines(); len(got) != 0 {
		t.Errorf("restore should clear text, got %q", got)
	}
	cols, rows := c.Buffer().Size()
	if cols != 5 || rows != 2 {
		t.Errorf("grid = %dx%d, want 5x2", cols, rows)
	}
	if c.FontName() != "big" {
		t.Errorf("font = %q", c.FontName())
	}
}

func TestRestoreDeviceFailure(t *testing.T) {
	c, rec := newRecorded(t, 80, 48, 8, 16)

	boom := errors.New("device lost")
	rec.FailBatch(boom)
	err := c.RestoreDevice(rec, "mono")

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if devErr.Op != "create batch" || !errors.Is(err, boom) {
		t.Errorf("unexpected error %v", err)
	}

	c.Write("x")
	c.Render()
	if rec.Frames() != 0 {
		t.Error("console without device should not render")
	}

	if _, err := NewWithDevice(rec, "nope"); !errors.Is(err, backend.ErrUnknownFont) {
		t.Errorf("expected ErrUnknownFont, got %v", err)
	}
}

func TestDebugOutputEchoesCompletedLines(t *testing.T) {
	var mu sync.Mutex
	var echoed []string
	sink := SinkFunc(func(s string) {
		mu.Lock()
		defer mu.Unlock()
		echoed = append(echoed, s)
	})

	c, _ := newRecorded(t, 40, 48, 8, 16, WithSink(sink))

	c.WriteLine("before")
	c.SetDebugOutput(true)
	c.Write("wrapping past five")
	c.Write(" columns\nsecond")
	c.WriteLine("")
	c.Render()
	c.Render()
	c.SetDebugOutput(false)
	c.WriteLine("after")

	want := []string{"wrapping past five columns", "second"}
	if strings.Join(echoed, "|") != strings.Join(want, "|") {
		t.Errorf("echoed = %q, want %q", echoed, want)
	}
	if c.DebugOutput() {
		t.Error("debug output should be off")
	}
}

func TestFormat(t *testing.T) {
	c, _ := newRecorded(t, 160, 32, 8, 16)
	c.Format("%d items at %.1f%%", 3, 99.5)

	if got := c.Lines(); len(got) != 1 || got[0] != "3 items at 99.5%" {
		t.Errorf("lines = %q", got)
	}
}

func TestFormatTruncatesAtBound(t *testing.T) {
	long := strings.Repeat("é", MaxFormatBytes)
	got := formatBounded("%s", long)

	if len(got) > MaxFormatBytes {
		t.Errorf("formatted length %d exceeds bound", len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncation should keep a valid prefix")
	}
	if got := formatBounded("%s-%d", "ok", 1); got != "ok-1" {
		t.Errorf("short format = %q", got)
	}
}

func TestFormatScratchStopsGrowingAtBound(t *testing.T) {
	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)

	w := &boundedWriter{buf: scratch, limit: 8}
	for _, chunk := range []string{"abcde", "fghij", "klm"} {
		if n, err := w.Write([]byte(chunk)); n != len(chunk) || err != nil {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	if got := string(scratch.B); got != "abcdefgh" {
		t.Errorf("scratch = %q, want %q", got, "abcdefgh")
	}

	scratch.Reset()
	fmt.Fprintf(&boundedWriter{buf: scratch, limit: MaxFormatBytes}, "%s", strings.Repeat("x", 4*MaxFormatBytes))
	if scratch.Len() != MaxFormatBytes {
		t.Errorf("scratch holds %d bytes, want %d", scratch.Len(), MaxFormatBytes)
	}
}

func pendingBytes(b *LineBuffer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.Len()
}

func TestUnterminatedStreamWithoutDebugOutput(t *testing.T) {
	c := New()
	chunk := strings.Repeat("x", 1024)
	for range 4096 {
		c.Write(chunk)
	}

	if n := pendingBytes(c.Buffer()); n != 0 {
		t.Errorf("retained %d bytes of unterminated text with debug output off", n)
	}
	if got := c.Lines(); len(got) != 1 || got[0] != "x" {
		t.Errorf("lines = %q", got)
	}
}

func TestUnterminatedStreamWithDebugOutput(t *testing.T) {
	var pieces []int
	c := New(WithSink(SinkFunc(func(s string) { pieces = append(pieces, len(s)) })))
	c.SetDebugOutput(true)

	chunk := strings.Repeat("x", 1024)
	for range 4 * maxPendingBytes / len(chunk) {
		c.Write(chunk)
	}
	if n := pendingBytes(c.Buffer()); n > maxPendingBytes {
		t.Errorf("retained %d bytes, bound is %d", n, maxPendingBytes)
	}

	c.WriteLine("")
	if len(pieces) != 4 {
		t.Fatalf("echoed %d pieces, want 4", len(pieces))
	}
	for i, n := range pieces {
		if n != maxPendingBytes {
			t.Errorf("piece %d has %d bytes, want %d", i, n, maxPendingBytes)
		}
	}

	c.Write("partial")
	c.SetDebugOutput(false)
	if n := pendingBytes(c.Buffer()); n != 0 {
		t.Errorf("disabling debug output kept %d bytes", n)
	}
}

func TestWriterAdapter(t *testing.T) {
	c, _ := newRecorded(t, 80, 48, 8, 16)

	n, err := fmt.Fprintf(c.Writer(), "via %s\n", "writer")
	if err != nil || n != len("via writer\n") {
		t.Fatalf("Fprintf = %d, %v", n, err)
	}
	if got := c.Lines(); len(got) != 1 || got[0] != "via writer" {
		t.Errorf("lines = %q", got)
	}
}

func TestConcurrentWritesWhileRendering(t *testing.T) {
	c, rec := newRecorded(t, 80, 160, 8, 16)

	var wg sync.WaitGroup
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Format("w%d:%d\n", id, i)
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		c.Render()
		select {
		case <-done:
			c.Render()
			for _, call := range rec.LastFrame() {
				if !strings.HasPrefix(call.Text, "w") || !strings.Contains(call.Text, ":") {
					t.Errorf("corrupted row %q", call.Text)
				}
			}
			return
		default:
		}
	}
}

func TestConsoleIDsAreUnique(t *testing.T) {
	a := New(WithLogger(quietLogger()))
	b := New(WithLogger(quietLogger()))
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("ids %q and %q should be distinct", a.ID(), b.ID())
	}
}

func FuzzSetLayout(f *testing.F) {
	f.Add(0, 0, 0, 0, 8, 16, "hello\nworld")
	f.Add(-5, -5, 3, 2, 1, 1, strings.Repeat("x", 100))
	f.Add(10, 10, 9, 9, 0, 0, "\n\n\n")
	f.Add(0, 0, 1<<10, 1<<10, 1, 1, "é世界")

	f.Fuzz(func(t *testing.T, left, top, right, bottom, cellW, cellH int, text string) {
		// Keep grids small enough to allocate.
		if right-left > 1<<10 || bottom-top > 1<<10 {
			t.Skip()
		}
		c := New(WithLogger(quietLogger()), WithCellSize(cellW, cellH))
		c.SetLayout(core.NewScreenRect(left, top, right, bottom))
		c.Write(text)
		c.WriteLine(text)
		c.Format("%s", text)

		cols, rows := c.Buffer().Size()
		if cols < 1 || rows < 1 {
			t.Fatalf("grid %dx%d", cols, rows)
		}
		line, col := c.Buffer().Cursor()
		if line < 0 || line >= rows || col < 0 || col > cols {
			t.Fatalf("cursor (%d,%d) outside %dx%d", line, col, cols, rows)
		}
		for _, row := range c.Buffer().Snapshot(nil) {
			if n := len([]rune(row)); n > cols {
				t.Fatalf("row of %d characters in %d columns", n, cols)
			}
		}
	})
}

package console

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestNewLineBufferClampsSize(t *testing.T) {
	b := NewLineBuffer(0, -3)
	cols, rows := b.Size()
	if cols != 1 || rows != 1 {
		t.Errorf("expected 1x1, got %dx%d", cols, rows)
	}
}

func TestWriteShortString(t *testing.T) {
	tests := []string{"", "a", "hello", "0123456789"}

	for _, s := range tests {
		b := NewLineBuffer(10, 4)
		b.Clear()
		b.Write(s)

		line, col := b.Cursor()
		if got := b.Row(line); got != s {
			t.Errorf("Write(%q): active row = %q", s, got)
		}
		if col != len(s) {
			t.Errorf("Write(%q): column = %d, want %d", s, col, len(s))
		}
	}
}

func TestWriteWrapsAtColumnLimit(t *testing.T) {
	b := NewLineBuffer(5, 3)
	b.Write("abcde")

	line, col := b.Cursor()
	if line != 0 || col != 5 {
		t.Fatalf("after filling a row cursor = (%d,%d), want (0,5)", line, col)
	}

	b.Write("f")
	line, col = b.Cursor()
	if line != 1 || col != 1 {
		t.Errorf("after wrap cursor = (%d,%d), want (1,1)", line, col)
	}
	if got := b.Row(0); got != "abcde" {
		t.Errorf("full row mutated: %q", got)
	}
	if got := b.Row(1); got != "f" {
		t.Errorf("wrapped row = %q, want %q", got, "f")
	}
}

func TestWriteNeverExceedsColumns(t *testing.T) {
	b := NewLineBuffer(3, 4)
	b.Write(strings.Repeat("x", 11))

	for i := 0; i < 4; i++ {
		if n := len([]rune(b.Row(i))); n > 3 {
			t.Errorf("row %d holds %d characters", i, n)
		}
	}
	if got := strings.Join(b.Lines(), ""); got != strings.Repeat("x", 11) {
		t.Errorf("content = %q", got)
	}
}

func TestNewlineAdvancesAndClearsNextRow(t *testing.T) {
	b := NewLineBuffer(10, 2)
	b.Write("one\ntwo\n")

	// Row 0 was reused for the cursor and cleared; "one" scrolled off.
	line, col := b.Cursor()
	if line != 0 || col != 0 {
		t.Errorf("cursor = (%d,%d), want (0,0)", line, col)
	}
	if got := b.Row(0); got != "" {
		t.Errorf("reused row should be empty, got %q", got)
	}
	if got := b.Row(1); got != "two" {
		t.Errorf("row 1 = %q, want %q", got, "two")
	}
}

func TestNewlineShortensReusedRow(t *testing.T) {
	b := NewLineBuffer(10, 2)
	b.Write("long line!\nx\nab")

	if got := b.Row(0); got != "ab" {
		t.Errorf("reused row = %q, want %q", got, "ab")
	}
}

func TestWriteLineExample(t *testing.T) {
	b := NewLineBuffer(10, 3)
	b.WriteLine("hello")
	b.WriteLine("world12345")
	b.WriteLine("x")

	line, col := b.Cursor()
	if line != 0 || col != 0 {
		t.Fatalf("cursor after three advances = (%d,%d), want (0,0)", line, col)
	}
	// The third advance lands on row 0 and clears it for the next line.
	want := []string{"", "world12345", "x"}
	for i, w := range want {
		if got := b.Row(i); got != w {
			t.Errorf("row %d = %q, want %q", i, got, w)
		}
	}

	// Display order is oldest first with the cursor row at the bottom.
	got := b.Snapshot(nil)
	wantOrder := []string{"world12345", "x", ""}
	for i := range wantOrder {
		if got[i] != wantOrder[i] {
			t.Errorf("snapshot[%d] = %q, want %q", i, got[i], wantOrder[i])
		}
	}
}

func TestWriteLineExactFillDoesNotDoubleAdvance(t *testing.T) {
	b := NewLineBuffer(10, 3)
	b.WriteLine("world12345")

	line, _ := b.Cursor()
	if line != 1 {
		t.Errorf("exactly filled line should advance once, cursor on row %d", line)
	}
}

func TestRingScroll(t *testing.T) {
	const rows = 4
	b := NewLineBuffer(8, rows)

	lines := make([]string, rows+1)
	for i := range lines {
		lines[i] = fmt.Sprintf("line%d", i)
	}
	b.Write(strings.Join(lines, "\n"))

	got := b.Lines()
	if len(got) != rows {
		t.Fatalf("expected %d rows with content, got %d: %q", rows, len(got), got)
	}
	for _, l := range got {
		if l == lines[0] {
			t.Errorf("oldest line %q should have been overwritten", lines[0])
		}
	}
	for i, l := range got {
		if l != lines[i+1] {
			t.Errorf("row %d = %q, want %q", i, l, lines[i+1])
		}
	}
}

func TestRingScrollTerminatedLines(t *testing.T) {
	const rows = 4
	b := NewLineBuffer(8, rows)
	for i := 0; i <= rows; i++ {
		b.WriteLine(fmt.Sprintf("line%d", i))
	}

	// The row under the cursor is empty, so rows-1 lines remain visible.
	got := b.Lines()
	want := []string{"line2", "line3", "line4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestSingleRowBuffer(t *testing.T) {
	b := NewLineBuffer(3, 1)
	b.Write("abcdef")
	if got := b.Row(0); got != "def" {
		t.Errorf("row = %q, want %q", got, "def")
	}
	b.Write("\n")
	if got := b.Row(0); got != "" {
		t.Errorf("newline should clear the only row, got %q", got)
	}
}

func TestClear(t *testing.T) {
	b := NewLineBuffer(5, 3)
	b.Write("abc\ndefgh\nij")

	b.Clear()
	line, col := b.Cursor()
	if line != 0 || col != 0 {
		t.Errorf("cursor after Clear = (%d,%d)", line, col)
	}
	if got := b.Lines(); len(got) != 0 {
		t.Errorf("rows after Clear = %q", got)
	}

	b.Write("z")
	if got := b.Row(0); got != "z" {
		t.Errorf("write after Clear = %q", got)
	}
}

func TestResizeDiscardsContent(t *testing.T) {
	b := NewLineBuffer(10, 5)
	b.Write("hello\nworld")
	b.Resize(4, 2)

	cols, rows := b.Size()
	if cols != 4 || rows != 2 {
		t.Errorf("size = %dx%d, want 4x2", cols, rows)
	}
	if got := b.Lines(); len(got) != 0 {
		t.Errorf("content survived resize: %q", got)
	}
	line, col := b.Cursor()
	if line != 0 || col != 0 {
		t.Errorf("cursor after resize = (%d,%d)", line, col)
	}
}

func TestMultibyteRunes(t *testing.T) {
	b := NewLineBuffer(3, 2)
	b.Write("héllo")
	if got := b.Row(0); got != "hél" {
		t.Errorf("row 0 = %q, want %q", got, "hél")
	}
	if got := b.Row(1); got != "lo" {
		t.Errorf("row 1 = %q, want %q", got, "lo")
	}
}

func TestRowOutOfRange(t *testing.T) {
	b := NewLineBuffer(3, 2)
	if b.Row(-1) != "" || b.Row(2) != "" {
		t.Error("out of range rows should be empty")
	}
}

func TestOnLineReportsLogicalLines(t *testing.T) {
	b := NewLineBuffer(4, 3)

	var got []string
	b.OnLine(func(s string) { got = append(got, s) })

	b.Write("abcdefgh\nij")
	b.WriteLine("kl")
	b.WriteLine("")
	b.Write("pending")

	want := []string{"abcdefgh", "ijkl", ""}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestOnLineCanWriteBack(t *testing.T) {
	b := NewLineBuffer(10, 4)

	calls := 0
	b.OnLine(func(s string) {
		calls++
		if calls == 1 {
			// Callbacks run without the lock, so re-entry must not deadlock.
			b.Write("echo")
		}
	})
	b.WriteLine("first")

	if calls != 1 {
		t.Errorf("expected 1 callback, got %d", calls)
	}
	line, _ := b.Cursor()
	if got := b.Row(line); got != "echo" {
		t.Errorf("active row = %q, want %q", got, "echo")
	}
}

func TestConcurrentWritesAreContiguous(t *testing.T) {
	const (
		writers = 8
		tokens  = 50
		columns = 12
		rows    = 1000
	)
	b := NewLineBuffer(columns, rows)

	// Each token fills exactly one row, so every row must hold a single
	// writer's token if writes are serialized.
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < tokens; i++ {
				b.Write(strings.Repeat(string(rune('A'+id)), columns))
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, row := range b.Lines() {
		total += len(row)
		if strings.Trim(row, row[:1]) != "" {
			t.Errorf("row mixes writers: %q", row)
		}
	}
	capacity := columns * rows
	if want := min(writers*tokens*columns, capacity); total != want {
		t.Errorf("visible characters = %d, want %d", total, want)
	}
}

func TestConcurrentWritersAndReader(t *testing.T) {
	b := NewLineBuffer(16, 8)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		var rows []string
		for {
			select {
			case <-done:
				return
			default:
				rows = b.Snapshot(rows[:0])
				if len(rows) != 8 {
					t.Errorf("snapshot has %d rows", len(rows))
					return
				}
			}
		}
	}()

	var writers sync.WaitGroup
	for w := 0; w < 4; w++ {
		writers.Add(1)
		go func(id int) {
			defer writers.Done()
			for i := 0; i < 200; i++ {
				b.WriteLine(fmt.Sprintf("w%d-%d", id, i))
				if i%50 == 0 {
					b.Clear()
				}
			}
		}(w)
	}
	writers.Wait()
	close(done)
	wg.Wait()
}

func TestLineBufferFormat(t *testing.T) {
	b := NewLineBuffer(20, 2)
	b.Format("%s=%d", "answer", 42)
	if got := b.Row(0); got != "answer=42" {
		t.Errorf("row = %q", got)
	}
}

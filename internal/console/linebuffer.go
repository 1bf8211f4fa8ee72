package console

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// terminator marks the end of the text stored in a row.
const terminator rune = 0

// LineBuffer is a fixed grid of character rows used as a ring. Writing
// past the last row wraps to row 0 and reuses the oldest row, which
// appears as a one line upward scroll when rows are read oldest first.
//
// All methods are safe for concurrent use.
type LineBuffer struct {
	mu sync.Mutex

	columns int
	rows    int

	// cells is the arena backing every row. Each row owns columns+1
	// cells so that a full row still has room for its terminator.
	cells []rune
	lines [][]rune

	currentLine   int
	currentColumn int

	// pending holds the logical line being written, across wraps. It is
	// only kept while onLine is set and never grows past maxPendingBytes.
	pending  strings.Builder
	onLine   func(string)
	finished []string
}

// maxPendingBytes bounds the logical line held for OnLine. A longer line is
// reported in pieces of at most this size.
const maxPendingBytes = MaxFormatBytes

// NewLineBuffer creates a buffer of the given size. Sizes below 1 are
// raised to 1.
func NewLineBuffer(columns, rows int) *LineBuffer {
	b := &LineBuffer{}
	b.allocate(columns, rows)
	return b
}

// allocate replaces the row storage. Callers hold mu or own b exclusively.
func (b *LineBuffer) allocate(columns, rows int) {
	b.columns = max(1, columns)
	b.rows = max(1, rows)

	stride := b.columns + 1
	b.cells = make([]rune, stride*b.rows)
	b.lines = make([][]rune, b.rows)
	for i := range b.lines {
		b.lines[i] = b.cells[i*stride : (i+1)*stride : (i+1)*stride]
	}

	b.currentLine = 0
	b.currentColumn = 0
	b.pending.Reset()
}

// OnLine registers fn to receive every completed logical line, that is the
// text written between two newlines regardless of column wrapping. fn is
// called without the buffer lock held. Passing nil removes the callback
// and drops the partial line.
func (b *LineBuffer) OnLine(fn func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLine = fn
	if fn == nil {
		b.pending.Reset()
		b.finished = nil
	}
}

// Size returns the number of columns and rows.
func (b *LineBuffer) Size() (columns, rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.columns, b.rows
}

// Cursor returns the row being written and the next column in it.
func (b *LineBuffer) Cursor() (line, column int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLine, b.currentColumn
}

// Resize reallocates the grid. All text is discarded and the cursor
// returns to the top-left cell.
func (b *LineBuffer) Resize(columns, rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocate(columns, rows)
}

// Clear empties every row and moves the cursor to the top-left cell
// without reallocating.
func (b *LineBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, line := range b.lines {
		line[0] = terminator
	}
	b.currentLine = 0
	b.currentColumn = 0
	b.pending.Reset()
}

// Write appends text at the cursor. A newline advances to the next row;
// any other character that does not fit in the current row wraps onto the
// next one. An empty string is a no-op.
func (b *LineBuffer) Write(text string) {
	if text == "" {
		return
	}
	b.write(text, false)
}

// WriteLine writes text followed by a newline.
func (b *LineBuffer) WriteLine(text string) {
	b.write(text, true)
}

func (b *LineBuffer) write(text string, newline bool) {
	b.mu.Lock()
	b.processString(text)
	if newline {
		b.newline()
	}

	var done []string
	var fn func(string)
	if len(b.finished) > 0 {
		done, fn = b.finished, b.onLine
		b.finished = nil
	}
	b.mu.Unlock()

	if fn != nil {
		for _, line := range done {
			fn(line)
		}
	}
}

// processString ingests text one character at a time. Callers hold mu.
func (b *LineBuffer) processString(text string) {
	for _, ch := range text {
		if ch == '\n' {
			b.newline()
			continue
		}

		if b.currentColumn >= b.columns {
			b.incrementLine()
		}

		line := b.lines[b.currentLine]
		line[b.currentColumn] = ch
		b.currentColumn++
		line[b.currentColumn] = terminator

		if b.onLine != nil {
			if b.pending.Len()+utf8.RuneLen(ch) > maxPendingBytes {
				b.finished = append(b.finished, b.pending.String())
				b.pending.Reset()
			}
			b.pending.WriteRune(ch)
		}
	}
}

// newline ends the current logical line. Callers hold mu.
func (b *LineBuffer) newline() {
	b.incrementLine()
	if b.onLine != nil {
		b.finished = append(b.finished, b.pending.String())
	}
	b.pending.Reset()
}

// incrementLine advances to the next ring slot and empties it. Callers
// hold mu.
func (b *LineBuffer) incrementLine() {
	b.currentLine = (b.currentLine + 1) % b.rows
	b.currentColumn = 0
	b.lines[b.currentLine][0] = terminator
}

// rowString returns the text stored in row i. Callers hold mu.
func (b *LineBuffer) rowString(i int) string {
	line := b.lines[i]
	n := 0
	for n < len(line) && line[n] != terminator {
		n++
	}
	return string(line[:n])
}

// Row returns the text stored in ring slot i, or "" when i is out of range.
func (b *LineBuffer) Row(i int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= b.rows {
		return ""
	}
	return b.rowString(i)
}

// Snapshot appends every row to dst in display order, oldest first and
// the row under the cursor last, and returns the extended slice. Empty
// rows are included so that a row's index is its position on screen.
func (b *LineBuffer) Snapshot(dst []string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := (b.currentLine + 1) % b.rows
	for i := 0; i < b.rows; i++ {
		dst = append(dst, b.rowString((start+i)%b.rows))
	}
	return dst
}

// Lines returns the non-empty rows in display order.
func (b *LineBuffer) Lines() []string {
	rows := b.Snapshot(nil)
	out := rows[:0]
	for _, r := range rows {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

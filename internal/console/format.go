package console

import (
	"fmt"
	"unicode/utf8"

	"github.com/valyala/bytebufferpool"
)

// Format output bounds. Output longer than MaxFormatBytes is truncated.
const (
	initialFormatBytes = 256
	MaxFormatBytes     = 64 << 10
)

// Format writes the fmt-formatted arguments at the cursor.
func (c *Console) Format(format string, args ...any) {
	c.buf.Write(formatBounded(format, args...))
}

// Format writes the fmt-formatted arguments at the cursor.
func (b *LineBuffer) Format(format string, args ...any) {
	b.Write(formatBounded(format, args...))
}

// formatBounded renders into a pooled scratch buffer owned by this call.
func formatBounded(format string, args ...any) string {
	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)

	if cap(scratch.B) < initialFormatBytes {
		scratch.B = make([]byte, 0, initialFormatBytes)
	}
	scratch.Reset()
	w := &boundedWriter{buf: scratch, limit: MaxFormatBytes}
	fmt.Fprintf(w, format, args...)

	return string(truncateUTF8(scratch.B, MaxFormatBytes))
}

// boundedWriter appends to buf until it holds limit bytes and discards the
// rest. It never fails, so fmt sees every write as complete.
type boundedWriter struct {
	buf   *bytebufferpool.ByteBuffer
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room < len(p) {
		w.buf.B = append(w.buf.B, p[:max(room, 0)]...)
	} else {
		w.buf.B = append(w.buf.B, p...)
	}
	return len(p), nil
}

// truncateUTF8 cuts p to at most n bytes without splitting a rune.
func truncateUTF8(p []byte, n int) []byte {
	if len(p) <= n {
		return p
	}
	p = p[:n]
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if !utf8.FullRune(p[i:]) {
				p = p[:i]
			}
			break
		}
	}
	return p
}

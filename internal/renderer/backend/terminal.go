package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/dshills/textconsole/internal/renderer/core"
)

// EventType identifies the type of terminal event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventResize
	EventInterrupt
	EventClosed // the screen was finalized; no further events follow
)

// Key represents a keyboard key.
type Key int

// Key constants for the keys the console reacts to.
const (
	KeyNone Key = iota
	KeyRune     // Regular character (use Rune field)
	KeyEscape
	KeyEnter
	KeyCtrlC
	KeyCtrlL
)

// Event represents a terminal event.
type Event struct {
	Type EventType

	// Key event fields
	Key  Key
	Rune rune

	// Resize event fields
	Width, Height int
}

// ClipMarker is drawn in the last cell of a row that did not fit.
const ClipMarker = '>'

// Terminal implements Device using tcell. Every terminal cell holds one
// glyph, so the font cell size is always 1×1 regardless of font name.
type Terminal struct {
	screen tcell.Screen
	mu     sync.Mutex
}

// NewTerminal creates a new terminal backend.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

// NewTerminalWithScreen wraps an existing tcell screen, such as a
// simulation screen in tests.
func NewTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.HideCursor()
	return nil
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *Terminal) Bounds() core.ScreenRect {
	w, h := t.Size()
	return core.RectFromSize(0, 0, w, h)
}

func (t *Terminal) LoadFont(name string) (Font, error) {
	return &terminalFont{owner: t, name: name}, nil
}

func (t *Terminal) NewBatch(font Font) (Batch, error) {
	f, ok := font.(*terminalFont)
	if !ok || f.owner != t {
		return nil, ErrForeignFont
	}
	return &terminalBatch{term: t}, nil
}

// PollEvent waits for and returns the next terminal event.
// This is a blocking call.
func (t *Terminal) PollEvent() Event {
	ev := t.screen.PollEvent()
	return convertEvent(ev)
}

// Interrupt wakes a goroutine blocked in PollEvent with an EventInterrupt.
func (t *Terminal) Interrupt() {
	_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil)) // best-effort; event queue may be full
}

type terminalFont struct {
	owner *Terminal
	name  string
}

func (f *terminalFont) Name() string         { return f.name }
func (f *terminalFont) CellSize() (int, int) { return 1, 1 }

// terminalBatch writes glyphs into the tcell back buffer and shows the
// screen on End.
type terminalBatch struct {
	term *Terminal
	rot  core.Rotation
	open bool
}

func (b *terminalBatch) Begin(rot core.Rotation) {
	b.term.mu.Lock()
	defer b.term.mu.Unlock()

	b.rot = rot
	b.open = true
	b.term.screen.Clear()
}

func (b *terminalBatch) DrawString(text string, pos core.ScreenPos, color core.Color) {
	if !b.open || color.IsTransparent() {
		return
	}

	b.term.mu.Lock()
	defer b.term.mu.Unlock()

	style := convertColor(color)
	pw, ph := b.term.screen.Size()
	lw, lh := logicalSize(pw, ph, b.rot)
	if pos.Y < 0 || pos.Y >= lh {
		return
	}

	set := func(x int, r rune) {
		sx, sy := rotateCell(x, pos.Y, lw, lh, b.rot)
		b.term.screen.SetContent(sx, sy, r, nil, style)
	}

	// Grid columns count runes, so a row holding wide runes can be wider
	// than the surface. The last visible cell then shows ClipMarker.
	x, last, lastWidth := pos.X, -1, 0
	for _, r := range text {
		width := runewidth.RuneWidth(r)
		if width == 0 {
			continue
		}
		if x+width > lw {
			if lw > 0 {
				if lastWidth == 2 && last == lw-2 {
					set(last, ' ')
				}
				set(lw-1, ClipMarker)
			}
			return
		}
		if x >= 0 {
			set(x, r)
			last, lastWidth = x, width
		}
		x += width
	}
}

func (b *terminalBatch) End() {
	if !b.open {
		return
	}
	b.open = false

	b.term.mu.Lock()
	defer b.term.mu.Unlock()

	b.term.screen.Show()
}

// convertColor converts a console color to a tcell foreground style.
func convertColor(c core.Color) tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
}

// convertEvent converts tcell events to our Event type.
func convertEvent(ev tcell.Event) Event {
	switch e := ev.(type) {
	case nil:
		return Event{Type: EventClosed}

	case *tcell.EventKey:
		return Event{
			Type: EventKey,
			Key:  convertKey(e.Key()),
			Rune: e.Rune(),
		}

	case *tcell.EventResize:
		w, h := e.Size()
		return Event{
			Type:   EventResize,
			Width:  w,
			Height: h,
		}

	case *tcell.EventInterrupt:
		return Event{Type: EventInterrupt}

	default:
		return Event{Type: EventNone}
	}
}

// convertKey converts tcell key to our Key type.
func convertKey(k tcell.Key) Key {
	switch k {
	case tcell.KeyRune:
		return KeyRune
	case tcell.KeyEscape:
		return KeyEscape
	case tcell.KeyEnter:
		return KeyEnter
	case tcell.KeyCtrlC:
		return KeyCtrlC
	case tcell.KeyCtrlL:
		return KeyCtrlL
	default:
		return KeyNone
	}
}

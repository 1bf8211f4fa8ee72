package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	w := New()
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.debounce != 100*time.Millisecond {
		t.Errorf("default debounce = %v, want 100ms", w.debounce)
	}

	w = New(WithDebounce(20 * time.Millisecond))
	if w.debounce != 20*time.Millisecond {
		t.Errorf("debounce = %v, want 20ms", w.debounce)
	}
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		existing, next, want Operation
	}{
		{OpCreate, OpWrite, OpCreate},
		{OpWrite, OpWrite, OpWrite},
		{OpRemove, OpCreate, OpCreate},
		{OpRename, OpCreate, OpCreate},
		{OpWrite, OpRemove, OpRemove},
		{OpWrite, OpRename, OpRename},
	}

	for _, tt := range tests {
		if got := coalesce(tt.existing, tt.next); got != tt.want {
			t.Errorf("coalesce(%v, %v) = %v, want %v", tt.existing, tt.next, got, tt.want)
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) Event {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textconsole.toml")
	if err := os.WriteFile(path, []byte("[console]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(WithDebounce(50 * time.Millisecond))
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	rec := newRecorder()
	w.OnChange(rec.handle)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	// Several writes in a burst collapse into one event.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("[console]\nfont = \"gomono\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ev := rec.wait(t)
	abs, _ := filepath.Abs(path)
	if ev.Path != abs {
		t.Errorf("event path = %q, want %q", ev.Path, abs)
	}

	select {
	case <-rec.ch:
		t.Error("burst of writes should be reported once")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DetectsCreation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "later.toml")

	w := New(WithDebounce(20 * time.Millisecond))
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	rec := newRecorder()
	w.OnChange(rec.handle)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ev := rec.wait(t); ev.Op != OpCreate {
		t.Errorf("op = %v, want create", ev.Op)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.toml")

	w := New(WithDebounce(0))
	_ = w.Watch(path)
	rec := newRecorder()
	w.OnChange(rec.handle)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-rec.ch:
		t.Error("unexpected event for unwatched file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Lifecycle(t *testing.T) {
	w := New()
	if err := w.Watch(filepath.Join(t.TempDir(), "a.toml")); err != nil {
		t.Fatal(err)
	}
	if len(w.WatchedFiles()) != 1 {
		t.Errorf("WatchedFiles() = %v", w.WatchedFiles())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running")
	}
	if err := w.Watch("b.toml"); err != ErrRunning {
		t.Errorf("Watch after Start = %v, want ErrRunning", err)
	}

	w.Stop()
	w.Stop()
	if w.IsRunning() {
		t.Error("watcher should be stopped")
	}
}

func TestWatcher_HandlerPanicRecovered(t *testing.T) {
	w := New()
	called := false
	w.OnChange(func(Event) { panic("boom") })
	w.OnChange(func(Event) { called = true })

	w.emitEvent(Event{Path: "x", Op: OpWrite})
	if !called {
		t.Error("second handler should still run")
	}
}

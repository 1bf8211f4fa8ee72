package config

import (
	"context"
	"time"

	"github.com/dshills/textconsole/internal/config/watcher"
)

// ReloadFunc receives freshly loaded settings, or the error that prevented
// loading them.
type ReloadFunc func(s *Settings, err error)

// Watch reloads the settings file at path whenever it changes and passes
// the result to fn. Removal of the file reloads defaults plus environment.
// The returned watcher is running; call Stop or cancel ctx to end it.
func Watch(ctx context.Context, path string, fn ReloadFunc, opts ...watcher.Option) (*watcher.Watcher, error) {
	if path == "" {
		path = DefaultPath
	}

	opts = append([]watcher.Option{watcher.WithDebounce(150 * time.Millisecond)}, opts...)
	w := watcher.New(opts...)
	if err := w.Watch(path); err != nil {
		return nil, err
	}
	w.OnChange(func(watcher.Event) {
		fn(Load(path))
	})

	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

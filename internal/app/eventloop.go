package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/textconsole/internal/config"
	"github.com/dshills/textconsole/internal/logging"
	"github.com/dshills/textconsole/internal/renderer/backend"
)

// runTerminal drives an interactive screen. The calling goroutine owns the
// surface: it renders on a ticker and applies input and reloads, while
// writers fill the console from their own goroutines.
func (app *Application) runTerminal(ctx context.Context) error {
	screen, err := app.ensureScreen()
	if err != nil {
		return &InitError{Component: "terminal", Err: err}
	}
	if err := screen.Init(); err != nil {
		return &InitError{Component: "terminal", Err: err}
	}
	defer screen.Shutdown()

	if err := app.attach(screen); err != nil {
		return err
	}
	defer app.Console().ReleaseDevice()

	events := make(chan backend.Event, 16)
	reloads := make(chan *config.Settings, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pollEvents(gctx, screen, events)
	})
	app.startWriters(gctx, g)

	if stop := app.watchConfig(gctx, reloads); stop != nil {
		defer stop()
	}

	g.Go(func() error {
		defer screen.Interrupt()
		return app.loop(gctx, events, reloads)
	})

	return g.Wait()
}

func (app *Application) ensureScreen() (Screen, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.screen == nil {
		term, err := backend.NewTerminal()
		if err != nil {
			return nil, err
		}
		app.screen = term
	}
	return app.screen, nil
}

// pollEvents forwards screen events until ctx is done or the screen closes.
func pollEvents(ctx context.Context, screen Screen, events chan<- backend.Event) error {
	for {
		ev := screen.PollEvent()
		if ev.Type == backend.EventClosed || ctx.Err() != nil {
			return nil
		}
		if ev.Type == backend.EventNone || ev.Type == backend.EventInterrupt {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// loop is the surface owner: rendering, input and reloads all happen here.
func (app *Application) loop(ctx context.Context, events <-chan backend.Event, reloads <-chan *config.Settings) error {
	c := app.Console()

	ticker := time.NewTicker(app.Settings().Render.Interval)
	defer ticker.Stop()

	c.Render()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			c.Render()

		case ev := <-events:
			if err := app.handleEvent(ev); err != nil {
				return err
			}
			c.Render()

		case s := <-reloads:
			app.applySettings(s)
			ticker.Reset(s.Render.Interval)
			c.Render()
		}
	}
}

// handleEvent processes a screen event. Returns ErrQuit if the application
// should exit.
func (app *Application) handleEvent(ev backend.Event) error {
	switch ev.Type {
	case backend.EventResize:
		if app.layoutChanged() {
			app.relayout()
			app.log.WithFields(logrus.Fields{"width": ev.Width, "height": ev.Height}).Debug("resized")
		}
		return nil
	case backend.EventKey:
		return app.handleKey(ev)
	default:
		return nil
	}
}

// handleKey maps keys to console actions:
//
//	q, Esc, Ctrl-C  quit
//	c, Ctrl-L       clear
//	r               rotate a quarter turn (re-lays out)
//	d               toggle debug output
func (app *Application) handleKey(ev backend.Event) error {
	c := app.Console()

	switch ev.Key {
	case backend.KeyEscape, backend.KeyCtrlC:
		return ErrQuit
	case backend.KeyCtrlL:
		c.Clear()
		return nil
	case backend.KeyRune:
	default:
		return nil
	}

	switch ev.Rune {
	case 'q', 'Q':
		return ErrQuit
	case 'c':
		c.Clear()
	case 'r':
		c.SetRotation(c.Rotation().Next())
		app.relayout()
		app.log.WithField("rotation", c.Rotation().String()).Info("rotation changed")
	case 'd':
		c.SetDebugOutput(!c.DebugOutput())
	}
	return nil
}

// watchConfig starts live reload of the settings file. Reloaded settings
// are delivered on reloads, replacing any not yet consumed. The returned
// function stops watching; it is nil when watching could not start.
func (app *Application) watchConfig(ctx context.Context, reloads chan *config.Settings) func() {
	path := app.opts.ConfigPath
	if path == "" {
		return nil
	}
	log := logging.Named("config")

	w, err := config.Watch(ctx, path, func(s *config.Settings, err error) {
		if err != nil {
			log.WithError(err).Warn("reload failed, keeping current settings")
			return
		}
		app.applyOptions(s)
		log.WithField("path", path).Info("settings reloaded")

		select {
		case <-reloads:
		default:
		}
		select {
		case reloads <- s:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.WithError(err).Warn("live reload disabled")
		return nil
	}
	return w.Stop
}

// applySettings applies reloaded settings to the running console. Only
// the surface owner calls it.
func (app *Application) applySettings(s *config.Settings) {
	c := app.Console()

	app.mu.Lock()
	old := app.settings
	app.settings = s
	dev := app.device
	app.mu.Unlock()

	logging.SetLevel(logging.ParseLogLevel(s.Log.Level))
	c.SetForegroundColor(s.Console.ForegroundColor())
	c.SetDebugOutput(s.Console.DebugOutput)

	relayout := s.Layout != old.Layout
	if rot := s.Console.RotationValue(); rot != old.Console.RotationValue() {
		c.SetRotation(rot)
		relayout = true
	}

	if s.Console.Font != old.Console.Font && dev != nil {
		if err := c.RestoreDevice(dev, s.Console.Font); err != nil {
			app.log.WithError(err).Error("switching font, reverting")
			if err := c.RestoreDevice(dev, old.Console.Font); err != nil {
				app.log.WithError(err).Error("restoring previous font")
			}
		}
		relayout = true
	}

	if relayout {
		app.relayout()
	}
}

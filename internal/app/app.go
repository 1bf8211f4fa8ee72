// Package app wires textconsole together: it resolves settings, sets up
// logging, attaches a console to a terminal or raster surface and runs the
// render, input and writer loops until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dshills/textconsole/internal/config"
	"github.com/dshills/textconsole/internal/console"
	"github.com/dshills/textconsole/internal/logging"
	"github.com/dshills/textconsole/internal/renderer/backend"
)

// Screen is an interactive surface with an input event stream.
// *backend.Terminal implements it.
type Screen interface {
	backend.Device
	Init() error
	Shutdown()
	PollEvent() backend.Event
	Interrupt()
}

// Application coordinates the console and its surroundings.
type Application struct {
	mu sync.Mutex

	opts     Options
	settings *config.Settings
	log      *logrus.Entry

	logCloser io.Closer
	screen    Screen
	device    backend.Device
	console   *console.Console

	running atomic.Bool
	cancel  context.CancelFunc
}

// Options configures the application. Zero values defer to the settings
// file.
type Options struct {
	// ConfigPath is the path to the settings file.
	ConfigPath string

	// Debug forces debug output on.
	Debug bool

	// LogLevel and LogFile override the [log] settings.
	LogLevel string
	LogFile  string

	// PNGPath switches to snapshot mode: one frame is rendered onto a raster
	// surface and written to this file.
	PNGPath string

	// Size is the raster surface size as "WxH".
	Size string

	// Exec streams a shell command's output into the console instead of
	// running the demo writers.
	Exec string

	// Writers overrides demo.writers when non-negative.
	Writers int
}

// DefaultOptions returns options that defer everything to the settings.
func DefaultOptions() Options {
	return Options{
		ConfigPath: config.DefaultPath,
		Size:       "640x480",
		Writers:    -1,
	}
}

// New creates an Application: settings are loaded and logging configured.
// Surfaces are created by Run.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	settings, err := config.Load(app.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.applyOptions(settings)
	if err := settings.Validate(); err != nil {
		return &InitError{Component: "options", Err: err}
	}
	app.settings = settings

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLogLevel(settings.Log.Level)
	logCfg.File = settings.Log.File
	if app.opts.PNGPath == "" && logCfg.File == "" {
		// The terminal owns stdout and stderr while it is running.
		logCfg.Output = io.Discard
	}
	closer, err := logging.Setup(logCfg)
	if err != nil {
		return &InitError{Component: "logging", Err: err}
	}
	app.logCloser = closer
	app.log = logging.Named("app")

	app.log.WithFields(logrus.Fields{
		"config": app.opts.ConfigPath,
		"font":   settings.Console.Font,
	}).Debug("settings loaded")
	return nil
}

// applyOptions layers command line options over the loaded settings.
func (app *Application) applyOptions(s *config.Settings) {
	if app.opts.Debug {
		s.Console.DebugOutput = true
	}
	if app.opts.LogLevel != "" {
		s.Log.Level = app.opts.LogLevel
	}
	if app.opts.LogFile != "" {
		s.Log.File = app.opts.LogFile
	}
	if app.opts.Writers >= 0 {
		s.Demo.Writers = app.opts.Writers
	}
}

// SetScreen sets the interactive surface used by Run. When none is set a
// tcell terminal is created. Must be called before Run.
func (app *Application) SetScreen(s Screen) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.running.Load() {
		return ErrAlreadyRunning
	}
	app.screen = s
	return nil
}

// Run starts the application and blocks until it stops. In terminal mode
// a quit key yields ErrQuit.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	app.mu.Lock()
	app.cancel = cancel
	app.mu.Unlock()
	defer cancel()

	if app.opts.PNGPath != "" {
		return app.runSnapshot(ctx)
	}
	return app.runTerminal(ctx)
}

// Shutdown stops a running application. It is safe to call at any time.
func (app *Application) Shutdown() {
	app.mu.Lock()
	cancel := app.cancel
	screen := app.screen
	app.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if screen != nil && app.running.Load() {
		screen.Interrupt()
	}
}

// Close releases the log file, if any.
func (app *Application) Close() error {
	if app.logCloser == nil {
		return nil
	}
	return app.logCloser.Close()
}

// IsRunning returns true if the application is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Settings returns the active settings.
func (app *Application) Settings() *config.Settings {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.settings
}

// Console returns the console once Run has created it.
func (app *Application) Console() *console.Console {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.console
}

// attach creates the console on dev and lays it out.
func (app *Application) attach(dev backend.Device) error {
	s := app.Settings()

	opts := []console.Option{
		console.WithLogger(logging.Named("console")),
		console.WithSink(logging.NewSink()),
		console.WithCellSize(s.Console.CellWidth, s.Console.CellHeight),
		console.WithForeground(s.Console.ForegroundColor()),
		console.WithRotation(s.Console.RotationValue()),
	}
	c, err := console.NewWithDevice(dev, s.Console.Font, opts...)
	if err != nil {
		return &InitError{Component: "console", Err: err}
	}
	c.SetDebugOutput(s.Console.DebugOutput)

	app.mu.Lock()
	app.device = dev
	app.console = c
	app.mu.Unlock()

	app.relayout()
	app.log.WithFields(logrus.Fields{
		"console": c.ID(),
		"layout":  c.Layout().String(),
	}).Info("console attached")
	return nil
}

// relayout recomputes the console rectangle for the current surface size
// and rotation. Text is discarded.
func (app *Application) relayout() {
	c := app.Console()
	app.mu.Lock()
	dev := app.device
	s := app.settings
	app.mu.Unlock()
	if c == nil || dev == nil {
		return
	}
	c.SetLayout(s.Layout.Rect(backend.LogicalBounds(dev, c.Rotation())))
}

// layoutChanged reports whether relayout would produce a different
// rectangle. Screens report their initial size as a resize.
func (app *Application) layoutChanged() bool {
	c := app.Console()
	app.mu.Lock()
	dev := app.device
	s := app.settings
	app.mu.Unlock()
	if c == nil || dev == nil {
		return false
	}
	return !s.Layout.Rect(backend.LogicalBounds(dev, c.Rotation())).Equals(c.Layout())
}

// ParseSize parses a "WxH" surface size.
func ParseSize(s string) (width, height int, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	width, werr := strconv.Atoi(ws)
	height, herr := strconv.Atoi(hs)
	if err := errors.Join(werr, herr); err != nil || width < 1 || height < 1 || width > 1<<14 || height > 1<<14 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return width, height, nil
}

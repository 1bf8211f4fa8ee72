package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/textconsole/internal/config/loader"
	"github.com/dshills/textconsole/internal/renderer/core"
)

// DefaultPath is the settings file read when no path is given.
const DefaultPath = "textconsole.toml"

// Limits enforced by Validate.
const (
	MaxCellSize    = 512
	MaxWriters     = 64
	MinInterval    = time.Millisecond
	MaxLayoutCoord = 1 << 16
)

// Settings is the complete textconsole configuration.
type Settings struct {
	Console ConsoleSettings
	Layout  LayoutSettings
	Render  RenderSettings
	Log     LogSettings
	Demo    DemoSettings
}

// ConsoleSettings configures the console display state.
type ConsoleSettings struct {
	// Font is a device font name or a path to a .ttf/.otf file.
	Font string
	// Foreground is the text color as #RGB, #RRGGBB or #RRGGBBAA.
	Foreground string
	// DebugOutput echoes completed lines to the log.
	DebugOutput bool
	// Rotation is one of 0, 90, 180, 270.
	Rotation string
	// CellWidth and CellHeight are used while no font is loaded.
	CellWidth  int
	CellHeight int
}

// LayoutSettings is the console rectangle. All zero means the whole surface.
type LayoutSettings struct {
	Left, Top, Right, Bottom int
}

// RenderSettings configures the render loop.
type RenderSettings struct {
	Interval time.Duration
}

// LogSettings configures logging.
type LogSettings struct {
	Level string
	File  string
}

// DemoSettings configures the built-in demo writers.
type DemoSettings struct {
	// Writers is the number of concurrent writer goroutines.
	Writers int
	// Lines is the number of lines each writer emits; 0 runs until quit.
	Lines int
	// Interval is the pause between lines of one writer.
	Interval time.Duration
}

// Default returns the built-in defaults.
func Default() *Settings {
	return &Settings{
		Console: ConsoleSettings{
			Font:       "basic",
			Foreground: "#FFFFFF",
			Rotation:   "0",
			CellWidth:  1,
			CellHeight: 1,
		},
		Render: RenderSettings{Interval: 50 * time.Millisecond},
		Log:    LogSettings{Level: "info"},
		Demo: DemoSettings{
			Writers:  2,
			Interval: 250 * time.Millisecond,
		},
	}
}

// Load resolves settings from defaults, the TOML file at path and the
// environment, then validates them. A missing file is not an error.
func Load(path string) (*Settings, error) {
	return LoadFrom(loader.NewTOMLLoader(path), loader.NewEnvLoader(loader.DefaultEnvPrefix))
}

// LoadFrom applies each loader in order on top of the defaults.
func LoadFrom(loaders ...loader.Loader) (*Settings, error) {
	s := Default()
	merged := make(map[string]any)
	for _, l := range loaders {
		m, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, m)
	}
	if err := s.Apply(merged); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply sets every value of a section map. Unknown sections and settings
// are reported with ErrUnknownSetting; all problems are joined.
func (s *Settings) Apply(config map[string]any) error {
	var errs []error
	for _, section := range sortedKeys(config) {
		values, ok := config[section].(map[string]any)
		if !ok {
			errs = append(errs, &TypeError{Path: section, Expected: "table", Actual: typeName(config[section])})
			continue
		}
		for _, key := range sortedKeys(values) {
			if err := s.Set(section+"."+key, values[key]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Set assigns one setting by its "section.name" path.
func (s *Settings) Set(path string, value any) error {
	var err error
	switch path {
	case "console.font":
		s.Console.Font, err = toString(path, value)
	case "console.foreground":
		s.Console.Foreground, err = toString(path, value)
	case "console.debug_output":
		s.Console.DebugOutput, err = toBool(path, value)
	case "console.rotation":
		s.Console.Rotation, err = toString(path, value)
	case "console.cell_width":
		s.Console.CellWidth, err = toInt(path, value)
	case "console.cell_height":
		s.Console.CellHeight, err = toInt(path, value)
	case "layout.left":
		s.Layout.Left, err = toInt(path, value)
	case "layout.top":
		s.Layout.Top, err = toInt(path, value)
	case "layout.right":
		s.Layout.Right, err = toInt(path, value)
	case "layout.bottom":
		s.Layout.Bottom, err = toInt(path, value)
	case "render.interval":
		s.Render.Interval, err = toDuration(path, value)
	case "log.level":
		s.Log.Level, err = toString(path, value)
	case "log.file":
		s.Log.File, err = toString(path, value)
	case "demo.writers":
		s.Demo.Writers, err = toInt(path, value)
	case "demo.lines":
		s.Demo.Lines, err = toInt(path, value)
	case "demo.interval":
		s.Demo.Interval, err = toDuration(path, value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, path)
	}
	return err
}

// Validate checks every setting and joins the failures.
func (s *Settings) Validate() error {
	var errs []error
	fail := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if strings.TrimSpace(s.Console.Font) == "" {
		fail("console.font", "must not be empty", s.Console.Font, ErrCodeInvalidFormat)
	}
	if _, err := core.ColorFromHex(s.Console.Foreground); err != nil {
		fail("console.foreground", err.Error(), s.Console.Foreground, ErrCodeInvalidFormat)
	}
	if _, err := core.ParseRotation(s.Console.Rotation); err != nil {
		fail("console.rotation", "must be 0, 90, 180 or 270", s.Console.Rotation, ErrCodeInvalidEnum)
	}
	if s.Console.CellWidth < 1 || s.Console.CellWidth > MaxCellSize {
		fail("console.cell_width", fmt.Sprintf("must be in [1, %d]", MaxCellSize), s.Console.CellWidth, ErrCodeOutOfRange)
	}
	if s.Console.CellHeight < 1 || s.Console.CellHeight > MaxCellSize {
		fail("console.cell_height", fmt.Sprintf("must be in [1, %d]", MaxCellSize), s.Console.CellHeight, ErrCodeOutOfRange)
	}

	l := s.Layout
	for _, c := range []struct {
		path string
		v    int
	}{{"layout.left", l.Left}, {"layout.top", l.Top}, {"layout.right", l.Right}, {"layout.bottom", l.Bottom}} {
		if c.v < -MaxLayoutCoord || c.v > MaxLayoutCoord {
			fail(c.path, fmt.Sprintf("must be within ±%d", MaxLayoutCoord), c.v, ErrCodeOutOfRange)
		}
	}
	if !l.IsZero() && (l.Right <= l.Left || l.Bottom <= l.Top) {
		fail("layout", "right and bottom must exceed left and top", l, ErrCodeOutOfRange)
	}

	if s.Render.Interval < MinInterval {
		fail("render.interval", fmt.Sprintf("must be at least %v", MinInterval), s.Render.Interval, ErrCodeOutOfRange)
	}

	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("log.level", "must be debug, info, warn or error", s.Log.Level, ErrCodeInvalidEnum)
	}

	if s.Demo.Writers < 0 || s.Demo.Writers > MaxWriters {
		fail("demo.writers", fmt.Sprintf("must be in [0, %d]", MaxWriters), s.Demo.Writers, ErrCodeOutOfRange)
	}
	if s.Demo.Lines < 0 {
		fail("demo.lines", "must not be negative", s.Demo.Lines, ErrCodeOutOfRange)
	}
	if s.Demo.Interval < 0 {
		fail("demo.interval", "must not be negative", s.Demo.Interval, ErrCodeOutOfRange)
	}

	return errors.Join(errs...)
}

// ForegroundColor returns the parsed foreground, or white if it is invalid.
func (c ConsoleSettings) ForegroundColor() core.Color {
	color, err := core.ColorFromHex(c.Foreground)
	if err != nil {
		return core.ColorWhite
	}
	return color
}

// RotationValue returns the parsed rotation, or identity if it is invalid.
func (c ConsoleSettings) RotationValue() core.Rotation {
	rot, err := core.ParseRotation(c.Rotation)
	if err != nil {
		return core.RotationIdentity
	}
	return rot
}

// IsZero reports whether no layout was configured.
func (l LayoutSettings) IsZero() bool {
	return l == LayoutSettings{}
}

// Rect returns the configured rectangle, or bounds when none is set.
func (l LayoutSettings) Rect(bounds core.ScreenRect) core.ScreenRect {
	if l.IsZero() {
		return bounds
	}
	return core.NewScreenRect(l.Left, l.Top, l.Right, l.Bottom)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func toString(path string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64, int, float64:
		return fmt.Sprint(x), nil
	default:
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
}

func toBool(path string, v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err == nil {
			return b, nil
		}
	}
	return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
}

func toInt(path string, v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int(x), nil
		}
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt32 && x <= math.MaxInt32 {
			return int(x), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n, nil
		}
	}
	return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
}

// toDuration accepts duration strings ("50ms") and integer milliseconds.
func toDuration(path string, v any) (time.Duration, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(x)); err == nil {
			return d, nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return time.Duration(n) * time.Millisecond, nil
		}
	default:
		if n, err := toInt(path, v); err == nil {
			return time.Duration(n) * time.Millisecond, nil
		}
	}
	return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
}

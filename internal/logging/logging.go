// Package logging configures the process-wide logrus logger and provides
// the component loggers and console sink used by the rest of textconsole.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logrus returns the matching logrus level.
func (l LogLevel) Logrus() logrus.Level {
	switch l {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLogLevel parses a level name. Unknown names map to LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Config configures the root logger.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel
	// Output receives log lines when File is empty. Defaults to os.Stderr.
	Output io.Writer
	// File, when set, redirects output to an append-only log file.
	File string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LogLevelInfo,
		Output: os.Stderr,
	}
}

var (
	rootMu     sync.Mutex
	rootLogger = logrus.StandardLogger()
)

// Setup applies cfg to the root logger. The returned closer releases the
// log file, if one was opened, and is never nil.
func Setup(cfg Config) (io.Closer, error) {
	l := Root()
	l.SetFormatter(PlainFormatter{})
	l.SetLevel(cfg.Level.Logrus())

	if cfg.File == "" {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		l.SetOutput(out)
		return nopCloser{}, nil
	}

	f, err := openLogFile(cfg.File)
	if err != nil {
		return nopCloser{}, fmt.Errorf("open log file: %w", err)
	}
	l.SetOutput(f)
	return f, nil
}

// Root returns the shared logger.
func Root() *logrus.Logger {
	rootMu.Lock()
	defer rootMu.Unlock()
	return rootLogger
}

// SetRoot replaces the shared logger. nil restores the standard logger.
func SetRoot(l *logrus.Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	if l == nil {
		l = logrus.StandardLogger()
	}
	rootLogger = l
}

// SetLevel changes the root logger level.
func SetLevel(level LogLevel) {
	Root().SetLevel(level.Logrus())
}

// Named returns an entry for component.
func Named(component string) *logrus.Entry {
	entry := logrus.NewEntry(Root())
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return entry
}

// Discard returns an entry that writes nowhere.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// Sink writes console debug lines to a logger at Info level.
type Sink struct {
	Entry *logrus.Entry
}

// NewSink returns a sink that logs under the "echo" component.
func NewSink() *Sink {
	return &Sink{Entry: Named("echo")}
}

// Line logs one completed console line.
func (s *Sink) Line(text string) {
	if s == nil || s.Entry == nil {
		return
	}
	s.Entry.Info(text)
}

// PlainFormatter writes "[timestamp] [LEVEL] [component] message fields".
type PlainFormatter struct{}

// Format implements logrus.Formatter.
func (PlainFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry == nil {
		return []byte{}, nil
	}

	parts := make([]string, 0, 5)
	parts = append(parts, fmt.Sprintf("[%s]", entry.Time.UTC().Format(time.RFC3339Nano)))
	parts = append(parts, fmt.Sprintf("[%s]", strings.ToUpper(entry.Level.String())))
	if component, ok := entry.Data["component"].(string); ok && component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	parts = append(parts, entry.Message)
	if fields := formatFields(entry.Data); fields != "" {
		parts = append(parts, fields)
	}
	return []byte(strings.Join(parts, " ") + "\n"), nil
}

func formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "component" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

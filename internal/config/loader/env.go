package loader

import (
	"os"
	"strings"
)

// DefaultEnvPrefix is the prefix of environment overrides.
const DefaultEnvPrefix = "TEXTCONSOLE_"

// EnvLoader loads configuration from environment variables.
//
// TEXTCONSOLE_CONSOLE_CELL_WIDTH maps to console.cell_width: the first word
// after the prefix names the section and the rest, lower-cased and joined
// with underscores, the setting. Values are returned as strings.
type EnvLoader struct {
	prefix  string
	mapping map[string]string // env var -> section.setting
	environ func() []string
}

// NewEnvLoader creates an environment loader. The prefix should include the
// trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// defaultEnvMapping holds the short aliases that do not follow the
// section_setting scheme.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL": "log.level",
		prefix + "LOG_FILE":  "log.file",
		prefix + "FONT":      "console.font",
		prefix + "DEBUG":     "console.debug_output",
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// Load returns every prefixed variable as a section map. Empty values are
// kept.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		setByPath(config, path, value)
	}

	if len(config) == 0 {
		return nil, nil
	}
	return config, nil
}

// envToPath converts TEXTCONSOLE_CONSOLE_CELL_WIDTH to console.cell_width.
// Names without a setting part yield "".
func (l *EnvLoader) envToPath(env string) string {
	section, setting, ok := strings.Cut(strings.TrimPrefix(env, l.prefix), "_")
	if !ok || section == "" || setting == "" {
		return ""
	}
	return strings.ToLower(section) + "." + strings.ToLower(setting)
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

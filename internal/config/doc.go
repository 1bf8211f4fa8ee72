// Package config provides the settings model for textconsole.
//
// Settings are resolved in layers, with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command line flags      │  ← applied by the caller
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← TEXTCONSOLE_<SECTION>_<SETTING>
//	├─────────────────────────────┤
//	│  2. Settings file           │  ← textconsole.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The result is validated once all layers are applied.
//
// # Sub-packages
//
//   - loader: TOML file and environment loading into section maps
//   - watcher: change detection for live reload
//
// # Example
//
//	s, err := config.Load("textconsole.toml")
//	if err != nil {
//	    return err
//	}
//	rect := s.Layout.Rect(surface.Bounds())
//
// Live reload:
//
//	w, err := config.Watch(ctx, path, func(s *config.Settings, err error) {
//	    // apply s
//	})
package config

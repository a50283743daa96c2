package config

import "time"

// Defaults for converter settings.
const (
	DefaultMaxFixIterations = 3
	DefaultIndent           = 2
	DefaultTimeout          = 2 * time.Minute
)

// Settings is the typed view of a converter configuration file.
type Settings struct {
	// Strategy overrides automatic strategy selection when non-empty:
	// "simple", "chunked", or "hybrid".
	Strategy string

	// Strict promotes validation warnings to publication blockers.
	Strict bool

	// AutoFix enables the repair loop after validation.
	AutoFix bool

	// MaxFixIterations bounds the repair loop.
	MaxFixIterations int

	// OrphanMode is how unreachable nodes are repaired: "connect" or
	// "remove".
	OrphanMode string

	// Language overrides detected document language when non-empty.
	Language string

	// Assistant selects the extraction assistant backend: "claude",
	// "mock", or "" for none.
	Assistant string

	// Pretty enables indented JSON output; Indent is the indent width.
	Pretty bool
	Indent int

	// Timeout bounds one end-to-end conversion.
	Timeout time.Duration
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		AutoFix:          true,
		MaxFixIterations: DefaultMaxFixIterations,
		OrphanMode:       "connect",
		Indent:           DefaultIndent,
		Timeout:          DefaultTimeout,
	}
}

// Load reads a settings file. An empty path yields the defaults.
func Load(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return FromConfig(c), nil
}

// FromConfig maps a raw Config onto Settings, filling defaults for
// absent keys.
func FromConfig(c Config) Settings {
	d := DefaultSettings()
	return Settings{
		Strategy:         c.String("strategy", d.Strategy),
		Strict:           c.Bool("strict", d.Strict),
		AutoFix:          c.Bool("fix.enabled", d.AutoFix),
		MaxFixIterations: c.Int("fix.max_iterations", d.MaxFixIterations),
		OrphanMode:       c.String("fix.orphan_mode", d.OrphanMode),
		Language:         c.String("language", d.Language),
		Assistant:        c.String("assistant", d.Assistant),
		Pretty:           c.Bool("output.pretty", d.Pretty),
		Indent:           c.Int("output.indent", d.Indent),
		Timeout:          c.Duration("timeout", d.Timeout),
	}
}

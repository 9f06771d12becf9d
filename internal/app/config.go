package app

import (
	"nodectl/internal/config"
)

// Config holds the invocation-level settings the CLI resolves before
// any service configuration is loaded.
type Config struct {
	// ConfigPath points at an explicit configuration file; empty selects
	// the layered default lookup.
	ConfigPath string

	// Debug lowers the log filter to debug.
	Debug bool

	// Yes answers every confirmation prompt, for scripted use.
	Yes bool

	// Nodectl is the effective service configuration, populated during
	// bootstrap.
	Nodectl *config.Config
}

// NewConfig creates a new application configuration.
func NewConfig(configPath string, debug, yes bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
		Yes:        yes,
	}
}

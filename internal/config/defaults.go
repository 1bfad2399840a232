package config

import (
	"maps"
	"slices"
	"time"
)

const (
	// DefaultTimeout is the per-handler wall-clock limit
	DefaultTimeout = 10 * time.Second
	// DefaultConcurrency runs handlers one after another
	DefaultConcurrency = 1
	// DefaultLogFile is the activity log location
	DefaultLogFile = "~/.hookrelay/activity.log"
	// DefaultLogLevel is the diagnostic log level
	DefaultLogLevel = "info"
)

// defaultEncodings mirrors event.DefaultEncodings without importing the event
// package into the configuration layer
var defaultEncodings = []string{"utf-8", "cp1254", "latin1"}

// DefaultRuntimes maps handler extensions to the programs that run them
func DefaultRuntimes() map[string]string {
	return map[string]string{
		"py": "python3",
		"sh": "sh",
		"js": "node",
	}
}

// GetDefaults returns the default configuration values as koanf keys.
// No channels are defined by default.
func GetDefaults() map[string]interface{} {
	runtimes := make(map[string]interface{})
	for ext, prog := range DefaultRuntimes() {
		runtimes[ext] = prog
	}
	return map[string]interface{}{
		"quiet_hours.enabled": false,
		"quiet_hours.start":   "23:00",
		"quiet_hours.end":     "07:00",
		"logging.enabled":     false,
		"logging.file":        DefaultLogFile,
		"logging.level":       DefaultLogLevel,
		"decoder.encodings":   slices.Clone(defaultEncodings),
		"invoker.timeout":     DefaultTimeout,
		"invoker.concurrency": DefaultConcurrency,
		"invoker.runtimes":    runtimes,
	}
}

// Default returns the configuration used when no file can be loaded:
// no channels, quiet hours off, activity logging off.
func Default() *Configuration {
	return &Configuration{
		Channels: nil,
		Global: Global{
			Logging: Logging{
				Enabled: false,
				File:    expandHomePath(DefaultLogFile),
				Level:   DefaultLogLevel,
			},
		},
		Decoder: Decoder{Encodings: slices.Clone(defaultEncodings)},
		Invoker: Invoker{
			Timeout:     DefaultTimeout,
			Concurrency: DefaultConcurrency,
			Runtimes:    maps.Clone(DefaultRuntimes()),
		},
	}
}

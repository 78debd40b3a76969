// Package logging sets up the application's zerolog logger: console output
// for development and the CLI, rotating files for the desktop build.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to emit.
	Level zerolog.Level
	// Console writes human-readable output to stderr.
	Console bool
	// File writes JSON lines to a rotating file under Dir.
	File bool
	// Dir is the directory for log files. If empty, DefaultLogDir is used.
	Dir string
	// MaxSizeMB is the maximum size in megabytes of a single log file before rotation.
	MaxSizeMB int
	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int
	// MaxAgeDays is the maximum number of days to retain old log files.
	MaxAgeDays int
	// Compress determines if rotated log files should be compressed.
	Compress bool
}

// DefaultConfig logs info and above to the console only.
func DefaultConfig() *Config {
	return &Config{
		Level:      zerolog.InfoLevel,
		Console:    true,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// DefaultLogDir returns the default log directory path.
// Tries os.UserConfigDir, falls back to os.UserCacheDir, then os.TempDir.
func DefaultLogDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, err = os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
	}
	return filepath.Join(dir, "insar-viewer", "logs")
}

// --- Global logger access ---

var globalLogger *zerolog.Logger

// L returns the global logger. Before Setup it is a disabled logger.
func L() *zerolog.Logger {
	if globalLogger != nil {
		return globalLogger
	}
	nop := zerolog.Nop()
	return &nop
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

func setGlobal(logger zerolog.Logger) {
	globalLogger = &logger
}

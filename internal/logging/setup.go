package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the active log file inside the log directory
const LogFileName = "insar-viewer.log"

// Setup builds the logger described by cfg and installs it as the global logger.
// The returned close function flushes and closes the log file, if any.
func Setup(cfg *Config) (zerolog.Logger, func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var writers []io.Writer
	closeFn := func() error { return nil }

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if cfg.File {
		dir := cfg.Dir
		if dir == "" {
			dir = DefaultLogDir()
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("failed to create log directory: %w", err)
		}

		lj := &lumberjack.Logger{
			Filename:   filepath.Join(dir, LogFileName),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		writers = append(writers, lj)
		closeFn = lj.Close
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
	setGlobal(logger)
	return logger, closeFn, nil
}

package logging

import (
	"github.com/rs/zerolog"
	wailsLogger "github.com/wailsapp/wails/v2/pkg/logger"
)

// WailsLogger routes the desktop runtime's log output through zerolog
type WailsLogger struct {
	logger zerolog.Logger
}

var _ wailsLogger.Logger = (*WailsLogger)(nil)

// NewWailsLogger wraps logger for use as options.App.Logger
func NewWailsLogger(logger zerolog.Logger) *WailsLogger {
	return &WailsLogger{logger: logger.With().Str("component", "wails").Logger()}
}

func (w *WailsLogger) Print(message string)   { w.logger.Log().Msg(message) }
func (w *WailsLogger) Trace(message string)   { w.logger.Trace().Msg(message) }
func (w *WailsLogger) Debug(message string)   { w.logger.Debug().Msg(message) }
func (w *WailsLogger) Info(message string)    { w.logger.Info().Msg(message) }
func (w *WailsLogger) Warning(message string) { w.logger.Warn().Msg(message) }
func (w *WailsLogger) Error(message string)   { w.logger.Error().Msg(message) }
func (w *WailsLogger) Fatal(message string)   { w.logger.Error().Bool("fatal", true).Msg(message) }

// WailsLevel maps a zerolog level to the runtime's log level
func WailsLevel(level zerolog.Level) wailsLogger.LogLevel {
	switch {
	case level <= zerolog.TraceLevel:
		return wailsLogger.TRACE
	case level == zerolog.DebugLevel:
		return wailsLogger.DEBUG
	case level == zerolog.InfoLevel:
		return wailsLogger.INFO
	case level == zerolog.WarnLevel:
		return wailsLogger.WARNING
	default:
		return wailsLogger.ERROR
	}
}

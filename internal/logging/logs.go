package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the process logger for structured call sites.
func Logger() zerolog.Logger {
	return log.Logger
}

func Tracef(format string, args ...any) {
	log.Logger.Trace().Msgf(format, args...)
}

func Debugf(format string, args ...any) {
	log.Logger.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	log.Logger.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	log.Logger.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	log.Logger.Error().Msgf(format, args...)
}

// Logf writes at no level so it is emitted regardless of the global level
// unless logging is disabled entirely. Tests use it for step narration.
func Logf(format string, args ...any) {
	log.Logger.Log().Msgf(format, args...)
}

// Package logging constructs the zap.Logger both binaries use,
// adapted from the teacher's own newLogger: a colorized console
// encoder for interactive runs, switched to JSON whenever the process
// isn't attached to a terminal, with the level taken from the
// [logger] config section.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opentile/server/internal/config"
)

// New builds a logger for the given module name (e.g. "loginserver",
// "worldserver") at the configured level.
func New(module string, level config.LogLevel) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case config.LogError:
		zapLevel = zapcore.ErrorLevel
	case config.LogDebug:
		zapLevel = zapcore.DebugLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if isTerminal(os.Stdout) {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncoderConfig.ConsoleSeparator = "  "
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return log.Named(module), nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

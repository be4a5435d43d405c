package logx

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lookwise/insight-agent/internal/core"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
	Level:       "debug",
}

type LoggerOpts struct {
	Environment core.Environment
	// Level is the minimum level name (trace, debug, info, warn, error).
	// An empty or unknown value falls back to the environment default.
	Level string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)

	level := defaultLevel(o.Environment)
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(o.Level))); err == nil && o.Level != "" {
		level = parsed
	}

	if o.Environment == core.Production {
		log.Logger = log.Logger.Level(level)
		return
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	log.Logger = log.Logger.Level(level)
}

func defaultLevel(env core.Environment) zerolog.Level {
	if env == core.Production {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// DebugEnabled reports whether debug events are currently emitted.
func DebugEnabled() bool {
	return log.Logger.GetLevel() <= zerolog.DebugLevel
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}

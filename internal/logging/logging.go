// Package logging configures the structured logger shared by every
// component of the gateway, mirroring the console/file tee and level
// gating of original_source/tgfs/log.py but built on zap.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls verbosity and optional file rotation, mapped
// directly from tgstreamconfig.Config's DEBUG/EXT_DEBUG/LOG_FILE
// fields by the caller.
type Options struct {
	// Debug raises this package's own loggers to debug level.
	Debug bool
	// ExtDebug selects the level ThirdPartyLevel reports for
	// third-party library loggers (debug instead of warn), matching
	// log.py's separate gating of the telethon/aiohttp loggers from
	// the app's own. New does not read it.
	ExtDebug bool
	// LogFile optionally tees output to a rotated file, following
	// cppla-moto's utils/log.go lumberjack.Logger configuration.
	LogFile string
}

// New builds the root *zap.Logger. Callers derive per-component
// loggers from it with Named, the same way log.py's getLogger(name)
// hierarchy lets each subsystem's origin be traced in the output.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= level })

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), enabler),
	}

	if opts.LogFile != "" {
		hook := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    256,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(hook), enabler))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()), nil
}

// ThirdPartyLevel reports the level for third-party library loggers
// such as gotd/td's internal logger: debug when ExtDebug is set, else
// warn, independent of the app's own DEBUG-gated level. No caller in
// this repository applies it; the gotd/td clients are given the app's
// own named loggers.
func ThirdPartyLevel(opts Options) zapcore.Level {
	if opts.ExtDebug {
		return zapcore.DebugLevel
	}
	return zapcore.WarnLevel
}

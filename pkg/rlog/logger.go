// Package rlog provides the stderr console logger used across the toolchain
// manager core. It is a trimmed adaptation of a zap-backed logger: a
// Level type, a colored console encoder, and a package-level global logger
// alongside instance loggers for tests and subcommands that want their own
// scoped output (e.g. a per-update logger carrying "toolchain=..." fields).
package rlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level controls verbosity. Unlike the teacher's logger this project does
// not need SUCCESS/FAIL console levels, so only the four that the CLI and
// planner actually emit are kept.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) zap() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options configures a Logger.
type Options struct {
	ConsoleLevel    Level
	ColorConsole    bool
	TimestampFormat string
}

// DefaultOptions returns sane interactive-CLI defaults.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel:    InfoLevel,
		ColorConsole:    true,
		TimestampFormat: time.RFC3339,
	}
}

// Logger wraps a zap.SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// Init sets up the global logger. Safe to call more than once (e.g. once the
// CLI parses -v and re-initializes with DebugLevel); the previous global
// logger is replaced.
func Init(opts Options) {
	globalMu.Lock()
	defer globalMu.Unlock()
	l, err := NewLogger(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		l = &Logger{SugaredLogger: zap.NewNop().Sugar()}
	}
	globalLogger = l
}

// Get returns the global logger, initializing it with defaults if Init was
// never called.
func Get() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		l, _ := NewLogger(DefaultOptions())
		globalLogger = l
	}
	return globalLogger
}

// NewLogger builds a standalone Logger instance.
func NewLogger(opts Options) (*Logger, error) {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = time.RFC3339
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
	cfg.TimeKey = "time"
	cfg.MessageKey = "msg"
	cfg.LevelKey = "level"

	var encoder zapcore.Encoder
	if opts.ColorConsole {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	encoder = zapcore.NewConsoleEncoder(cfg)

	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= opts.ConsoleLevel.zap()
	})
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), enabler)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: zl.Sugar()}, nil
}

// With returns a derived Logger carrying the given structured fields.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	return l.SugaredLogger.Sync()
}

// Package-level convenience wrappers over the global logger.

func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }

// SyncGlobal flushes the global logger; call before process exit.
func SyncGlobal() error { return Get().Sync() }

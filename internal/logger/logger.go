// Package logger is the process-wide leveled logger.
//
// The API is printf-style (logger.Info("user %s logged in", name)) and is
// backed by a zap core, so the same sink can be handed to libraries that
// expect a *slog.Logger (the FTP engine) through Slog().
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config selects the encoder and the sink.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string

	// Format is "text" (console encoder) or "json".
	Format string

	// Output is "stdout", "stderr" or a file path.
	Output string
}

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current atomic.Pointer[zap.Logger]
	closer  atomic.Pointer[func()]
)

func init() {
	core := zapcore.NewCore(newEncoder("text"), zapcore.Lock(os.Stdout), level)
	current.Store(zap.New(core))
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(name string) {
	level.SetLevel(ParseLevel(name).zapLevel())
}

// Configure replaces the sink and encoder. It is called once at startup,
// before any session is served.
func Configure(cfg Config) error {
	sink, cleanup, err := openOutput(cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to open log output %q: %w", cfg.Output, err)
	}

	SetLevel(cfg.Level)
	current.Store(zap.New(zapcore.NewCore(newEncoder(cfg.Format), sink, level)))

	if prev := closer.Swap(&cleanup); prev != nil {
		(*prev)()
	}
	return nil
}

// Sync flushes buffered entries. Call before exiting.
func Sync() {
	_ = current.Load().Sync()
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(encCfg)
	}

	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(encCfg)
}

func openOutput(output string) (zapcore.WriteSyncer, func(), error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), func() {}, nil
	case "stderr":
		return zapcore.Lock(os.Stderr), func() {}, nil
	default:
		return zap.Open(output)
	}
}

// Slog returns a *slog.Logger writing to the current core.
func Slog() *slog.Logger {
	return slog.New(zapslog.NewHandler(current.Load().Core()))
}

func log(l Level, format string, v ...any) {
	zl := current.Load()
	if !zl.Core().Enabled(l.zapLevel()) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	switch l {
	case LevelDebug:
		zl.Debug(msg)
	case LevelInfo:
		zl.Info(msg)
	case LevelWarn:
		zl.Warn(msg)
	default:
		zl.Error(msg)
	}
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}

// Fatal logs at error level, flushes, and exits with status 1.
func Fatal(format string, v ...any) {
	current.Load().Error(fmt.Sprintf(format, v...), zap.Bool("fatal", true))
	Sync()
	os.Exit(1)
}

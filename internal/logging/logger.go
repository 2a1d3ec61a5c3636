// Package logging provides categorized file-based logging for gofer.
// Logs are written to .gofer/logs/ with one file per category. Nothing is
// written until Initialize is called with debug enabled, so library code can
// log unconditionally.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup and configuration
	CategorySession Category = "session" // session lifecycle, history commits
	CategoryAPI     Category = "api"     // Code Assist calls and retries
	CategoryTurn    Category = "turn"    // turn engine events
	CategoryTools   Category = "tools"   // tool scheduling and execution
)

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*Logger)
	logsDir string
	enabled bool
	debugOn bool
)

// Logger writes to one category's log file.
type Logger struct {
	sugar *zap.SugaredLogger
	file  *os.File
}

// Initialize sets up the logging directory. With debug false the package
// stays silent.
func Initialize(workspace string, debug bool) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	mu.Lock()
	defer mu.Unlock()
	if !debug {
		enabled = false
		return nil
	}
	logsDir = filepath.Join(workspace, ".gofer", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	enabled = true
	debugOn = debug
	return nil
}

// Get returns the logger for a category, creating its file on first use.
// Returns nil when logging is disabled; all Logger methods tolerate a nil
// receiver.
func Get(category Category) *Logger {
	mu.RLock()
	if !enabled {
		mu.RUnlock()
		return nil
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	path := filepath.Join(logsDir, string(category)+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	level := zapcore.InfoLevel
	if debugOn {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level)

	l := &Logger{
		sugar: zap.New(core).Sugar().Named(string(category)),
		file:  f,
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// CloseAll flushes and closes every open log file.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.sugar.Sync()
		_ = l.file.Close()
	}
	loggers = make(map[Category]*Logger)
	enabled = false
}

// Category helpers, matching call sites like logging.API(...).

func Boot(format string, args ...any)         { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...any)    { Get(CategoryBoot).Debug(format, args...) }
func Session(format string, args ...any)      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...any) { Get(CategorySession).Debug(format, args...) }
func SessionError(format string, args ...any) { Get(CategorySession).Error(format, args...) }
func API(format string, args ...any)          { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...any)     { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...any)      { Get(CategoryAPI).Warn(format, args...) }
func APIError(format string, args ...any)     { Get(CategoryAPI).Error(format, args...) }
func Turn(format string, args ...any)         { Get(CategoryTurn).Info(format, args...) }
func TurnDebug(format string, args ...any)    { Get(CategoryTurn).Debug(format, args...) }
func TurnWarn(format string, args ...any)     { Get(CategoryTurn).Warn(format, args...) }
func TurnError(format string, args ...any)    { Get(CategoryTurn).Error(format, args...) }
func Tools(format string, args ...any)        { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...any)   { Get(CategoryTools).Debug(format, args...) }
func ToolsError(format string, args ...any)   { Get(CategoryTools).Error(format, args...) }

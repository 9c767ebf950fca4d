// Package logging provides the shared zap logger for placefix. Commands and
// engines fetch category-named loggers through L; log records go to a file
// under the workspace log directory when one is configured, and warnings and
// errors are duplicated to stderr so batch runs stay quiet but failures are
// visible.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a placefix subsystem; it becomes the logger name on every
// record so log files can be filtered per system.
type Category string

const (
	CategorySolver Category = "solver"
	CategoryParser Category = "parser"
	CategoryPlugin Category = "plugin"
	CategoryCLI    Category = "cli"
	CategoryWatch  Category = "watch"
)

// Options configures Initialize.
type Options struct {
	// Dir is the directory for the log file; empty disables file output
	// and sends everything to stderr instead.
	Dir string
	// Debug lowers the level from info to debug.
	Debug bool
}

var (
	mu   sync.RWMutex
	root *zap.Logger = zap.NewNop()
)

// Initialize builds the process logger. Safe to call once per process; later
// calls replace the logger (used by tests).
func Initialize(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	consoleEnc := zapcore.NewConsoleEncoder(consoleEncoderConfig())

	var cores []zapcore.Core
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		path := filepath.Join(opts.Dir, "placefix.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores,
			zapcore.NewCore(consoleEnc, zapcore.AddSync(f), level),
			// Duplicate warnings and errors to stderr.
			zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stderr), zapcore.WarnLevel),
		)
	} else {
		cores = append(cores, zapcore.NewCore(consoleEnc, zapcore.AddSync(os.Stderr), level))
	}

	mu.Lock()
	root = zap.New(zapcore.NewTee(cores...))
	mu.Unlock()
	return nil
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// L returns the sugared logger for a category.
func L(cat Category) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(string(cat)).Sugar()
}

// Sync flushes buffered records; call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V.
const (
	DEFAULT = 0
	VERBOSE = 1
	DEBUG   = 2
	TRACE   = 3
)

// New builds a JSON logger writing to path. The terminal belongs to the UI, so
// logs never go to stdout. The returned func flushes buffered entries.
func New(path string, verbosity int) (logr.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("mkdir log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-1 * verbosity))
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	z, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}

// NewTestLogger creates a new Zap logger using the dev mode.
func NewTestLogger() logr.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-1 * TRACE))
	z, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}

// NewTestLoggerIntoContext creates a new Zap logger using the dev mode and inserts it into the given context.
func NewTestLoggerIntoContext(ctx context.Context) context.Context {
	return logr.NewContext(ctx, NewTestLogger())
}

// Package logging builds the zap logger used across slipway. Logs go to
// stderr and to .slipway/logs/slipway.log so a failed run can be inspected
// after the fact.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileName is the log file created under the project log directory.
const LogFileName = "slipway.log"

// New constructs the process logger. Debug switches the level and enables
// development-style output.
func New(logDir string, debug bool) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
	}
	cfg.OutputPaths = []string{"stderr", filepath.Join(logDir, LogFileName)}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}

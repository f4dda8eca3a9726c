// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour.
type Options struct {
	// Debug enables the per-cycle trace.
	Debug bool
	// JSON switches from the console encoder to JSON lines.
	JSON bool
}

// New builds a logger tagged with a fresh run_id and installs it as the zap
// global. Constructors given a nil logger fall back to zap.L().
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if opts.JSON {
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.Sampling = nil
	cfg.DisableStacktrace = !opts.Debug
	cfg.Level = zap.NewAtomicLevelAt(Level(opts.Debug))

	logger, err := cfg.Build(zap.Fields(zap.String("run_id", uuid.NewString())))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Level is the minimum level for the given debug setting.
func Level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

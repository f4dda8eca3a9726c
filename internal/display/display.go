// Package display reads and sets the screen brightness as a percentage.
package display

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikeyg42/rlight/internal/config"
)

// Display is the brightness control of a single screen.
type Display interface {
	// Set applies a brightness in percent.
	Set(ctx context.Context, percent int) error
	// Get returns the current brightness in percent.
	Get(ctx context.Context) (int, error)
}

// New builds the display backend selected by cfg.
func New(cfg *config.Config, logger *zap.Logger) (Display, error) {
	if logger == nil {
		logger = zap.L()
	}
	switch cfg.DisplayBackend {
	case config.DisplayBackendCommand, "":
		return NewCommandDisplay(cfg.SetBrightnessCmd, cfg.GetBrightnessCmd, cfg.CommandRetries, logger), nil
	case config.DisplayBackendSysfs:
		d, err := NewSysfsDisplay(cfg.BacklightPath, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("display: unknown backend %q", cfg.DisplayBackend)
	}
}

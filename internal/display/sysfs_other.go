//go:build !linux

package display

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// SysfsDisplay is only available on Linux.
type SysfsDisplay struct{}

// NewSysfsDisplay always fails outside Linux.
func NewSysfsDisplay(dir string, _ *zap.Logger) (*SysfsDisplay, error) {
	return nil, fmt.Errorf("sysfs backlight %s: unsupported on %s", dir, runtime.GOOS)
}

func (*SysfsDisplay) Set(context.Context, int) error { return fmt.Errorf("unsupported") }

func (*SysfsDisplay) Get(context.Context) (int, error) { return 0, fmt.Errorf("unsupported") }

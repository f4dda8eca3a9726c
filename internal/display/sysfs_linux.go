//go:build linux

package display

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// SysfsDisplay drives a /sys/class/backlight device directly.
type SysfsDisplay struct {
	dir    string
	maxRaw int
	logger *zap.Logger

	mu      sync.Mutex
	lastRaw int
	lastPct int
	wrote   bool
}

// NewSysfsDisplay opens the backlight device in dir. The brightness file
// must be writable by this process.
func NewSysfsDisplay(dir string, logger *zap.Logger) (*SysfsDisplay, error) {
	if logger == nil {
		logger = zap.L()
	}
	maxRaw, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("open backlight %s: %w", dir, err)
	}
	if maxRaw <= 0 {
		return nil, fmt.Errorf("open backlight %s: max_brightness is %d", dir, maxRaw)
	}
	if err := unix.Access(filepath.Join(dir, "brightness"), unix.W_OK); err != nil {
		return nil, fmt.Errorf("backlight %s is not writable: %w", dir, err)
	}

	logger = logger.Named("display").With(zap.String("backlight", dir))
	logger.Info("Opened backlight", zap.Int("max_brightness", maxRaw))
	return &SysfsDisplay{dir: dir, maxRaw: maxRaw, logger: logger}, nil
}

// Set writes percent scaled to max_brightness.
func (d *SysfsDisplay) Set(_ context.Context, percent int) error {
	raw := int(math.Round(float64(percent) * float64(d.maxRaw) / 100))
	path := filepath.Join(d.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(raw)), 0o644); err != nil {
		return fmt.Errorf("set brightness to %d%%: %w", percent, err)
	}

	d.mu.Lock()
	d.lastRaw, d.lastPct, d.wrote = raw, percent, true
	d.mu.Unlock()

	d.logger.Debug("Brightness set", zap.Int("percent", percent), zap.Int("raw", raw))
	return nil
}

// Get reads the device brightness as a percentage. A reading equal to the
// last written value reports the percentage that was set, so scaling
// rounding is never mistaken for a manual change.
func (d *SysfsDisplay) Get(_ context.Context) (int, error) {
	raw, err := readInt(filepath.Join(d.dir, "brightness"))
	if err != nil {
		return 0, fmt.Errorf("get brightness: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wrote && raw == d.lastRaw {
		return d.lastPct, nil
	}
	return int(math.Round(float64(raw) * 100 / float64(d.maxRaw))), nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

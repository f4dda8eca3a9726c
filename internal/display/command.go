package display

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mikeyg42/rlight/internal/config"
	"github.com/mikeyg42/rlight/internal/sensitivity"
)

// Runner executes a shell snippet and returns its stdout.
type Runner func(ctx context.Context, script string) ([]byte, error)

// ShellRunner runs script through sh -c.
func ShellRunner(ctx context.Context, script string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", script).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// CommandDisplay drives the brightness through user-configured shell
// command templates.
type CommandDisplay struct {
	setCmd  string
	getCmd  string
	retries int
	run     Runner
	logger  *zap.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewCommandDisplay returns a display using setCmd (with a {} placeholder
// for the percentage) and getCmd (which prints the percentage). Failed
// commands are retried up to retries times.
func NewCommandDisplay(setCmd, getCmd string, retries int, logger *zap.Logger) *CommandDisplay {
	if logger == nil {
		logger = zap.L()
	}
	return &CommandDisplay{
		setCmd:          setCmd,
		getCmd:          getCmd,
		retries:         retries,
		run:             ShellRunner,
		logger:          logger.Named("display"),
		initialInterval: 200 * time.Millisecond,
		maxInterval:     2 * time.Second,
	}
}

// RenderSetCommand substitutes percent into the set template.
func RenderSetCommand(tmpl string, percent int) string {
	return strings.ReplaceAll(tmpl, config.BrightnessPlaceholder, strconv.Itoa(percent))
}

// Set runs the set template for percent.
func (d *CommandDisplay) Set(ctx context.Context, percent int) error {
	script := RenderSetCommand(d.setCmd, percent)
	if _, err := d.exec(ctx, script, nil); err != nil {
		return fmt.Errorf("set brightness to %d%%: %w", percent, err)
	}
	d.logger.Debug("Brightness set", zap.Int("percent", percent), zap.String("cmd", script))
	return nil
}

// Get runs the get template and parses the first number it prints.
func (d *CommandDisplay) Get(ctx context.Context) (int, error) {
	if strings.TrimSpace(d.getCmd) == "" {
		return 0, fmt.Errorf("get brightness: no command configured")
	}

	var percent int
	_, err := d.exec(ctx, d.getCmd, func(out []byte) error {
		p, err := ParsePercent(out)
		if err != nil {
			return backoff.Permanent(err)
		}
		percent = p
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get brightness: %w", err)
	}
	return percent, nil
}

func (d *CommandDisplay) exec(ctx context.Context, script string, check func([]byte) error) ([]byte, error) {
	var out []byte
	op := func() error {
		o, err := d.run(ctx, script)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(o); err != nil {
				return err
			}
		}
		out = o
		return nil
	}

	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = d.initialInterval
	ebo.MaxInterval = d.maxInterval
	ebo.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(ebo, uint64(d.retries)), ctx)

	notify := func(err error, wait time.Duration) {
		d.logger.Warn("Brightness command failed, retrying",
			zap.String("cmd", script),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return out, nil
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ErrPercentRange is returned when a getter prints a number that is not a
// percentage, such as a raw backlight value.
var ErrPercentRange = errors.New("brightness out of range")

// ParsePercent extracts the first number in out and rounds it to an int in
// [0, sensitivity.MaxBrightness].
func ParsePercent(out []byte) (int, error) {
	m := numberPattern.Find(out)
	if m == nil {
		return 0, fmt.Errorf("no number in output %q", strings.TrimSpace(string(out)))
	}
	v, err := strconv.ParseFloat(string(m), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", m, err)
	}
	p := int(math.Round(v))
	if p < 0 || p > sensitivity.MaxBrightness {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrPercentRange, p, sensitivity.MaxBrightness)
	}
	return p, nil
}

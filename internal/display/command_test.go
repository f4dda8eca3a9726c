package display

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedRunner struct {
	calls   []string
	outputs []string
	errs    []error
}

func (r *scriptedRunner) run(_ context.Context, script string) ([]byte, error) {
	i := len(r.calls)
	r.calls = append(r.calls, script)
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	var out string
	if i < len(r.outputs) {
		out = r.outputs[i]
	}
	return []byte(out), err
}

func newTestDisplay(r *scriptedRunner, retries int) *CommandDisplay {
	d := NewCommandDisplay("brightnessctl set {}%", "brightnessctl get-pct", retries, nil)
	d.run = r.run
	d.initialInterval = time.Millisecond
	d.maxInterval = time.Millisecond
	return d
}

func TestRenderSetCommand(t *testing.T) {
	got := RenderSetCommand("light -S {} && notify {}", 42)
	if got != "light -S 42 && notify 42" {
		t.Fatalf("Unexpected command: %q", got)
	}
}

func TestParsePercent(t *testing.T) {
	testCases := []struct {
		out  string
		want int
	}{
		{"42\n", 42},
		{"42%\n", 42},
		{"intel_backlight,backlight,40%,48000", 40},
		{"  55.60\n", 56},
		{"0", 0},
		{"100%", 100},
	}

	for _, tc := range testCases {
		got, err := ParsePercent([]byte(tc.out))
		if err != nil {
			t.Fatalf("ParsePercent(%q) failed: %v", tc.out, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePercent(%q) = %d, want %d", tc.out, got, tc.want)
		}
	}

	if _, err := ParsePercent([]byte("no backlight found")); err == nil {
		t.Fatal("Expected error for output without a number")
	}

	for _, out := range []string{"19200\n", "intel_backlight,backlight,19200,40%,48000", "101", "-3"} {
		if _, err := ParsePercent([]byte(out)); !errors.Is(err, ErrPercentRange) {
			t.Fatalf("ParsePercent(%q): expected ErrPercentRange, got %v", out, err)
		}
	}
}

func TestCommandDisplayGetRejectsRawValue(t *testing.T) {
	r := &scriptedRunner{outputs: []string{"19200\n", "19200\n"}}
	d := newTestDisplay(r, 1)

	got, err := d.Get(context.Background())
	if !errors.Is(err, ErrPercentRange) {
		t.Fatalf("Expected ErrPercentRange, got %d, %v", got, err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("Range errors should not be retried, got %d calls", len(r.calls))
	}
}

func TestCommandDisplaySet(t *testing.T) {
	r := &scriptedRunner{}
	d := newTestDisplay(r, 0)

	if err := d.Set(context.Background(), 37); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(r.calls) != 1 || r.calls[0] != "brightnessctl set 37%" {
		t.Fatalf("Unexpected calls: %v", r.calls)
	}
}

func TestCommandDisplayGet(t *testing.T) {
	r := &scriptedRunner{outputs: []string{"64%\n"}}
	d := newTestDisplay(r, 0)

	got, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 64 {
		t.Fatalf("Expected 64, got %d", got)
	}
}

func TestCommandDisplayRetries(t *testing.T) {
	busy := errors.New("device busy")
	r := &scriptedRunner{
		outputs: []string{"", "", "30"},
		errs:    []error{busy, busy, nil},
	}
	d := newTestDisplay(r, 2)

	got, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed after retries: %v", err)
	}
	if got != 30 || len(r.calls) != 3 {
		t.Fatalf("Expected 30 after 3 calls, got %d after %d", got, len(r.calls))
	}
}

func TestCommandDisplayGivesUp(t *testing.T) {
	busy := errors.New("device busy")
	r := &scriptedRunner{errs: []error{busy, busy, busy, busy}}
	d := newTestDisplay(r, 1)

	err := d.Set(context.Background(), 10)
	if !errors.Is(err, busy) {
		t.Fatalf("Expected busy error, got %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(r.calls))
	}
}

func TestCommandDisplayUnparsableNotRetried(t *testing.T) {
	r := &scriptedRunner{outputs: []string{"garbage", "50"}}
	d := newTestDisplay(r, 3)

	if _, err := d.Get(context.Background()); err == nil {
		t.Fatal("Expected parse error")
	}
	if len(r.calls) != 1 {
		t.Fatalf("Parse errors should not be retried, got %d calls", len(r.calls))
	}
}

func TestCommandDisplayNoGetter(t *testing.T) {
	d := NewCommandDisplay("x {}", "", 0, nil)
	if _, err := d.Get(context.Background()); err == nil {
		t.Fatal("Expected error without a get command")
	}
}

func TestShellRunner(t *testing.T) {
	out, err := ShellRunner(context.Background(), "echo 73")
	if err != nil {
		t.Fatalf("ShellRunner failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "73" {
		t.Fatalf("Unexpected output %q", out)
	}

	_, err = ShellRunner(context.Background(), "echo nope >&2; exit 3")
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("Expected stderr in error, got %v", err)
	}
}

func TestCommandDisplayFallsBackToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	r := &scriptedRunner{}
	d := newTestDisplay(r, 0)
	if err := d.Set(context.Background(), 12); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entries := logs.FilterMessage("Brightness set").All()
	if len(entries) != 1 || entries[0].LoggerName != "display" {
		t.Fatalf("Expected one entry from the display logger, got %+v", logs.All())
	}
}

package control

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mikeyg42/rlight/internal/camera"
	"github.com/mikeyg42/rlight/internal/journal"
	"github.com/mikeyg42/rlight/internal/sampler"
	"github.com/mikeyg42/rlight/internal/sensitivity"
	"github.com/mikeyg42/rlight/internal/timeutil"
)

// fakeCamera returns uniform frames of the queued brightness levels.
type fakeCamera struct {
	size   int
	levels []byte
	err    error
	calls  int
}

func (c *fakeCamera) Capture(ctx context.Context) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}
	c.calls++
	if c.err != nil {
		return camera.Frame{}, c.err
	}
	level := c.levels[0]
	if len(c.levels) > 1 {
		c.levels = c.levels[1:]
	}
	data := make([]byte, c.size)
	for i := range data {
		data[i] = level
	}
	return camera.Frame{Data: data}, nil
}

// fakeDisplay records applied brightness and optionally simulates the user
// moving the slider during the wait.
type fakeDisplay struct {
	current  int
	sets     []int
	override func(set int) int
	setErr   error
	getErr   error
}

func (d *fakeDisplay) Set(_ context.Context, percent int) error {
	if d.setErr != nil {
		return d.setErr
	}
	d.sets = append(d.sets, percent)
	d.current = percent
	if d.override != nil {
		d.current = d.override(percent)
	}
	return nil
}

func (d *fakeDisplay) Get(context.Context) (int, error) {
	if d.getErr != nil {
		return 0, d.getErr
	}
	return d.current, nil
}

type fakeSaver struct {
	saved []sensitivity.Profile
	err   error
}

func (s *fakeSaver) SaveProfile(p sensitivity.Profile) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, p)
	return nil
}

type fakeJournal struct {
	entries []sensitivity.Adjustment
}

func (j *fakeJournal) Record(_ context.Context, at time.Time, adj sensitivity.Adjustment) (journal.Entry, error) {
	j.entries = append(j.entries, adj)
	return journal.Entry{RecordedAt: at, Adjustment: adj}, nil
}

type harness struct {
	cam     *fakeCamera
	display *fakeDisplay
	saver   *fakeSaver
	journal *fakeJournal
	clock   *timeutil.MockClock
	logs    *observer.ObservedLogs
	ctrl    *Controller
}

func newHarness(t *testing.T, profile sensitivity.Profile, adaptive bool, levels ...byte) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		cam:     &fakeCamera{size: 640, levels: append([]byte{0}, levels...)},
		display: &fakeDisplay{},
		saver:   &fakeSaver{},
		journal: &fakeJournal{},
		clock:   timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		logs:    logs,
	}
	h.ctrl = New(h.cam, h.display, h.saver, profile, Options{
		Delay:    time.Minute,
		Step:     64,
		Adaptive: adaptive,
		Learner:  sensitivity.Learner{Coefficient: 0.003},
		Clock:    h.clock,
		Logger:   zap.New(core),
		Journal:  h.journal,
	})
	if err := h.ctrl.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return h
}

func TestCycleMapsZones(t *testing.T) {
	profile := sensitivity.Profile{Dark: 0.4, Mid: 0.3, Light: 0.5}
	h := newHarness(t, profile, false, 200, 50, 120)

	want := []struct {
		zone   sensitivity.Zone
		target int
	}{
		{sensitivity.Light, 100},
		{sensitivity.Dark, 20},
		{sensitivity.Mid, 36},
	}
	for i, w := range want {
		res, err := h.ctrl.Cycle(context.Background())
		if err != nil {
			t.Fatalf("Cycle %d failed: %v", i, err)
		}
		if res.Zone != w.zone || res.Target != w.target {
			t.Fatalf("Cycle %d: got zone=%s target=%d, want zone=%s target=%d",
				i, res.Zone, res.Target, w.zone, w.target)
		}
		if h.display.sets[i] != w.target {
			t.Fatalf("Cycle %d: display set to %d, want %d", i, h.display.sets[i], w.target)
		}
	}

	sleeps := h.clock.Sleeps()
	if len(sleeps) != 3 || sleeps[0] != time.Minute {
		t.Fatalf("Expected one one-minute wait per cycle, got %v", sleeps)
	}
	if len(h.saver.saved) != 0 {
		t.Fatal("Nothing should be saved with learning disabled")
	}
}

func TestInitSamplesOnce(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), false, 10)
	if h.cam.calls != 1 {
		t.Fatalf("Init should capture exactly one frame, got %d", h.cam.calls)
	}
	if h.ctrl.indexes.Len() != 10 {
		t.Fatalf("Expected 10 sample offsets for 640 bytes at step 64, got %d", h.ctrl.indexes.Len())
	}
}

func TestCycleWithoutOverrideDoesNotLearn(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), true, 50)

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Adjustment != nil {
		t.Fatalf("Unexpected adjustment: %+v", res.Adjustment)
	}
	if h.ctrl.Profile() != sensitivity.DefaultProfile() {
		t.Fatalf("Profile changed without override: %+v", h.ctrl.Profile())
	}
	if len(h.saver.saved) != 0 || len(h.journal.entries) != 0 {
		t.Fatal("Nothing should be persisted without an override")
	}
}

func TestCycleLearnsFromOverride(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), true, 50)
	h.display.override = func(int) int { return 10 }

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Target != 20 || res.Adjustment == nil {
		t.Fatalf("Expected target 20 with an adjustment, got %+v", res)
	}

	p := h.ctrl.Profile()
	if math.Abs(p.Dark-0.37) > 1e-9 {
		t.Fatalf("Expected dark coefficient 0.37, got %v", p.Dark)
	}
	if p.Mid != 0.4 || p.Light != 0.4 {
		t.Fatalf("Only the dark zone should change: %+v", p)
	}
	if len(h.saver.saved) != 1 || h.saver.saved[0] != p {
		t.Fatalf("Expected the new profile to be saved once, got %v", h.saver.saved)
	}
	if len(h.journal.entries) != 1 || h.journal.entries[0].Error != 10 {
		t.Fatalf("Expected one journal entry with error 10, got %+v", h.journal.entries)
	}
	if h.logs.FilterMessage("Changing sensitivity because the brightness was changed manually").Len() != 1 {
		t.Fatal("Expected the override to be logged")
	}
}

func TestCycleLearnsOnOriginalZone(t *testing.T) {
	// The frame sits at the top of the mid zone. The override must adjust
	// mid even though the user's slider would map elsewhere.
	h := newHarness(t, sensitivity.Profile{Dark: 0.4, Mid: 0.5, Light: 0.4}, true, 169)
	h.display.override = func(int) int { return 100 }

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Zone != sensitivity.Mid || res.Adjustment.Zone != sensitivity.Mid {
		t.Fatalf("Expected mid zone throughout, got %+v", res)
	}
	if h.cam.calls != 2 {
		t.Fatalf("Learning must not resample the camera, got %d captures", h.cam.calls)
	}
	if p := h.ctrl.Profile(); p.Dark != 0.4 || p.Light != 0.4 || p.Mid <= 0.5 {
		t.Fatalf("Unexpected profile after brightening: %+v", p)
	}
}

func TestCycleResetsNegativeCoefficient(t *testing.T) {
	h := newHarness(t, sensitivity.Profile{Dark: 0.4, Mid: 0.9, Light: 0.52}, true, 200)
	h.ctrl.opts.Learner.Coefficient = 0.01
	h.display.override = func(int) int { return 0 }

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Target != 100 || !res.Adjustment.Reset {
		t.Fatalf("Expected a reset after target 100 -> 0, got %+v", res)
	}
	if p := h.ctrl.Profile(); p.Light != sensitivity.DefaultMidSensitivity || p.Mid != 0.9 {
		t.Fatalf("Expected light reset to the default, got %+v", p)
	}
}

func TestCycleSanitizesLoadedNegativeCoefficient(t *testing.T) {
	h := newHarness(t, sensitivity.Profile{Dark: -0.3, Mid: 0.4, Light: 0.4}, false, 50)

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Target != 20 {
		t.Fatalf("Expected target from the default coefficient, got %d", res.Target)
	}
	if h.ctrl.Profile().Dark != sensitivity.DefaultMidSensitivity {
		t.Fatalf("Expected dark reset, got %v", h.ctrl.Profile().Dark)
	}
	if h.logs.FilterLevelExact(zap.WarnLevel).Len() != 1 {
		t.Fatal("Expected a warning for the reset")
	}
}

func TestCycleSaveFailureIsFatal(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), true, 50)
	h.display.override = func(int) int { return 10 }
	h.saver.err = errors.New("read-only file system")

	if _, err := h.ctrl.Cycle(context.Background()); !errors.Is(err, h.saver.err) {
		t.Fatalf("Expected save error, got %v", err)
	}
}

func TestCycleSkipsLearningWhenReadFails(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), true, 50)
	h.display.getErr = errors.New("no backlight")

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Adjustment != nil || len(h.saver.saved) != 0 {
		t.Fatal("Learning should be skipped when the brightness cannot be read")
	}
}

func TestCycleSkipsLearningWhenSetFails(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), true, 50)
	h.display.setErr = errors.New("brightnessctl: not found")
	h.display.current = 80

	res, err := h.ctrl.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if res.Adjustment != nil {
		t.Fatal("A failed set must not be mistaken for a manual override")
	}
}

func TestCycleCaptureFailureIsFatal(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), false, 50)
	h.cam.err = errors.New("device unplugged")

	if _, err := h.ctrl.Cycle(context.Background()); !errors.Is(err, h.cam.err) {
		t.Fatalf("Expected capture error, got %v", err)
	}
}

func TestCycleFrameSizeChange(t *testing.T) {
	h := newHarness(t, sensitivity.DefaultProfile(), false, 50)
	h.cam.size = 320

	if _, err := h.ctrl.Cycle(context.Background()); !errors.Is(err, sampler.ErrFrameLength) {
		t.Fatalf("Expected ErrFrameLength, got %v", err)
	}
}

func TestCycleBeforeInit(t *testing.T) {
	ctrl := New(&fakeCamera{size: 64, levels: []byte{1}}, &fakeDisplay{}, &fakeSaver{}, sensitivity.DefaultProfile(), Options{Step: 8})
	if _, err := ctrl.Cycle(context.Background()); err == nil {
		t.Fatal("Expected error when cycling before init")
	}
}

// cancelAfter cancels the context once the display has been set n times.
type cancelAfter struct {
	fakeDisplay
	n      int
	cancel context.CancelFunc
}

func (d *cancelAfter) Set(ctx context.Context, percent int) error {
	err := d.fakeDisplay.Set(ctx, percent)
	if len(d.sets) == d.n {
		d.cancel()
	}
	return err
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disp := &cancelAfter{n: 3, cancel: cancel}
	cam := &fakeCamera{size: 256, levels: []byte{30}}
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctrl := New(cam, disp, &fakeSaver{}, sensitivity.DefaultProfile(), Options{
		Delay: time.Hour,
		Step:  16,
		Clock: clock,
	})

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	if len(disp.sets) != 3 {
		t.Fatalf("Expected 3 cycles before stopping, got %d", len(disp.sets))
	}
}

// Package control runs the adaptive brightness loop: capture a frame,
// estimate ambient light, map it through the active sensitivity zone to a
// display brightness, and learn from manual overrides.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/rlight/internal/camera"
	"github.com/mikeyg42/rlight/internal/display"
	"github.com/mikeyg42/rlight/internal/journal"
	"github.com/mikeyg42/rlight/internal/sampler"
	"github.com/mikeyg42/rlight/internal/sensitivity"
	"github.com/mikeyg42/rlight/internal/timeutil"
)

// Camera yields one frame per call, releasing the device in between.
type Camera interface {
	Capture(ctx context.Context) (camera.Frame, error)
}

// ProfileSaver persists the coefficients after a learning step.
type ProfileSaver interface {
	SaveProfile(p sensitivity.Profile) error
}

// Recorder receives every learning decision. It is optional.
type Recorder interface {
	Record(ctx context.Context, at time.Time, adj sensitivity.Adjustment) (journal.Entry, error)
}

// Options configures a Controller.
type Options struct {
	Delay    time.Duration
	Step     int
	Adaptive bool
	Learner  sensitivity.Learner

	Clock   timeutil.Clock
	Logger  *zap.Logger
	Journal Recorder
}

// Result describes one completed cycle.
type Result struct {
	Raw    float64
	Zone   sensitivity.Zone
	Target int
	// Adjustment is set when the cycle changed a coefficient.
	Adjustment *sensitivity.Adjustment
}

// Controller owns the loop state: the sensitivity profile and the sample
// offsets derived from the first frame.
type Controller struct {
	cam     Camera
	display display.Display
	saver   ProfileSaver
	opts    Options
	logger  *zap.Logger

	profile sensitivity.Profile
	indexes *sampler.IndexSet
}

// New returns a controller starting from profile.
func New(cam Camera, disp display.Display, saver ProfileSaver, profile sensitivity.Profile, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	return &Controller{
		cam:     cam,
		display: disp,
		saver:   saver,
		opts:    opts,
		logger:  logger.Named("control"),
		profile: profile,
	}
}

// Profile returns a copy of the current coefficients.
func (c *Controller) Profile() sensitivity.Profile { return c.profile }

// Init captures one frame to size the sample offsets.
func (c *Controller) Init(ctx context.Context) error {
	frame, err := c.cam.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture sizing frame: %w", err)
	}
	indexes, err := sampler.NewIndexSet(len(frame.Data), c.opts.Step)
	if err != nil {
		return err
	}
	c.indexes = indexes

	c.logger.Info("Sampling frames",
		zap.Int("frame_bytes", indexes.FrameLen()),
		zap.Int("step", c.opts.Step),
		zap.Int("samples", indexes.Len()))
	return nil
}

// Run initialises the controller and repeats Cycle until ctx is done. It
// returns nil on cancellation and the first fatal error otherwise.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	for {
		if _, err := c.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping", zap.Error(ctx.Err()))
				return nil
			}
			return err
		}
	}
}

// Cycle runs one iteration: sample, map, apply, wait, then learn from any
// manual override. Init must have been called.
func (c *Controller) Cycle(ctx context.Context) (Result, error) {
	if c.indexes == nil {
		return Result{}, errors.New("control: cycle before init")
	}

	frame, err := c.cam.Capture(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capture frame: %w", err)
	}
	raw, err := c.indexes.Average(frame.Data)
	if err != nil {
		return Result{}, err
	}

	res := Result{Raw: raw, Zone: sensitivity.Classify(raw)}
	coeff, reset := sensitivity.Sanitize(c.profile.Get(res.Zone))
	if reset {
		c.logger.Warn("Negative sensitivity, resetting to default",
			zap.Stringer("zone", res.Zone),
			zap.Float64("old", c.profile.Get(res.Zone)),
			zap.Float64("new", coeff))
		c.profile.Set(res.Zone, coeff)
	}
	res.Target = sensitivity.Target(raw, coeff)

	c.logger.Debug("Brightness from the camera", zap.Float64("raw", raw), zap.Stringer("zone", res.Zone))
	applied := true
	if err := c.display.Set(ctx, res.Target); err != nil {
		applied = false
		c.logger.Warn("Failed to change brightness", zap.Int("target", res.Target), zap.Error(err))
	} else {
		c.logger.Debug("Brightness has been changed", zap.Int("percent", res.Target))
	}

	if err := timeutil.Sleep(ctx, c.opts.Clock, c.opts.Delay); err != nil {
		return res, err
	}

	if !c.opts.Adaptive || !applied {
		return res, nil
	}
	adj, err := c.learn(ctx, res)
	if err != nil {
		return res, err
	}
	res.Adjustment = adj
	return res, nil
}

// learn reuses the cycle's zone so the correction is attributed to the
// reading that produced the target.
func (c *Controller) learn(ctx context.Context, res Result) (*sensitivity.Adjustment, error) {
	actual, err := c.display.Get(ctx)
	if err != nil {
		c.logger.Warn("Failed to read brightness, skipping learning", zap.Error(err))
		return nil, nil
	}

	adj, changed := c.opts.Learner.Adjust(&c.profile, res.Zone, res.Raw, res.Target, actual)
	if !changed {
		return nil, nil
	}

	c.logger.Info("Changing sensitivity because the brightness was changed manually",
		zap.Stringer("zone", adj.Zone),
		zap.Int("suggested", adj.Target),
		zap.Int("current", adj.Actual),
		zap.Float64("old", adj.Old),
		zap.Float64("new", adj.New))
	if adj.Reset {
		c.logger.Warn("Sensitivity went negative, reset to default",
			zap.Stringer("zone", adj.Zone),
			zap.Float64("default", sensitivity.DefaultMidSensitivity))
	}

	if err := c.saver.SaveProfile(c.profile); err != nil {
		return &adj, fmt.Errorf("persist sensitivity: %w", err)
	}

	if c.opts.Journal != nil {
		if _, err := c.opts.Journal.Record(ctx, c.opts.Clock.Now(), adj); err != nil {
			c.logger.Warn("Failed to journal adjustment", zap.Error(err))
		}
	}
	return &adj, nil
}

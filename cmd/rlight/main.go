package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/mikeyg42/rlight/internal/camera"
	"github.com/mikeyg42/rlight/internal/config"
	"github.com/mikeyg42/rlight/internal/control"
	"github.com/mikeyg42/rlight/internal/display"
	"github.com/mikeyg42/rlight/internal/journal"
	"github.com/mikeyg42/rlight/internal/logging"
	"github.com/mikeyg42/rlight/internal/sensitivity"
)

// Application struct that holds all components
type Application struct {
	config     *config.Config
	store      config.Store
	logger     *zap.Logger
	camera     camera.Device
	display    display.Display
	journal    *journal.Journal
	controller *control.Controller
}

// options holds the command line flags.
type options struct {
	configPath  string
	debug       bool
	jsonLogs    bool
	once        bool
	report      bool
	listCameras bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "config file (default: user config dir/rlight/config.json)")
	flag.BoolVar(&opts.debug, "debug", false, "log every cycle")
	flag.BoolVar(&opts.jsonLogs, "json-logs", false, "log as JSON lines")
	flag.BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	flag.BoolVar(&opts.report, "report", false, "print the learning journal summary and exit")
	flag.BoolVar(&opts.listCameras, "list-cameras", false, "list video inputs and exit")
	flag.Parse()

	logger, err := logging.New(logging.Options{Debug: opts.debug, JSON: opts.jsonLogs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts, logger)
	stop()
	if err != nil {
		logger.Error("rlight stopped", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run does the work of main. Deferred cleanup has finished by the time it
// returns, so main can exit on the error.
func run(ctx context.Context, opts options, logger *zap.Logger) error {
	if opts.listCameras {
		printCameras()
		return nil
	}

	store, err := config.NewFileStore(opts.configPath, logger)
	if err != nil {
		return fmt.Errorf("failed to locate config: %w", err)
	}
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", store.Path(), err)
	}
	logger.Debug("Loaded config", zap.String("path", store.Path()), zap.Any("config", cfg))

	if opts.report {
		if err := printReport(ctx, cfg, logger); err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		return nil
	}

	app, err := NewApplication(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Cleanup()

	if err := app.Start(ctx, opts.once); err != nil {
		return fmt.Errorf("error during processing: %w", err)
	}
	return nil
}

func NewApplication(ctx context.Context, cfg *config.Config, store config.Store, logger *zap.Logger) (*Application, error) {
	cam, err := camera.Open(cfg.CameraBackend, cfg.Camera, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}

	disp, err := display.New(cfg, logger)
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("failed to open display: %w", err)
	}

	app := &Application{
		config:  cfg,
		store:   store,
		logger:  logger,
		camera:  cam,
		display: disp,
	}

	opts := control.Options{
		Delay:    cfg.DelayDuration(),
		Step:     cfg.Step,
		Adaptive: cfg.AdaptiveSensitivity,
		Learner:  sensitivity.Learner{Coefficient: cfg.LearningCoefficient},
		Logger:   logger,
	}
	if cfg.JournalDSN != "" {
		j, err := journal.Open(ctx, cfg.JournalDSN, logger)
		if err != nil {
			app.Cleanup()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		app.journal = j
		opts.Journal = j
	}

	saver := config.ProfileWriter{Store: store, Config: cfg}
	app.controller = control.New(cam, disp, saver, cfg.Profile(), opts)
	return app, nil
}

// Start runs the control loop until ctx ends, or a single cycle with once.
func (app *Application) Start(ctx context.Context, once bool) error {
	if !once {
		return app.controller.Run(ctx)
	}
	if err := app.controller.Init(ctx); err != nil {
		return err
	}
	res, err := app.controller.Cycle(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	app.logger.Info("Cycle complete",
		zap.Float64("raw", res.Raw),
		zap.Stringer("zone", res.Zone),
		zap.Int("target", res.Target))
	return nil
}

func (app *Application) Cleanup() {
	if app.journal != nil {
		if err := app.journal.Close(); err != nil {
			app.logger.Warn("Failed to close journal", zap.Error(err))
		}
	}
	if app.camera != nil {
		app.camera.Close()
	}
}

func printCameras() {
	cameras := camera.ListCameras()
	if len(cameras) == 0 {
		fmt.Println("No cameras found!")
		return
	}
	for i, device := range cameras {
		fmt.Printf("%d: %s (%s)\n", i, device.Label, device.DeviceID)
	}
}

func printReport(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.JournalDSN == "" {
		return fmt.Errorf("journal_dsn is not set in the config")
	}
	j, err := journal.Open(ctx, cfg.JournalDSN, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	summary, err := j.Summary(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tADJUSTMENTS\tRESETS\tMEAN ERROR\tSTDDEV\tCOEFFICIENT")
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.2f\t%.4f\n",
			s.Zone, s.Count, s.Resets, s.MeanError, s.StdDevError, s.LastCoefficient)
	}
	profile := cfg.Profile()
	for _, z := range sensitivity.Zones {
		fmt.Fprintf(w, "current %s\t\t\t\t\t%.4f\n", z, profile.Get(z))
	}
	return w.Flush()
}
